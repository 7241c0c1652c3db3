package control

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/supervisor"
)

func TestSubmitStartAndStop(t *testing.T) {
	store := config.NewMemStore()
	sup := supervisor.New(store, stats.New())
	facade := New(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	res, err := facade.Submit(ctx, Command{Kind: Start})
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateRunning, res.State)

	res, err = facade.Submit(ctx, Command{Kind: Stop})
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateStopped, res.State)
}

func TestSubmitApplyConfig(t *testing.T) {
	store := config.NewMemStore()
	sup := supervisor.New(store, stats.New())
	facade := New(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	_, err := facade.Submit(ctx, Command{Kind: Start})
	require.NoError(t, err)

	_, err = facade.Submit(ctx, Command{Kind: ApplyConfig, Snapshot: config.Snapshot{}})
	require.NoError(t, err)
}
