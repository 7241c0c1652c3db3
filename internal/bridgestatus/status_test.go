package bridgestatus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/supervisor"
)

func TestBuildReflectsSupervisorState(t *testing.T) {
	store := config.NewMemStore()
	agg := stats.New()
	sup := supervisor.New(store, agg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	require.NoError(t, sup.Start(ctx))
	agg.IncReceived(config.KindMQTT)
	agg.IncSent(config.KindMQTT)

	st := Build(sup, agg)
	assert.Equal(t, "running", st.State)
	assert.Empty(t, st.Endpoints)
	assert.Equal(t, int64(0), st.ErrorCount)
	assert.Equal(t, int64(1), st.Stats.ReceivedMQTT)
}
