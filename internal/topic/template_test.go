package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPositionalPlaceholders(t *testing.T) {
	cap, ok, err := Match("sensors/+/t", "sensors/room1/t")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := Apply("zmq.s.{1}.t", cap)
	require.NoError(t, err)
	assert.Equal(t, "zmq.s.room1.t", got)
}

func TestApplyTailPlaceholder(t *testing.T) {
	cap, ok, err := Match("zmq/#", "zmq/a/b")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := Apply("bridged/{*}", cap)
	require.NoError(t, err)
	assert.Equal(t, "bridged/a/b", got)
}

func TestValidateTemplateRejectsOutOfRange(t *testing.T) {
	err := ValidateTemplate("zmq.{1}.{2}", 1, false)
	assert.Error(t, err)
}

func TestValidateTemplateRejectsTailWithoutCapture(t *testing.T) {
	err := ValidateTemplate("bridged/{1}", 1, false)
	assert.NoError(t, err)

	err = ValidateTemplate("bridged/{*}", 0, false)
	assert.Error(t, err, "a {*} placeholder requires the pattern to have a # capture")

	err = ValidateTemplate("bridged/{*}", 0, true)
	assert.NoError(t, err)
}

func TestApplyRejectsTailWithoutCaptureAtRuntime(t *testing.T) {
	cap := Capture{Plus: []string{"a"}}
	_, err := Apply("bridged/{*}", cap)
	assert.Error(t, err)
}

func TestApplyUnterminatedPlaceholder(t *testing.T) {
	_, err := Apply("bridged/{1", Capture{Plus: []string{"a"}})
	assert.Error(t, err)
}
