package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSingleLevelWildcard(t *testing.T) {
	cap, ok, err := Match("sensors/+/temp", "sensors/room1/temp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"room1"}, cap.Plus)

	cap, ok, err = Match("sensors/+/temp", "sensors/42/temp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"42"}, cap.Plus)

	_, ok, err = Match("sensors/+/temp", "sensors/temp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Match("sensors/+/temp", "sensors/a/b/temp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Match("sensors/+/temp", "sensors//temp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchMultiLevelWildcard(t *testing.T) {
	for _, topic := range []string{"sensors", "sensors/a", "sensors/a/b/c"} {
		_, ok, err := Match("sensors/#", topic)
		require.NoError(t, err)
		assert.True(t, ok, "expected %q to match sensors/#", topic)
	}

	_, ok, err := Match("sensors/#", "other/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchTailCapture(t *testing.T) {
	cap, ok, err := Match("zmq/#", "zmq/a/b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cap.HasTail)
	assert.Equal(t, "a/b", cap.Tail)

	cap, ok, err = Match("sensors/#", "sensors")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cap.HasTail)
	assert.Equal(t, "", cap.Tail)
}

func TestMatchEmptyTopicNeverMatches(t *testing.T) {
	_, ok, err := Match("#", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchCaseSensitiveByteExact(t *testing.T) {
	_, ok, err := Match("Sensors/Temp", "sensors/temp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatePatternRejectsMalformed(t *testing.T) {
	cases := []string{
		"a/#/b",
		"",
		"a//b",
		"a+b/c",
		"a/b#",
	}
	for _, p := range cases {
		err := ValidatePattern(p)
		assert.Error(t, err, "pattern %q should be invalid", p)
	}
}

func TestMatchRoundTripWithoutHash(t *testing.T) {
	pattern := "+/+/+/+"
	topicStr := "home/kitchen/sensor/temp"

	cap, ok, err := Match(pattern, topicStr)
	require.NoError(t, err)
	require.True(t, ok)

	rebuilt, err := Apply("{1}/{2}/{3}/{4}", cap)
	require.NoError(t, err)
	assert.Equal(t, topicStr, rebuilt)
}
