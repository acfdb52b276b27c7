package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCodes_Fixed(t *testing.T) {
	// Persisted column codes. Renumbering breaks stored rows.
	assert.Equal(t, 1, int(LevelDebug))
	assert.Equal(t, 2, int(LevelInfo))
	assert.Equal(t, 3, int(LevelWarn))
	assert.Equal(t, 4, int(LevelError))
	assert.Equal(t, 5, int(LevelFatal))
}

func TestKindCodes_Fixed(t *testing.T) {
	assert.Equal(t, 1, int(KindCounter))
	assert.Equal(t, 2, int(KindGauge))
	assert.Equal(t, 3, int(KindTimer))
	assert.Equal(t, 4, int(KindHistogram))
	assert.Equal(t, 5, int(KindMeter))
}

func TestLevelFromCode_RoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal} {
		got, err := LevelFromCode(int(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
}

func TestLevelFromCode_Unknown(t *testing.T) {
	_, err := LevelFromCode(99)
	var unknown *UnknownLevelError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 99, unknown.Code)
}

func TestKindFromCode_RoundTrip(t *testing.T) {
	for _, k := range []MetricKind{KindCounter, KindGauge, KindTimer, KindHistogram, KindMeter} {
		got, err := KindFromCode(int(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestKindFromCode_Unknown(t *testing.T) {
	_, err := KindFromCode(0)
	var unknown *UnknownMetricKindError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 0, unknown.Code)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	_, err = ParseLevel("critical")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("counter")
	require.NoError(t, err)
	assert.Equal(t, KindCounter, k)

	_, err = ParseKind("rate")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "level(42)", Level(42).String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "timer", KindTimer.String())
	assert.Equal(t, "kind(42)", MetricKind(42).String())
}
