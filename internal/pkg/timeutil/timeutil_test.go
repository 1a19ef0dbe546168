package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLocation(t *testing.T) {
	t.Cleanup(func() { _ = SetLocation("UTC") })

	require.NoError(t, SetLocation("Asia/Tokyo"))
	assert.Equal(t, "Asia/Tokyo", Location().String())
	assert.Equal(t, "Asia/Tokyo", Now().Location().String())

	require.NoError(t, SetLocation(""))
	assert.Equal(t, time.UTC, Location())

	assert.Error(t, SetLocation("Mars/Olympus"))
	assert.Equal(t, time.UTC, Location(), "failed lookup keeps the previous zone")
}

func TestNormalize(t *testing.T) {
	in := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	got := Normalize(in)
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.True(t, got.Equal(in.Truncate(time.Microsecond)))
	assert.True(t, Normalize(time.Time{}).IsZero())

	now := Now()
	assert.Zero(t, now.Nanosecond()%int(Precision))
}

func TestLater(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Second)
	assert.Equal(t, b, Later(a, b))
	assert.Equal(t, b, Later(b, a))
	assert.Equal(t, a, Later(a, a))
}
