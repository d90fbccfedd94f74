package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowInLocation(t *testing.T) {
	t.Parallel()

	clk := New(time.UTC)
	require.NotNil(t, clk)

	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.After(before) && got.Before(after))
}

func TestClockDefaultsToLocal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Local, New(nil).Now().Location())
}

func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	first := clk.Now()
	second := clk.Now()
	assert.False(t, second.Before(first))
}
