package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_StartsAtEpoch(t *testing.T) {
	c := NewManual(time.Time{})
	assert.Equal(t, time.Unix(0, 0).UTC(), c.Now())
}

func TestManual_FiresOnlyWhenDue(t *testing.T) {
	c := NewManual(time.Time{})
	fired := 0
	c.AfterFunc(10*time.Millisecond, func() { fired++ })

	assert.Equal(t, 0, c.Advance(9*time.Millisecond))
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, c.Pending())

	assert.Equal(t, 1, c.Advance(time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestManual_OrdersByDueTimeThenSchedulingOrder(t *testing.T) {
	c := NewManual(time.Time{})
	var order []string
	c.AfterFunc(20*time.Millisecond, func() { order = append(order, "late") })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, "first") })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, "second") })

	c.Advance(time.Second)
	assert.Equal(t, []string{"first", "second", "late"}, order)
}

func TestManual_CallbackSeesDueTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)
	var seen time.Time
	c.AfterFunc(10*time.Millisecond, func() { seen = c.Now() })

	c.Advance(time.Second)
	assert.Equal(t, start.Add(10*time.Millisecond), seen)
	assert.Equal(t, start.Add(time.Second), c.Now())
}

func TestManual_NestedSchedulingInsideWindow(t *testing.T) {
	c := NewManual(time.Time{})
	fired := 0
	c.AfterFunc(10*time.Millisecond, func() {
		fired++
		c.AfterFunc(10*time.Millisecond, func() { fired++ })
	})

	assert.Equal(t, 2, c.Advance(25*time.Millisecond))
	assert.Equal(t, 2, fired)
}

func TestManual_Stop(t *testing.T) {
	c := NewManual(time.Time{})
	fired := false
	timer := c.AfterFunc(10*time.Millisecond, func() { fired = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	c.Advance(time.Second)
	assert.False(t, fired)
}

func TestManual_StopAfterFire(t *testing.T) {
	c := NewManual(time.Time{})
	timer := c.AfterFunc(time.Millisecond, func() {})
	c.Advance(time.Millisecond)
	assert.False(t, timer.Stop())
}
