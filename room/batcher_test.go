package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/roomserver/game"
)

func TestBatcherDebounceWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := newDrawBatcher(50*time.Millisecond, 64, clock)

	assert.True(t, b.Empty())
	assert.False(t, b.Due())

	flushNow := b.Add(game.DrawAction{Cmd: "move", X: 1}, "drawer")
	assert.False(t, flushNow)
	assert.False(t, b.Due(), "window has not elapsed yet")

	now = now.Add(30 * time.Millisecond)
	b.Add(game.DrawAction{Cmd: "move", X: 2}, "drawer")
	assert.False(t, b.Due(), "the window runs from the first command, not the last")

	now = now.Add(20 * time.Millisecond)
	assert.True(t, b.Due())

	cmds, exclude := b.Flush()
	require.Len(t, cmds, 2)
	assert.Equal(t, "drawer", exclude)
	assert.True(t, b.Empty())
	assert.False(t, b.Due())
}

func TestBatcherSizeCap(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b := newDrawBatcher(50*time.Millisecond, 3, func() time.Time { return now })

	assert.False(t, b.Add(game.DrawAction{Cmd: "move", X: 1}, "d"))
	assert.False(t, b.Add(game.DrawAction{Cmd: "move", X: 2}, "d"))
	assert.True(t, b.Add(game.DrawAction{Cmd: "move", X: 3}, "d"), "hitting the cap forces a flush")

	cmds, _ := b.Flush()
	assert.Len(t, cmds, 3)

	// A new batch re-arms the deadline.
	b.Add(game.DrawAction{Cmd: "move", X: 4}, "d")
	assert.Equal(t, now.Add(50*time.Millisecond), b.Deadline())
}
