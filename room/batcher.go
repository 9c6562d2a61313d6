package room

import (
	"time"

	"github.com/wfunc/roomserver/game"
)

// drawBatcher coalesces a burst of draw "move" commands into one outbound
// update so broadcast volume stays bounded. It holds commands until the
// debounce window elapses or the batch hits its size cap. The clock is
// injectable so tests can drive it deterministically.
type drawBatcher struct {
	window  time.Duration
	max     int
	now     func() time.Time
	pending []game.DrawAction
	exclude string
	ready   time.Time
}

func newDrawBatcher(window time.Duration, max int, now func() time.Time) *drawBatcher {
	if now == nil {
		now = time.Now
	}
	return &drawBatcher{window: window, max: max, now: now}
}

// Add queues one command. It reports whether the batch must be flushed
// immediately (size cap reached). The first command of a batch arms the
// debounce deadline.
func (b *drawBatcher) Add(cmd game.DrawAction, excludePlayerID string) (flushNow bool) {
	if len(b.pending) == 0 {
		b.ready = b.now().Add(b.window)
		b.exclude = excludePlayerID
	}
	b.pending = append(b.pending, cmd)
	return len(b.pending) >= b.max
}

// Flush drains the batch.
func (b *drawBatcher) Flush() (cmds []game.DrawAction, excludePlayerID string) {
	cmds, excludePlayerID = b.pending, b.exclude
	b.pending = nil
	b.exclude = ""
	b.ready = time.Time{}
	return cmds, excludePlayerID
}

func (b *drawBatcher) Empty() bool { return len(b.pending) == 0 }

// Due reports whether the debounce window has elapsed.
func (b *drawBatcher) Due() bool {
	return len(b.pending) > 0 && !b.now().Before(b.ready)
}

// Deadline is the pending flush time, valid only while non-empty.
func (b *drawBatcher) Deadline() time.Time { return b.ready }
