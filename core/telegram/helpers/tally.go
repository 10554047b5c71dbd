package helpers

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const tallyKey = "reply_tally"

// Tally counts the Bot API calls queued while handling one update.
type Tally struct {
	mu       sync.Mutex
	sent     int
	edited   int
	deleted  int
	keyboard bool
}

// TallySnapshot is a point-in-time copy of a Tally.
type TallySnapshot struct {
	Sent     int
	Edited   int
	Deleted  int
	Keyboard bool
}

// StartTally attaches a fresh tally to c.
func StartTally(c tele.Context) *Tally {
	t := &Tally{}
	c.Set(tallyKey, t)
	return t
}

// TallyFrom returns the tally attached to c, or nil.
func TallyFrom(c tele.Context) *Tally {
	t, _ := c.Get(tallyKey).(*Tally)
	return t
}

func (t *Tally) add(kind replyKind, keyboard bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case replySend:
		t.sent++
	case replyEdit:
		t.edited++
	case replyDelete:
		t.deleted++
	}
	t.keyboard = t.keyboard || keyboard
}

// Snapshot is safe on a nil tally.
func (t *Tally) Snapshot() TallySnapshot {
	if t == nil {
		return TallySnapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return TallySnapshot{Sent: t.sent, Edited: t.edited, Deleted: t.deleted, Keyboard: t.keyboard}
}
