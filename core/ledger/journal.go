package ledger

import (
	"sync"
	"time"

	"github.com/dmitrymomot/arbiter/core/event"
)

// Entry is a committed notification.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Emitter Address   `json:"emitter"`
	Name    string    `json:"name"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Journal is the ordered log of committed notifications.
type Journal struct {
	mu       sync.RWMutex
	entries  []Entry
	seq      uint64
	capacity int
}

func newJournal(capacity int) *Journal {
	return &Journal{capacity: capacity}
}

func (j *Journal) append(pending []pendingEntry, at time.Time) []Entry {
	if len(pending) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, len(pending))
	for _, p := range pending {
		j.seq++
		e := Entry{
			Seq:     j.seq,
			Emitter: p.emitter,
			Name:    event.Name(p.payload),
			Payload: p.payload,
			At:      at,
		}
		j.entries = append(j.entries, e)
		out = append(out, e)
	}

	if j.capacity > 0 && len(j.entries) > j.capacity {
		j.entries = append([]Entry(nil), j.entries[len(j.entries)-j.capacity:]...)
	}

	return out
}

// Events returns the entries emitted by addr in commit order.
func (j *Journal) Events(addr Address) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if e.Emitter == addr {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recent entry emitted by addr.
func (j *Journal) Latest(addr Address) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].Emitter == addr {
			return j.entries[i], true
		}
	}
	return Entry{}, false
}

// All returns a copy of every retained entry.
func (j *Journal) All() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Entry(nil), j.entries...)
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
