package delivery

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// Mode selects when a message counts as delivered.
type Mode string

const (
	// ModeBroadcast marks a message delivered as soon as the broadcast has
	// been handed to the transport.
	ModeBroadcast Mode = "broadcast"
	// ModeAck waits until every connection the broadcast reached has
	// acknowledged receipt, or has disconnected.
	ModeAck Mode = "ack"
)

// ParseMode accepts the configuration spelling of a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBroadcast, ModeAck:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q", s)
	}
}

// Emission is a status update owed to the sender of a message.
type Emission struct {
	Sender protocol.ConnID
	ID     string
	Status Status
}

type key struct {
	sender protocol.ConnID
	id     string
}

type entry struct {
	seq      uint64
	status   Status
	expected map[protocol.ConnID]struct{}
}

// sentRef is one slot of a sender's window.
type sentRef struct {
	id  string
	seq uint64
}

// DefaultWindow is how many recent messages per sender are kept for
// acknowledgments when no window is configured.
const DefaultWindow = 256

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow bounds the messages remembered per sender. When a sender goes
// past it, its oldest message is forgotten and later acknowledgments for it
// are no-ops. Values below 1 select DefaultWindow.
func WithWindow(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.window = n
		}
	}
}

// Tracker remembers, for each in-flight message, the last status emitted to
// its sender and which receivers still owe an acknowledgment. Messages are
// forgotten once seen or when their sender disconnects; after that any
// acknowledgment for them is a no-op.
//
// Only the most recent window of messages per sender is remembered, so a
// sender whose messages are never acknowledged costs bounded memory.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	mode    Mode
	window  int
	seq     uint64
	entries map[key]*entry
	recent  map[protocol.ConnID][]sentRef
}

func NewTracker(mode Mode, opts ...Option) *Tracker {
	if mode == "" {
		mode = ModeBroadcast
	}
	t := &Tracker{
		mode:    mode,
		window:  DefaultWindow,
		entries: make(map[key]*entry),
		recent:  make(map[protocol.ConnID][]sentRef),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Mode() Mode {
	return t.mode
}

// Sent starts tracking a message. Reusing an id that is still in flight for
// the same sender is rejected.
func (t *Tracker) Sent(sender protocol.ConnID, id string) (Emission, error) {
	k := key{sender: sender, id: id}
	if _, ok := t.entries[k]; ok {
		return Emission{}, fmt.Errorf("%w: %s", protocol.ErrDuplicateMessage, id)
	}
	t.seq++
	e := &entry{seq: t.seq}
	t.entries[k] = e
	t.remember(sender, sentRef{id: id, seq: e.seq})
	em, _ := t.advance(k, e, StatusSent)
	return em, nil
}

// remember appends ref to the sender's window and forgets whatever falls out
// of it. A ref whose entry was already released, or replaced by a newer
// message reusing the id, releases nothing.
func (t *Tracker) remember(sender protocol.ConnID, ref sentRef) {
	refs := append(t.recent[sender], ref)
	for len(refs) > t.window {
		old := refs[0]
		refs = refs[1:]
		k := key{sender: sender, id: old.id}
		if e, ok := t.entries[k]; ok && e.seq == old.seq {
			delete(t.entries, k)
		}
	}
	t.recent[sender] = refs
}

// Broadcasted records the connections the message was handed to.
func (t *Tracker) Broadcasted(sender protocol.ConnID, id string, receivers []protocol.ConnID) []Emission {
	k := key{sender: sender, id: id}
	e, ok := t.entries[k]
	if !ok {
		return nil
	}
	if t.mode == ModeBroadcast {
		return t.emit(k, e, StatusDelivered)
	}

	e.expected = lo.SliceToMap(lo.Without(receivers, sender), func(c protocol.ConnID) (protocol.ConnID, struct{}) {
		return c, struct{}{}
	})
	return t.settle(k, e)
}

// Received records a receiver's delivery acknowledgment. It only matters in
// ModeAck.
func (t *Tracker) Received(sender protocol.ConnID, id string, receiver protocol.ConnID) []Emission {
	k := key{sender: sender, id: id}
	e, ok := t.entries[k]
	if !ok || t.mode != ModeAck {
		return nil
	}
	if _, waiting := e.expected[receiver]; !waiting {
		return nil
	}
	delete(e.expected, receiver)
	return t.settle(k, e)
}

// Seen records that receiver rendered the message. It also counts as that
// receiver's delivery acknowledgment. The first call emits StatusSeen and
// forgets the message; later calls return nothing.
func (t *Tracker) Seen(sender protocol.ConnID, id string, receiver protocol.ConnID) []Emission {
	k := key{sender: sender, id: id}
	e, ok := t.entries[k]
	if !ok {
		return nil
	}
	var out []Emission
	if t.mode == ModeAck {
		delete(e.expected, receiver)
		out = t.settle(k, e)
	}
	out = append(out, t.emit(k, e, StatusSeen)...)
	delete(t.entries, k)
	return out
}

// Forget drops everything tied to conn: the messages it sent, and its place
// in the receiver sets of other senders' messages. Messages that were only
// waiting on conn become delivered.
func (t *Tracker) Forget(conn protocol.ConnID) []Emission {
	var out []Emission
	delete(t.recent, conn)
	for k, e := range t.entries {
		if k.sender == conn {
			delete(t.entries, k)
			continue
		}
		if _, waiting := e.expected[conn]; waiting {
			delete(e.expected, conn)
			out = append(out, t.settle(k, e)...)
		}
	}
	return out
}

// Status returns the last status emitted for a tracked message.
func (t *Tracker) Status(sender protocol.ConnID, id string) (Status, bool) {
	e, ok := t.entries[key{sender: sender, id: id}]
	if !ok {
		return StatusUnknown, false
	}
	return e.status, true
}

// Tracks reports whether the message is still in flight.
func (t *Tracker) Tracks(sender protocol.ConnID, id string) bool {
	_, ok := t.entries[key{sender: sender, id: id}]
	return ok
}

// Pending is the number of messages in flight.
func (t *Tracker) Pending() int {
	return len(t.entries)
}

// settle emits delivered once nobody is left to acknowledge.
func (t *Tracker) settle(k key, e *entry) []Emission {
	if len(e.expected) > 0 {
		return nil
	}
	return t.emit(k, e, StatusDelivered)
}

func (t *Tracker) emit(k key, e *entry, s Status) []Emission {
	if em, ok := t.advance(k, e, s); ok {
		return []Emission{em}
	}
	return nil
}

func (t *Tracker) advance(k key, e *entry, s Status) (Emission, bool) {
	if !s.Advances(e.status) {
		return Emission{}, false
	}
	e.status = s
	return Emission{Sender: k.sender, ID: k.id, Status: s}, true
}
