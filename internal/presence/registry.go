// Package presence keeps the mapping between live connections and the display
// names their clients announced.
package presence

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// Participant is a connection that announced a display name.
type Participant struct {
	Conn protocol.ConnID
	Name string

	joined  uint64
	claimed uint64
}

// Registry maps each connection to its display name and each display name to
// the connection that most recently claimed it.
//
// Names are not unique. When two connections announce the same name the latest
// one owns routing for it; when the owner leaves or renames, the name falls
// back to the most recent remaining holder.
//
// A Registry is not safe for concurrent use. The hub event loop is its only
// caller.
type Registry struct {
	byConn map[protocol.ConnID]*Participant
	byName map[string]protocol.ConnID
	seq    uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[protocol.ConnID]*Participant),
		byName: make(map[string]protocol.ConnID),
	}
}

// Register inserts or overwrites the entry for conn.
func (r *Registry) Register(conn protocol.ConnID, name string) {
	r.seq++
	p, ok := r.byConn[conn]
	if !ok {
		p = &Participant{Conn: conn, joined: r.seq}
		r.byConn[conn] = p
	}
	previous := p.Name
	p.Name = name
	p.claimed = r.seq
	r.byName[name] = conn

	if ok && previous != name && r.byName[previous] == conn {
		r.reassign(previous)
	}
}

// Unregister removes both directions for conn and reports whether it was
// registered.
func (r *Registry) Unregister(conn protocol.ConnID) bool {
	p, ok := r.byConn[conn]
	if !ok {
		return false
	}
	delete(r.byConn, conn)
	if r.byName[p.Name] == conn {
		r.reassign(p.Name)
	}
	return true
}

// Resolve returns the connection currently owning name.
func (r *Registry) Resolve(name string) (protocol.ConnID, bool) {
	conn, ok := r.byName[name]
	return conn, ok
}

// NameOf returns the display name registered by conn.
func (r *Registry) NameOf(conn protocol.ConnID) (string, bool) {
	p, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// Participants returns a snapshot ordered by first registration.
func (r *Registry) Participants() []Participant {
	ps := lo.MapToSlice(r.byConn, func(_ protocol.ConnID, p *Participant) Participant {
		return *p
	})
	slices.SortFunc(ps, func(a, b Participant) int {
		return cmp.Compare(a.joined, b.joined)
	})
	return ps
}

// Names is the presence roster: one display name per registered connection.
func (r *Registry) Names() []string {
	return lo.Map(r.Participants(), func(p Participant, _ int) string {
		return p.Name
	})
}

func (r *Registry) Len() int {
	return len(r.byConn)
}

func (r *Registry) reassign(name string) {
	holders := lo.Filter(lo.Values(r.byConn), func(p *Participant, _ int) bool {
		return p.Name == name
	})
	if len(holders) == 0 {
		delete(r.byName, name)
		return
	}
	latest := lo.MaxBy(holders, func(a, b *Participant) bool {
		return a.claimed > b.claimed
	})
	r.byName[name] = latest.Conn
}
