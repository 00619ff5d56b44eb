package signaling

import (
	"fmt"

	"github.com/Tyrowin/gochat-live/internal/protocol"
)

// Mode is the routing policy for offers, answers and candidates.
type Mode string

const (
	// ModeBroadcast sends every payload to all connections except its
	// originator, ignoring any target.
	ModeBroadcast Mode = "broadcast"
	// ModeTargeted sends a payload only to its target handle, and falls back
	// to broadcast when the payload names no target.
	ModeTargeted Mode = "targeted"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBroadcast, ModeTargeted:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown signaling mode %q", s)
	}
}

// RouteKind tells the caller what to do with a payload.
type RouteKind int

const (
	RouteDrop RouteKind = iota
	RouteTarget
	RouteBroadcast
)

// Route is the routing decision for one payload.
type Route struct {
	Kind   RouteKind
	Target protocol.ConnID
}

type offerKey struct {
	offerer protocol.ConnID
	target  protocol.ConnID
}

type offer struct {
	answered bool
}

// Relay decides where negotiation payloads go. It remembers outstanding
// offers so that only the first answer to each one reaches the offerer when
// duplicate suppression is on, and it keeps the screen session's viewer
// table in step with the negotiation.
//
// A Relay is not safe for concurrent use.
type Relay struct {
	mode            Mode
	suppressAnswers bool
	offers          map[offerKey]*offer
	session         *Session
}

func NewRelay(mode Mode, suppressDuplicateAnswers bool) *Relay {
	if mode == "" {
		mode = ModeTargeted
	}
	return &Relay{
		mode:            mode,
		suppressAnswers: suppressDuplicateAnswers,
		offers:          make(map[offerKey]*offer),
		session:         NewSession(),
	}
}

func (r *Relay) Mode() Mode {
	return r.mode
}

// Session is the screen-share session the relay serves.
func (r *Relay) Session() *Session {
	return r.session
}

// Offer records a new offer from one connection and routes it. A fresh offer
// replaces any earlier one to the same target.
func (r *Relay) Offer(from, to protocol.ConnID) Route {
	route := r.route(to)
	k := offerKey{offerer: from}
	if route.Kind == RouteTarget {
		k.target = route.Target
	}
	r.offers[k] = &offer{}
	r.session.offered(from, k.target)
	return route
}

// Answer routes an answer back toward its offerer.
func (r *Relay) Answer(from, to protocol.ConnID) Route {
	k, o, found := r.lookupOffer(from, to)
	if found {
		if o.answered && r.suppressAnswers {
			return Route{Kind: RouteDrop}
		}
		o.answered = true
		r.session.answered(from, k.offerer)
		if to == "" {
			to = k.offerer
		}
	}
	return r.route(to)
}

// Candidate routes an ICE candidate. Candidates carry no state.
func (r *Relay) Candidate(_, to protocol.ConnID) Route {
	return r.route(to)
}

// Forget drops every offer made by or to conn.
func (r *Relay) Forget(conn protocol.ConnID) {
	for k := range r.offers {
		if k.offerer == conn || k.target == conn {
			delete(r.offers, k)
		}
	}
}

// Outstanding is the number of remembered offers.
func (r *Relay) Outstanding() int {
	return len(r.offers)
}

func (r *Relay) route(to protocol.ConnID) Route {
	if r.mode == ModeTargeted && to != "" {
		return Route{Kind: RouteTarget, Target: to}
	}
	return Route{Kind: RouteBroadcast}
}

// lookupOffer finds the offer an answer from answerer responds to. With an
// explicit target the offer is either addressed to the answerer or was
// broadcast by that target. Without one, it must be unambiguous.
func (r *Relay) lookupOffer(answerer, to protocol.ConnID) (offerKey, *offer, bool) {
	if to != "" {
		for _, k := range []offerKey{{offerer: to, target: answerer}, {offerer: to}} {
			if o, ok := r.offers[k]; ok {
				return k, o, true
			}
		}
		return offerKey{}, nil, false
	}

	var direct, open []offerKey
	for k := range r.offers {
		switch {
		case k.target == answerer:
			direct = append(direct, k)
		case k.target == "" && k.offerer != answerer:
			open = append(open, k)
		}
	}
	candidates := direct
	if len(candidates) == 0 {
		candidates = open
	}
	if len(candidates) != 1 {
		return offerKey{}, nil, false
	}
	return candidates[0], r.offers[candidates[0]], true
}
