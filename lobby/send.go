package lobby

import (
	"fmt"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-multierror"
)

// sendTo is the low-level send used by every other operation. It sets
// the to_leader envelope flag whenever target is the current leader,
// and is a pure send: it never touches the pending-to-leader buffer or
// triggers an election as a side effect. Callers that need a failed
// to_leader application send retried once a new leader emerges own
// that bookkeeping themselves (see SubmitApplication,
// drainPendingToLeader), so a single failure is never enqueued twice.
//
// Must only be called from the dispatch loop.
func (l *Lobby) sendTo(target Addr, msg Message) bool {
	toLeader := target == l.leader && target != ""

	frame, err := encodeEnvelope(toLeader, msg)
	if err != nil {
		l.logger.Printf("[ERR] lobby: failed to encode %T: %v", msg, err)
		return false
	}

	ok := l.transport.Send(string(target), frame)
	if !ok {
		metrics.IncrCounter([]string{"lobby", "send_failure"}, 1)
	}
	return ok
}

// broadcastLocked sends msg to every member but self. On any send
// failure the member is removed silently; a single batched
// MembersChanged event fires at the end rather than one per removal
// (spec.md §4.3).
//
// Must only be called from the dispatch loop, and only when this node
// is the leader — callers are responsible for that check since this
// helper is also used for the locally-looped-back path in promote().
func (l *Lobby) broadcastLocked(msg Message) {
	var unavailable []Addr
	var errs *multierror.Error
	for addr := range l.members {
		if addr == l.identity {
			continue
		}
		if !l.sendTo(addr, msg) {
			unavailable = append(unavailable, addr)
			errs = multierror.Append(errs, fmt.Errorf("%s unreachable broadcasting %T", addr, msg))
		}
	}

	if len(unavailable) == 0 {
		return
	}
	l.logger.Printf("[WARN] lobby: dropping %d member(s) during broadcast: %v", len(unavailable), errs)
	for _, addr := range unavailable {
		delete(l.members, addr)
	}
	l.raiseMembersChanged()
}
