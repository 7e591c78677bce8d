package lobby

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/armon/go-metrics"
)

// role tracks which side of the failure detector (C4) is currently
// armed. Election pauses whichever role is active and the winner's
// IAmLeader/cession rearms the correct one (spec.md §4.4).
type role int

const (
	roleNone role = iota
	roleLeader
	roleMember
)

// inboundFrame is what the receive pump hands to the single-writer
// dispatch loop after decoding off the wire.
type inboundFrame struct {
	source   string
	toLeader bool
	msg      Message
}

// command lets public API methods run a closure on the dispatch
// loop's goroutine, so the peer table, leader pointer, and election
// flags are never touched from more than one goroutine (spec.md §5).
type command struct {
	fn   func()
	done chan struct{}
}

// Lobby is a single node's view of a group of peers jointly
// synchronizing application state: the membership core (C3), the
// failure detector (C4), and the Bully election (C5), all driven by
// one dispatcher loop.
type Lobby struct {
	config    *Config
	logger    *log.Logger
	transport Transport

	identity Addr
	leader   Addr
	members  peerTable

	pendingToLeader []Message
	pendingMu       sync.Mutex // guards appends to and drains of pendingToLeader

	electionInProgress bool
	okReceived         bool
	currentRole        role

	leaderHeartbeatTimer *time.Timer
	memberHeartbeatTimer *time.Timer
	electionTimer        *time.Timer

	inboxCh    chan inboundFrame
	cmdCh      chan command
	shutdownCh chan struct{}
	shutdownOnce sync.Once
	wg         sync.WaitGroup

	started bool
}

// New creates an unstarted Lobby. Call CreateLobby or JoinLobby to
// actually host or join a group.
func New(config *Config) *Lobby {
	if config == nil {
		config = DefaultConfig()
	}
	if config.LogOutput == nil {
		config.LogOutput = os.Stderr
	}

	return &Lobby{
		config:     config,
		logger:     log.New(config.LogOutput, "", log.LstdFlags),
		members:    make(peerTable),
		inboxCh:    make(chan inboundFrame, 64),
		cmdCh:      make(chan command),
		shutdownCh: make(chan struct{}),
	}
}

// CreateLobby hosts a new, one-member lobby; self becomes leader and
// the failure detector starts in leader mode.
func (l *Lobby) CreateLobby(ip string, port int, name string) error {
	transport, err := l.ensureTransport(ip, port)
	if err != nil {
		return err
	}
	l.transport = transport

	self := Peer{IP: ip, Port: port, Name: name, ID: l.randomID(nil), IsLeader: true, IsAlive: true}
	l.identity = self.Addr()
	l.leader = self.Addr()
	l.members[l.identity] = self

	l.start()
	if !l.do(func() {
		l.currentRole = roleLeader
		l.armLeaderHeartbeat()
	}) {
		return ErrShutdown
	}

	l.logger.Printf("[INFO] lobby: created lobby as %s", self)
	return nil
}

// JoinLobby sends a RequestJoin to a bootstrap peer and returns
// whether the request left the node. Success is confirmed later when
// the leader's MemberAccept arrives, which raises EventMembersChanged
// on Config.EventCh.
func (l *Lobby) JoinLobby(myName, myIP string, myPort int, lobbyIP string, lobbyPort int) (bool, error) {
	transport, err := l.ensureTransport(myIP, myPort)
	if err != nil {
		return false, err
	}
	l.transport = transport

	me := Peer{IP: myIP, Port: myPort, Name: myName, ID: -1, IsLeader: false, IsAlive: true}
	l.identity = me.Addr()
	l.members[l.identity] = me

	l.start()

	bootstrap := fmt.Sprintf("%s:%d", lobbyIP, lobbyPort)
	l.logger.Printf("[INFO] lobby: joining lobby at %s", bootstrap)

	var ok bool
	if !l.do(func() {
		ok = l.sendTo(Addr(bootstrap), newRequestJoin(string(l.identity), bootstrap, myName))
	}) {
		return false, ErrShutdown
	}
	return ok, nil
}

// LeaveLobby gracefully exits the lobby. If this node is the leader
// and other members exist, it removes itself locally and broadcasts
// Leave to every remaining member (each independently starts an
// election; Bully's highest-id rule makes them converge on the same
// winner — see SPEC_FULL.md §11 for why this departs from sending to
// a single random peer). If not leader, it notifies the leader.
func (l *Lobby) LeaveLobby() error {
	if !l.started {
		return ErrNoBackend
	}

	if !l.do(func() {
		if l.isLeaderLocked() {
			if len(l.members) > 1 {
				delete(l.members, l.identity)
				msg := newLeave(string(l.identity))
				for addr := range l.members {
					l.sendTo(addr, msg)
				}
			}
		} else {
			l.sendTo(l.leader, newLeave(string(l.identity)))
		}
	}) {
		return ErrShutdown
	}
	return nil
}

// Shutdown stops the dispatch loop, cancels both timers, and
// releases the transport. Idempotent.
func (l *Lobby) Shutdown() error {
	l.shutdownOnce.Do(func() {
		close(l.shutdownCh)
		if l.transport != nil {
			l.transport.Shutdown()
		}
	})
	l.wg.Wait()
	return nil
}

// IsLeader reports whether this node is currently the leader.
func (l *Lobby) IsLeader() bool {
	var result bool
	l.do(func() { result = l.isLeaderLocked() })
	return result
}

// Members returns a point-in-time snapshot of the peer table.
func (l *Lobby) Members() []Peer {
	var out []Peer
	l.do(func() {
		out = make([]Peer, 0, len(l.members))
		for _, p := range l.members {
			out = append(out, p)
		}
	})
	return out
}

// Self returns this node's own Peer entry.
func (l *Lobby) Self() Peer {
	var self Peer
	l.do(func() { self = l.members[l.identity] })
	return self
}

// Broadcast sends msg to every member except self. It is leader-only;
// calling it from a non-leader is a programming-contract violation
// (spec.md §7) and returns ErrNotLeader rather than sending anything.
func (l *Lobby) Broadcast(msg Message) error {
	var err error
	if !l.do(func() {
		if !l.isLeaderLocked() {
			err = ErrNotLeader
			return
		}
		l.broadcastLocked(msg)
	}) {
		return ErrShutdown
	}
	return err
}

// SendTo sends msg directly to target, setting the to_leader envelope
// flag when target is the current leader.
func (l *Lobby) SendTo(target Addr, msg Message) bool {
	var ok bool
	l.do(func() { ok = l.sendTo(target, msg) })
	return ok
}

// SendToLeader sends msg to the current leader.
func (l *Lobby) SendToLeader(msg Message) bool {
	var ok bool
	l.do(func() { ok = l.sendTo(l.leader, msg) })
	return ok
}

// SubmitApplication is the entry point used by the UI/player layer
// (spec.md §6) to submit an application command. On the leader this
// totally orders and broadcasts it immediately; on a member it routes
// to the leader.
func (l *Lobby) SubmitApplication(msg Message) {
	l.do(func() {
		if l.isLeaderLocked() {
			l.broadcastLocked(msg)
			l.deliverApplication(l.identity, msg)
		} else if !l.sendTo(l.leader, msg) {
			l.enqueuePending(msg)
		}
	})
}

// --- internal plumbing ----------------------------------------------------

func (l *Lobby) ensureTransport(ip string, port int) (Transport, error) {
	if l.config.Transport != nil {
		return l.config.Transport, nil
	}
	return NewTCPTransport(net.JoinHostPort(ip, strconv.Itoa(port)))
}

func (l *Lobby) start() {
	if l.started {
		return
	}
	l.started = true

	l.wg.Add(2)
	go l.receivePump()
	go l.run()
}

// receivePump blocks on transport.Receive, decodes each frame, and
// hands it to the dispatch loop. Decoding happens off the
// single-writer goroutine since it touches no shared state.
func (l *Lobby) receivePump() {
	defer l.wg.Done()
	for {
		select {
		case <-l.shutdownCh:
			return
		default:
		}

		source, frame := l.transport.Receive()
		if frame == nil {
			continue
		}

		toLeader, msg, err := decodeEnvelope(frame)
		if err != nil {
			l.logger.Printf("[WARN] lobby: dropping malformed frame from %s: %v", source, err)
			continue
		}

		select {
		case l.inboxCh <- inboundFrame{source: source, toLeader: toLeader, msg: msg}:
		case <-l.shutdownCh:
			return
		}
	}
}

// run is the single-writer dispatch loop: the peer table, leader
// pointer, and election flags are mutated only here.
func (l *Lobby) run() {
	defer l.wg.Done()
	for {
		select {
		case cmd := <-l.cmdCh:
			cmd.fn()
			close(cmd.done)

		case frame := <-l.inboxCh:
			l.dispatch(frame)

		case <-l.leaderHeartbeatChan():
			l.onLeaderHeartbeatTick()

		case <-l.memberHeartbeatChan():
			l.onMemberHeartbeatTimeout()

		case <-l.electionTimerChan():
			l.onElectionTimeout()

		case <-l.shutdownCh:
			l.stopTimer(l.leaderHeartbeatTimer)
			l.stopTimer(l.memberHeartbeatTimer)
			l.stopTimer(l.electionTimer)
			return
		}
	}
}

// do runs fn on the dispatch loop and blocks until it completes. It is
// the only way public methods touch Lobby state.
// do runs fn on the dispatch loop and reports whether it actually ran.
// It returns false without running fn once Shutdown has closed
// shutdownCh, so callers that need to surface that to their own
// caller can return ErrShutdown instead of silently no-oping.
func (l *Lobby) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case l.cmdCh <- command{fn: fn, done: done}:
		<-done
		return true
	case <-l.shutdownCh:
		return false
	}
}

func (l *Lobby) leaderHeartbeatChan() <-chan time.Time {
	if l.leaderHeartbeatTimer == nil {
		return nil
	}
	return l.leaderHeartbeatTimer.C
}

func (l *Lobby) memberHeartbeatChan() <-chan time.Time {
	if l.memberHeartbeatTimer == nil {
		return nil
	}
	return l.memberHeartbeatTimer.C
}

func (l *Lobby) electionTimerChan() <-chan time.Time {
	if l.electionTimer == nil {
		return nil
	}
	return l.electionTimer.C
}

func (l *Lobby) stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (l *Lobby) isLeaderLocked() bool {
	return l.identity == l.leader
}

func (l *Lobby) randomID(existing peerTable) int32 {
	if existing == nil {
		existing = l.members
	}
	for {
		id := int32(rand.Uint32())
		if !existing.hasID(id) {
			return id
		}
	}
}

func (l *Lobby) enqueuePending(msg Message) {
	l.pendingMu.Lock()
	l.pendingToLeader = append(l.pendingToLeader, msg)
	l.pendingMu.Unlock()
	l.startElection()
}

func (l *Lobby) drainPendingToLeader() {
	l.pendingMu.Lock()
	pending := l.pendingToLeader
	l.pendingToLeader = nil
	l.pendingMu.Unlock()

	for _, msg := range pending {
		if l.isLeaderLocked() {
			l.broadcastLocked(msg)
			l.deliverApplication(l.identity, msg)
		} else if !l.sendTo(l.leader, msg) {
			l.pendingMu.Lock()
			l.pendingToLeader = append(l.pendingToLeader, msg)
			l.pendingMu.Unlock()
		}
	}
}

func (l *Lobby) deliverApplication(source Addr, msg Message) {
	if l.config.ApplicationCh == nil {
		return
	}
	select {
	case l.config.ApplicationCh <- ApplicationEvent{Source: source, Message: msg}:
	default:
		l.logger.Printf("[WARN] lobby: application channel full, dropping %T", msg)
	}
}

func (l *Lobby) raiseEvent(e Event) {
	if l.config.EventCh == nil {
		return
	}
	select {
	case l.config.EventCh <- e:
	default:
		l.logger.Printf("[WARN] lobby: event channel full, dropping %s", e.Type)
	}
}

func (l *Lobby) raiseMembersChanged() {
	l.raiseEvent(Event{
		Type:    EventMembersChanged,
		Members: map[Addr]Peer(l.members.clone()),
		Self:    l.identity,
		Leader:  l.leader,
	})
	metrics.IncrCounter([]string{"lobby", "members_changed"}, 1)
}
