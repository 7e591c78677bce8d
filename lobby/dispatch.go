package lobby

import (
	"net"
	"strconv"
)

// dispatch rejects stale-routed traffic and otherwise routes one
// decoded frame to its handler by message type, exactly the
// single-receive-loop design of spec.md §4.3 "Dispatcher".
func (l *Lobby) dispatch(frame inboundFrame) {
	if frame.toLeader && !l.isLeaderLocked() {
		l.logger.Printf("[WARN] lobby: received message for the leader, but I'm not the leader")
		return
	}

	switch msg := frame.msg.(type) {
	case *RequestJoin:
		l.processRequestJoin(msg)
	case *RequestNewMember:
		l.processRequestNewMember(msg)
	case *NewMember:
		l.processNewMember(msg)
	case *MemberAccept:
		l.processMemberAccept(msg)
	case *Leave:
		l.processLeave(msg)
	case *MemberLeft:
		l.processMemberLeft(msg)
	case *HealthCheck:
		l.processHealthCheck(msg)
	case *ElectionStart:
		l.processElectionStart(msg)
	case *ElectionOk:
		l.processElectionOk(msg)
	case *IAmLeader:
		l.processIAmLeader(msg)
	case *Stop, *Resume, *Set, *JumpToTimestamp, *State:
		l.processApplication(Addr(frame.source), frame.toLeader, msg)
	default:
		l.logger.Printf("[WARN] lobby: dropping unhandled message type %T", msg)
	}
}

// processApplication implements the leader-total-order rule of
// spec.md §5: a message with to_leader=true (only ever delivered to
// the leader, see dispatch above) is broadcast onward and delivered
// locally in the order the leader processed it; a broadcast received
// as a plain member is delivered locally only.
func (l *Lobby) processApplication(source Addr, toLeader bool, msg Message) {
	if l.isLeaderLocked() {
		l.broadcastLocked(msg)
	}
	l.deliverApplication(source, msg)
}

// --- membership (C3) -------------------------------------------------

func (l *Lobby) processRequestJoin(msg *RequestJoin) {
	joinerAddr := Addr(msg.Sender)

	if l.isLeaderLocked() {
		l.admitMember(joinerAddr, msg.Name)
		return
	}

	// Not the leader: propagate to the leader on the joiner's behalf.
	l.sendTo(l.leader, newRequestNewMember(string(l.identity), msg.Name, msg.Sender))
}

func (l *Lobby) processRequestNewMember(msg *RequestNewMember) {
	if !l.isLeaderLocked() {
		l.logger.Printf("[WARN] lobby: received RequestNewMember but am not leader, dropping")
		return
	}
	l.admitMember(Addr(msg.NewMemberAddress), msg.Name)
}

// admitMember is the leader-only join sequence of spec.md §4.3:
// allocate an id, broadcast NewMember to the members admitted so far
// (the joiner isn't in the table yet, so it's naturally excluded),
// insert the peer locally, then reply directly with the full table.
func (l *Lobby) admitMember(addr Addr, name string) {
	if _, exists := l.members[addr]; exists {
		l.logger.Printf("[WARN] lobby: %s already a member, ignoring duplicate join", addr)
		return
	}

	id := l.randomID(l.members)
	l.broadcastLocked(newNewMember(string(l.identity), name, string(addr), id))

	ip, port := splitAddr(addr)
	l.members[addr] = Peer{IP: ip, Port: port, Name: name, ID: id, IsLeader: false, IsAlive: true}
	l.raiseMembersChanged()

	l.sendTo(addr, newMemberAccept(string(l.identity), l.members.toWire()))
	l.raiseEvent(Event{Type: EventNewMember, NewMemberAddr: addr})
}

func (l *Lobby) processNewMember(msg *NewMember) {
	addr := Addr(msg.NewMemberAddress)
	if _, exists := l.members[addr]; exists {
		return
	}
	ip, port := splitAddr(addr)
	l.members[addr] = Peer{IP: ip, Port: port, Name: msg.Name, ID: msg.NewMemberID, IsLeader: false, IsAlive: true}
	l.raiseMembersChanged()
}

func (l *Lobby) processMemberAccept(msg *MemberAccept) {
	l.leader = Addr(msg.Sender)
	l.members = peerTableFromWire(msg.Members)
	if self, ok := l.members[l.identity]; ok {
		self.IsAlive = true
		l.members[l.identity] = self
	}
	l.currentRole = roleMember
	l.enterMemberRole()
	l.raiseMembersChanged()
}

func (l *Lobby) processLeave(msg *Leave) {
	sender := Addr(msg.Sender)

	if l.isLeaderLocked() {
		if _, ok := l.members[sender]; !ok {
			return
		}
		delete(l.members, sender)
		l.broadcastLocked(newMemberLeft(string(l.identity), msg.Sender))
		l.raiseMembersChanged()
		return
	}

	// A member only receives Leave directly from the departing leader
	// (spec.md §9's redesign: the leader broadcasts Leave to every
	// remaining member rather than a single random one).
	if sender == l.leader {
		l.startElection()
	}
}

func (l *Lobby) processMemberLeft(msg *MemberLeft) {
	addr := Addr(msg.MemberAddress)
	if _, ok := l.members[addr]; !ok {
		return
	}
	delete(l.members, addr)
	l.raiseMembersChanged()
}

// splitAddr parses "ip:port" back into its parts for Peer population.
// Malformed addresses (should never occur; addresses always originate
// from Peer.Addr()) leave port at 0 rather than panicking.
func splitAddr(addr Addr) (string, int) {
	host, portStr, err := net.SplitHostPort(string(addr))
	if err != nil {
		return string(addr), 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
