package lobby

import (
	"time"

	"github.com/armon/go-metrics"
)

func timerAfter(d time.Duration) *time.Timer {
	return time.NewTimer(d)
}

// armLeaderHeartbeat (re)starts the leader-side failure-detector
// timer (T_leader, spec.md §4.4).
func (l *Lobby) armLeaderHeartbeat() {
	l.stopTimer(l.leaderHeartbeatTimer)
	l.leaderHeartbeatTimer = timerAfter(l.config.LeaderHeartbeatInterval)
}

// enterMemberRole marks the leader unreached and arms T_member — the
// initial step of spec.md §4.4's member-side detector, run whenever
// this node transitions into (or back into) following a leader.
func (l *Lobby) enterMemberRole() {
	if leader, ok := l.members[l.leader]; ok {
		leader.IsAlive = false
		l.members[l.leader] = leader
	}
	l.rearmMemberHeartbeat()
}

func (l *Lobby) rearmMemberHeartbeat() {
	l.stopTimer(l.memberHeartbeatTimer)
	l.memberHeartbeatTimer = timerAfter(l.config.MemberHeartbeatTimeout)
}

// armElectionTimer (re)starts T_elect.
func (l *Lobby) armElectionTimer() {
	l.stopTimer(l.electionTimer)
	l.electionTimer = timerAfter(l.config.ElectionTimeout)
}

// onLeaderHeartbeatTick implements the leader side of spec.md §4.4:
// any peer still unreached since the previous tick is presumed dead
// and reaped; every remaining peer is marked unreached again and a
// fresh HealthCheck is broadcast.
func (l *Lobby) onLeaderHeartbeatTick() {
	var dead []Addr
	for addr, p := range l.members {
		if addr == l.identity {
			continue
		}
		if !p.IsAlive {
			dead = append(dead, addr)
		}
	}

	for _, addr := range dead {
		delete(l.members, addr)
		l.broadcastLocked(newMemberLeft(string(l.identity), string(addr)))
		metrics.IncrCounter([]string{"lobby", "health", "member_reaped"}, 1)
	}
	if len(dead) > 0 {
		l.raiseMembersChanged()
	}

	for addr, p := range l.members {
		if addr == l.identity {
			continue
		}
		p.IsAlive = false
		l.members[addr] = p
	}

	l.broadcastLocked(newHealthCheck(string(l.identity)))
	l.armLeaderHeartbeat()
}

// onMemberHeartbeatTimeout implements the member side of spec.md
// §4.4: if the leader hasn't been heard from (directly, or via our
// own ack round-trip) since the last tick, start an election;
// otherwise mark it unreached and keep watching.
func (l *Lobby) onMemberHeartbeatTimeout() {
	leader, ok := l.members[l.leader]
	if !ok || !leader.IsAlive {
		metrics.IncrCounter([]string{"lobby", "health", "leader_presumed_dead"}, 1)
		l.startElection()
		return
	}

	leader.IsAlive = false
	l.members[l.leader] = leader
	l.rearmMemberHeartbeat()
}

// processHealthCheck implements both directions of spec.md §4.4: a
// member receiving its leader's probe acks it and marks the leader
// alive; the leader receiving an ack marks that member alive.
func (l *Lobby) processHealthCheck(msg *HealthCheck) {
	sender := Addr(msg.Sender)

	if l.isLeaderLocked() {
		if member, ok := l.members[sender]; ok {
			member.IsAlive = true
			l.members[sender] = member
		}
		return
	}

	if sender != l.leader {
		l.logger.Printf("[WARN] lobby: HealthCheck from non-leader %s while not leader, dropping", sender)
		return
	}

	if leader, ok := l.members[sender]; ok {
		leader.IsAlive = true
		l.members[sender] = leader
	}
	l.sendTo(sender, newHealthCheck(string(l.identity)))
}
