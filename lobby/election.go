package lobby

import "github.com/armon/go-metrics"

// startElection begins the Bully procedure of spec.md §4.5. It is
// idempotent: calling it while an election is already in progress is
// a no-op, since ElectionStart handling only re-enters it when it
// isn't already electing.
func (l *Lobby) startElection() {
	if l.electionInProgress {
		return
	}
	l.electionInProgress = true
	l.okReceived = false
	metrics.IncrCounter([]string{"lobby", "election", "started"}, 1)

	// Pause the failure detector so a slow election doesn't cascade
	// into a second one.
	l.stopTimer(l.leaderHeartbeatTimer)
	l.leaderHeartbeatTimer = nil
	l.stopTimer(l.memberHeartbeatTimer)
	l.memberHeartbeatTimer = nil

	delete(l.members, l.leader)

	self := l.members[l.identity]
	higher := l.members.higherIDPeers(self)

	if len(higher) == 0 {
		l.promote()
		return
	}

	for _, peer := range higher {
		l.sendTo(peer.Addr(), newElectionStart(string(l.identity)))
	}
	l.armElectionTimer()
}

// promote makes self the leader: updates the table, broadcasts
// IAmLeader, restarts the failure detector in leader mode, and drains
// anything that was waiting on a leader to exist.
func (l *Lobby) promote() {
	self := l.members[l.identity]
	self.IsLeader = true
	self.IsAlive = true
	l.members[l.identity] = self
	l.leader = l.identity

	l.electionInProgress = false
	l.stopTimer(l.electionTimer)
	l.electionTimer = nil

	metrics.IncrCounter([]string{"lobby", "election", "won"}, 1)
	l.broadcastLocked(newIAmLeader(string(l.identity)))

	l.currentRole = roleLeader
	l.armLeaderHeartbeat()

	l.drainPendingToLeader()
	l.raiseMembersChanged()
}

func (l *Lobby) onElectionTimeout() {
	l.electionTimer = nil
	if !l.okReceived {
		l.promote()
	}
}

// processElectionStart implements the per-message rules of spec.md
// §4.5: a current leader always answers ElectionOk; otherwise a
// higher id answers ElectionOk and (if not already electing) starts
// its own election, while a lower id silently waits for IAmLeader.
func (l *Lobby) processElectionStart(msg *ElectionStart) {
	fromAddr := Addr(msg.Sender)
	fromPeer, ok := l.members[fromAddr]
	if !ok {
		l.logger.Printf("[WARN] lobby: ElectionStart from unknown peer %s, dropping", fromAddr)
		return
	}

	if l.isLeaderLocked() {
		l.sendTo(fromAddr, newElectionOk(string(l.identity)))
		return
	}

	self := l.members[l.identity]
	if self.ID > fromPeer.ID {
		l.sendTo(fromAddr, newElectionOk(string(l.identity)))
		if !l.electionInProgress {
			l.startElection()
		}
	}
	// self.ID < fromPeer.ID: wait silently for IAmLeader.
}

func (l *Lobby) processElectionOk(msg *ElectionOk) {
	if !l.electionInProgress {
		return
	}
	l.okReceived = true
	l.stopTimer(l.electionTimer)
	l.electionTimer = nil
}

// processIAmLeader implements spec.md §4.5's acceptance rule: ignored
// if from equals the current leader (duplicate announcement); a
// current leader cedes only to a strictly higher id, otherwise the
// stale claim is logged and ignored.
func (l *Lobby) processIAmLeader(msg *IAmLeader) {
	fromAddr := Addr(msg.Sender)
	if fromAddr == l.leader {
		return
	}

	fromPeer, ok := l.members[fromAddr]
	if !ok {
		l.logger.Printf("[WARN] lobby: IAmLeader from unknown peer %s, dropping", fromAddr)
		return
	}

	if l.isLeaderLocked() {
		self := l.members[l.identity]
		if fromPeer.ID <= self.ID {
			l.logger.Printf("[WARN] lobby: stale IAmLeader from lower-id peer %s, ignoring", fromAddr)
			return
		}
		self.IsLeader = false
		l.members[l.identity] = self
	}

	if prev, ok := l.members[l.leader]; ok && !prev.IsAlive && l.leader != fromAddr {
		delete(l.members, l.leader)
	}

	l.leader = fromAddr
	fromPeer.IsLeader = true
	fromPeer.IsAlive = true
	l.members[fromAddr] = fromPeer

	l.electionInProgress = false
	l.stopTimer(l.electionTimer)
	l.electionTimer = nil

	l.drainPendingToLeader()

	l.currentRole = roleMember
	l.enterMemberRole()

	l.raiseMembersChanged()
}
