package lobby

import (
	"testing"
	"time"

	"github.com/lobbysync/lobbysync/testutil"
)

func newTestLobby(t *testing.T, net *MemoryNetwork, addr string) (*Lobby, *Config) {
	cfg := DefaultConfig()
	cfg.LeaderHeartbeatInterval = 40 * time.Millisecond
	cfg.MemberHeartbeatTimeout = 80 * time.Millisecond
	cfg.ElectionTimeout = 40 * time.Millisecond
	cfg.Transport = NewMemoryTransport(net, addr)
	cfg.EventCh = make(chan Event, 16)
	cfg.ApplicationCh = make(chan ApplicationEvent, 16)
	cfg.LogOutput = testutil.TestWriter(t)
	return New(cfg), cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestTwoNodeAdmission(t *testing.T) {
	net := NewMemoryNetwork()

	leader, _ := newTestLobby(t, net, "127.0.0.1:9001")
	if err := leader.CreateLobby("127.0.0.1", 9001, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	defer leader.Shutdown()

	joiner, _ := newTestLobby(t, net, "127.0.0.1:9002")
	ok, err := joiner.JoinLobby("joiner", "127.0.0.1", 9002, "127.0.0.1", 9001)
	if err != nil || !ok {
		t.Fatalf("JoinLobby: ok=%v err=%v", ok, err)
	}
	defer joiner.Shutdown()

	waitFor(t, time.Second, func() bool { return len(leader.Members()) == 2 })
	waitFor(t, time.Second, func() bool { return len(joiner.Members()) == 2 })

	if joiner.IsLeader() {
		t.Fatalf("joiner should not consider itself leader")
	}
	if !leader.IsLeader() {
		t.Fatalf("leader should still consider itself leader")
	}
}

func TestApplicationCommandOrdering(t *testing.T) {
	net := NewMemoryNetwork()

	leader, leaderCfg := newTestLobby(t, net, "127.0.0.1:9101")
	if err := leader.CreateLobby("127.0.0.1", 9101, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	defer leader.Shutdown()

	member, memberCfg := newTestLobby(t, net, "127.0.0.1:9102")
	if ok, err := member.JoinLobby("member", "127.0.0.1", 9102, "127.0.0.1", 9101); err != nil || !ok {
		t.Fatalf("JoinLobby: ok=%v err=%v", ok, err)
	}
	defer member.Shutdown()

	waitFor(t, time.Second, func() bool { return len(member.Members()) == 2 })

	member.SubmitApplication(NewStop())
	member.SubmitApplication(NewSet(3))

	// Every node must see the Stop before the Set, in the order the
	// leader processed them.
	var sawOnLeader, sawOnMember bool
	select {
	case ev := <-leaderCfg.ApplicationCh:
		if _, ok := ev.Message.(*Stop); !ok {
			t.Fatalf("leader saw %T first, want *Stop", ev.Message)
		}
	case <-time.After(time.Second):
		t.Fatalf("leader never saw the Stop command")
	}
	select {
	case ev := <-leaderCfg.ApplicationCh:
		if s, ok := ev.Message.(*Set); ok && s.Index == 3 {
			sawOnLeader = true
		}
	case <-time.After(time.Second):
	}
	select {
	case ev := <-memberCfg.ApplicationCh:
		if _, ok := ev.Message.(*Stop); !ok {
			t.Fatalf("member saw %T first, want *Stop", ev.Message)
		}
	case <-time.After(time.Second):
		t.Fatalf("member never saw the Stop command")
	}
	select {
	case ev := <-memberCfg.ApplicationCh:
		if s, ok := ev.Message.(*Set); ok && s.Index == 3 {
			sawOnMember = true
		}
	case <-time.After(time.Second):
	}

	if !sawOnLeader {
		t.Fatalf("leader never saw the application command")
	}
	if !sawOnMember {
		t.Fatalf("submitting member never saw its own command echoed back")
	}
}

func TestLeaderFailoverPromotesHighestID(t *testing.T) {
	net := NewMemoryNetwork()

	leader, _ := newTestLobby(t, net, "127.0.0.1:9201")
	if err := leader.CreateLobby("127.0.0.1", 9201, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}

	memberA, _ := newTestLobby(t, net, "127.0.0.1:9202")
	if ok, err := memberA.JoinLobby("a", "127.0.0.1", 9202, "127.0.0.1", 9201); err != nil || !ok {
		t.Fatalf("JoinLobby a: ok=%v err=%v", ok, err)
	}
	defer memberA.Shutdown()

	memberB, _ := newTestLobby(t, net, "127.0.0.1:9203")
	if ok, err := memberB.JoinLobby("b", "127.0.0.1", 9203, "127.0.0.1", 9201); err != nil || !ok {
		t.Fatalf("JoinLobby b: ok=%v err=%v", ok, err)
	}
	defer memberB.Shutdown()

	waitFor(t, time.Second, func() bool { return len(memberA.Members()) == 3 && len(memberB.Members()) == 3 })

	// Kill the leader's transport without a graceful Leave, so the
	// survivors must detect it via the heartbeat timeout, not a Leave
	// message.
	leader.Shutdown()

	waitFor(t, 2*time.Second, func() bool {
		return memberA.IsLeader() || memberB.IsLeader()
	})

	aLeads, bLeads := memberA.IsLeader(), memberB.IsLeader()
	if aLeads == bLeads {
		t.Fatalf("expected exactly one survivor to become leader, got a=%v b=%v", aLeads, bLeads)
	}

	var winner, loser *Lobby
	if aLeads {
		winner, loser = memberA, memberB
	} else {
		winner, loser = memberB, memberA
	}

	winnerSelf := winner.Self()
	loserSelf := loser.Self()
	if winnerSelf.ID <= loserSelf.ID {
		t.Fatalf("the higher id should have won the election: winner id=%d loser id=%d", winnerSelf.ID, loserSelf.ID)
	}
}

func TestGracefulLeaderLeaveTriggersElection(t *testing.T) {
	net := NewMemoryNetwork()

	leader, _ := newTestLobby(t, net, "127.0.0.1:9301")
	if err := leader.CreateLobby("127.0.0.1", 9301, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}

	member, _ := newTestLobby(t, net, "127.0.0.1:9302")
	if ok, err := member.JoinLobby("member", "127.0.0.1", 9302, "127.0.0.1", 9301); err != nil || !ok {
		t.Fatalf("JoinLobby: ok=%v err=%v", ok, err)
	}
	defer member.Shutdown()

	waitFor(t, time.Second, func() bool { return len(member.Members()) == 2 })

	if err := leader.LeaveLobby(); err != nil {
		t.Fatalf("LeaveLobby: %v", err)
	}
	leader.Shutdown()

	waitFor(t, time.Second, func() bool { return member.IsLeader() })
}
