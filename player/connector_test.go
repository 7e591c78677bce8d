package player

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/lobbysync/lobbysync/lobby"
)

type fakePlayer struct {
	state  State
	paused bool
}

func (f *fakePlayer) GetState() State   { return f.state }
func (f *fakePlayer) SetState(s State)  { f.state = s }
func (f *fakePlayer) Pause()            { f.paused = true }
func (f *fakePlayer) Play()             { f.paused = false }
func (f *fakePlayer) SetSong(index int) { f.state.Index = index }
func (f *fakePlayer) Seek(ms int64)     { f.state.Timestamp = ms }

func newTestLobby(t *testing.T, net *lobby.MemoryNetwork, name string) (*lobby.Lobby, chan lobby.Event, chan lobby.ApplicationEvent) {
	t.Helper()
	eventCh := make(chan lobby.Event, 16)
	appCh := make(chan lobby.ApplicationEvent, 16)
	cfg := lobby.DefaultConfig()
	cfg.LogOutput = &bytes.Buffer{}
	cfg.EventCh = eventCh
	cfg.ApplicationCh = appCh
	cfg.Transport = lobby.NewMemoryTransport(net, name)
	return lobby.New(cfg), eventCh, appCh
}

func TestConnectorAppliesBroadcastCommands(t *testing.T) {
	net := lobby.NewMemoryNetwork()

	leaderLobby, _, leaderAppCh := newTestLobby(t, net, "127.0.0.1:9001")
	if err := leaderLobby.CreateLobby("127.0.0.1", 9001, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	defer leaderLobby.Shutdown()

	p := &fakePlayer{}
	logger := log.New(&bytes.Buffer{}, "", 0)
	conn := NewConnector(p, leaderLobby, make(chan lobby.Event), leaderAppCh, logger)
	go conn.Run()
	defer conn.Stop()

	conn.RequestSkip(3)

	deadline := time.After(time.Second)
	for p.state.Index != 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for skip to apply, state=%+v", p.state)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestConnectorPushesStateToNewMember(t *testing.T) {
	net := lobby.NewMemoryNetwork()

	leaderLobby, leaderEventCh, leaderAppCh := newTestLobby(t, net, "127.0.0.1:9101")
	if err := leaderLobby.CreateLobby("127.0.0.1", 9101, "leader"); err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	defer leaderLobby.Shutdown()

	p := &fakePlayer{state: State{Index: 7, Timestamp: 12345, Playing: true}}
	logger := log.New(&bytes.Buffer{}, "", 0)
	conn := NewConnector(p, leaderLobby, leaderEventCh, leaderAppCh, logger)
	go conn.Run()
	defer conn.Stop()

	joinerAppCh := make(chan lobby.ApplicationEvent, 16)
	joinerCfg := lobby.DefaultConfig()
	joinerCfg.LogOutput = &bytes.Buffer{}
	joinerCfg.ApplicationCh = joinerAppCh
	joinerCfg.Transport = lobby.NewMemoryTransport(net, "127.0.0.1:9102")
	joinerLobby := lobby.New(joinerCfg)
	defer joinerLobby.Shutdown()

	if _, err := joinerLobby.JoinLobby("joiner", "127.0.0.1", 9102, "127.0.0.1", 9101); err != nil {
		t.Fatalf("JoinLobby: %v", err)
	}

	select {
	case ae := <-joinerAppCh:
		state, ok := ae.Message.(*lobby.State)
		if !ok {
			t.Fatalf("expected a State message, got %T", ae.Message)
		}
		if state.Index != 7 || state.Timestamp != 12345 || !state.Playing {
			t.Fatalf("unexpected pushed state: %+v", state)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state push to joiner")
	}
}
