package lobby

import (
	"io"
	"os"
	"time"
)

// Config carries everything a Lobby needs to create or join a group.
// After Create/Join is called the configuration should no longer be
// modified by the caller, matching the convention in serf.Config.
type Config struct {
	// NodeName is a human label for this node. Lobby does not read it:
	// Peer.Name comes from the name passed to CreateLobby/JoinLobby.
	NodeName string

	// BindAddr/BindPort are not read by Lobby: the default TCPTransport
	// listens on the ip/port passed to CreateLobby/JoinLobby, and a
	// Transport set directly is used as given.
	BindAddr string
	BindPort int

	// Transport overrides the default TCPTransport, e.g. to plug in a
	// MemoryTransport in tests.
	Transport Transport

	// LeaderHeartbeatInterval (T_leader) is how often the leader
	// marks members unreached and re-broadcasts HealthCheck; a member
	// still unreached after one more interval is presumed dead.
	LeaderHeartbeatInterval time.Duration

	// MemberHeartbeatTimeout (T_member) is how long a member waits
	// without hearing from the leader before starting an election.
	// Must be strictly greater than LeaderHeartbeatInterval so
	// ordinary jitter never trips it (spec.md §4.4).
	MemberHeartbeatTimeout time.Duration

	// ElectionTimeout (T_elect) bounds how long a candidate waits for
	// an ElectionOk before promoting itself.
	ElectionTimeout time.Duration

	// EventCh, if non-nil, receives MembersChanged/NewMember events.
	EventCh chan Event

	// ApplicationCh, if non-nil, receives every inbound Application
	// message (opaque to the lobby itself, consumed by the player
	// package or a caller-supplied equivalent).
	ApplicationCh chan ApplicationEvent

	// LogOutput is where the lobby's own diagnostic logging goes.
	// Defaults to os.Stderr, matching serf.Config.
	LogOutput io.Writer
}

// DefaultConfig returns a Config with the timer values given in
// spec.md §4.4/§4.5: T_leader=5s, T_member=8s, T_elect=5s.
func DefaultConfig() *Config {
	return &Config{
		LeaderHeartbeatInterval: 5 * time.Second,
		MemberHeartbeatTimeout:  8 * time.Second,
		ElectionTimeout:         5 * time.Second,
		LogOutput:               os.Stderr,
	}
}
