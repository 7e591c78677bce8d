package lobby

import "errors"

var (
	// ErrUnknownMessage is returned by the codec when a frame carries
	// a (family, subtype) pair no known variant matches. Per §7 this
	// is a protocol violation: logged and dropped, never fatal.
	ErrUnknownMessage = errors.New("lobby: unknown message type")

	// ErrNotLeader is the assertion-like, programming-contract error
	// raised by Broadcast when called on a non-leader node.
	ErrNotLeader = errors.New("lobby: only the leader may broadcast")

	// ErrShutdown is returned by CreateLobby, JoinLobby, LeaveLobby and
	// Broadcast when attempted after Shutdown; per §7 these are no-ops,
	// not faults. The other public methods return zero values instead.
	ErrShutdown = errors.New("lobby: shutdown")

	// ErrNoBackend is returned when Join/Create haven't been called yet.
	ErrNoBackend = errors.New("lobby: not hosting or joined to a lobby")
)
