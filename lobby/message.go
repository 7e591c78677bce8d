package lobby

// messageFamily is the outer discriminant carried on every wire
// message (§6 of the spec: "type", integer 1..4).
type messageFamily uint8

const (
	familyLobby       messageFamily = 1
	familyHeartbeat    messageFamily = 2
	familyElection     messageFamily = 3
	familyApplication  messageFamily = 4
)

// lobbyType is the inner subtype tag for the Lobby family.
type lobbyType uint8

const (
	lobbyRequestJoin      lobbyType = 1
	lobbyRequestNewMember lobbyType = 2
	lobbyNewMember        lobbyType = 3
	lobbyMemberAccept     lobbyType = 4
	lobbyLeave            lobbyType = 5
	lobbyMemberLeft       lobbyType = 6
)

// electionType is the inner subtype tag for the Election family.
type electionType uint8

const (
	electionStart    electionType = 1
	electionOk       electionType = 2
	electionIAmLeader electionType = 3
)

// applicationType is the inner subtype tag for the opaque Application
// family (play/pause/seek/song-select, consumed by the media engine).
type applicationType uint8

const (
	appStop            applicationType = 1
	appResume          applicationType = 2
	appSet             applicationType = 3
	appJumpToTimestamp applicationType = 4
	appState           applicationType = 5
)

// Message is implemented by every wire variant. family/subtype are
// used by the codec to pick the concrete Go type on decode; sender is
// used by handlers that need the originating address.
type Message interface {
	family() messageFamily
	subtype() uint8
}

type header struct {
	Family  messageFamily `codec:"type"`
	Subtype uint8         `codec:"subtype,omitempty"`
}

func (h header) family() messageFamily { return h.Family }
func (h header) subtype() uint8        { return h.Subtype }

// --- Lobby family -----------------------------------------------------

// RequestJoin is sent by a joiner to its bootstrap peer.
type RequestJoin struct {
	header
	Sender string `codec:"sender"`
	Target string `codec:"target"`
	Name   string `codec:"name"`
}

func newRequestJoin(sender, target, name string) *RequestJoin {
	return &RequestJoin{header{familyLobby, uint8(lobbyRequestJoin)}, sender, target, name}
}

// RequestNewMember is forwarded by a non-leader bootstrap peer to the
// leader on behalf of a joiner.
type RequestNewMember struct {
	header
	Sender            string `codec:"sender"`
	Name              string `codec:"name"`
	NewMemberAddress  string `codec:"new_member_address"`
}

func newRequestNewMember(sender, name, newMemberAddress string) *RequestNewMember {
	return &RequestNewMember{header{familyLobby, uint8(lobbyRequestNewMember)}, sender, name, newMemberAddress}
}

// NewMember is broadcast by the leader once it admits a joiner.
type NewMember struct {
	header
	Sender           string `codec:"sender"`
	Name             string `codec:"name"`
	NewMemberAddress string `codec:"new_member_address"`
	NewMemberID      int32  `codec:"new_member_id"`
}

func newNewMember(sender, name, newMemberAddress string, id int32) *NewMember {
	return &NewMember{header{familyLobby, uint8(lobbyNewMember)}, sender, name, newMemberAddress, id}
}

// MemberAccept is the leader's direct reply to a joiner, carrying the
// full peer table.
type MemberAccept struct {
	header
	Sender  string          `codec:"sender"`
	Members map[string]Peer `codec:"members"`
}

func newMemberAccept(sender string, members map[string]Peer) *MemberAccept {
	return &MemberAccept{header{familyLobby, uint8(lobbyMemberAccept)}, sender, members}
}

// Leave is sent either by a departing non-leader to the leader, or by
// a departing leader to (all) remaining members to trigger election.
type Leave struct {
	header
	Sender string `codec:"sender"`
}

func newLeave(sender string) *Leave {
	return &Leave{header{familyLobby, uint8(lobbyLeave)}, sender}
}

// MemberLeft is broadcast by the leader once it has removed a member,
// whether by graceful leave or health-check timeout.
type MemberLeft struct {
	header
	Sender        string `codec:"sender"`
	MemberAddress string `codec:"member_address"`
}

func newMemberLeft(sender, memberAddress string) *MemberLeft {
	return &MemberLeft{header{familyLobby, uint8(lobbyMemberLeft)}, sender, memberAddress}
}

// --- Heartbeat family ---------------------------------------------------

// HealthCheck is exchanged bidirectionally between leader and members.
type HealthCheck struct {
	header
	Sender string `codec:"sender"`
}

func newHealthCheck(sender string) *HealthCheck {
	return &HealthCheck{header{Family: familyHeartbeat}, sender}
}

// --- Election family -----------------------------------------------------

type ElectionStart struct {
	header
	Sender string `codec:"sender"`
}

func newElectionStart(sender string) *ElectionStart {
	return &ElectionStart{header{familyElection, uint8(electionStart)}, sender}
}

type ElectionOk struct {
	header
	Sender string `codec:"sender"`
}

func newElectionOk(sender string) *ElectionOk {
	return &ElectionOk{header{familyElection, uint8(electionOk)}, sender}
}

type IAmLeader struct {
	header
	Sender string `codec:"sender"`
}

func newIAmLeader(sender string) *IAmLeader {
	return &IAmLeader{header{familyElection, uint8(electionIAmLeader)}, sender}
}

// --- Application family (opaque to the core) -----------------------------

type Stop struct{ header }

func NewStop() *Stop { return &Stop{header{familyApplication, uint8(appStop)}} }

type Resume struct{ header }

func NewResume() *Resume { return &Resume{header{familyApplication, uint8(appResume)}} }

type Set struct {
	header
	Index int `codec:"index"`
}

func NewSet(index int) *Set { return &Set{header{familyApplication, uint8(appSet)}, index} }

type JumpToTimestamp struct {
	header
	Destination int64 `codec:"destination"`
}

func NewJumpToTimestamp(destinationMs int64) *JumpToTimestamp {
	return &JumpToTimestamp{header{familyApplication, uint8(appJumpToTimestamp)}, destinationMs}
}

type State struct {
	header
	Index     int   `codec:"index"`
	Timestamp int64 `codec:"timestamp"`
	Playing   bool  `codec:"playing"`
}

func NewState(index int, timestampMs int64, playing bool) *State {
	return &State{header{familyApplication, uint8(appState)}, index, timestampMs, playing}
}
