package lobby

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// jsonHandle is shared by every encode/decode call. Serf's own codec
// (serf/messages.go, serf/util.go) reaches for this same package for
// its msgpack wire format; the lobby protocol asks for a self-
// describing textual form instead, so we reuse the library with its
// JSON handle rather than its msgpack one.
var jsonHandle = newJSONHandle()

func newJSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	// envelope.Message is codec.Raw, decoded/encoded as an opaque
	// pre-serialized blob across the two-pass decode in decodeEnvelope.
	// Raw must be explicitly enabled or ugorji's codec rejects it.
	h.Raw = true
	return h
}

// envelope is the wire wrapper described in spec.md §4.2/§6:
// {"to_leader": bool, "message": {...}}. Message is kept as raw bytes
// on decode so the concrete variant can be chosen once its header
// (type/subtype) has been read out of it.
type envelope struct {
	ToLeader bool      `codec:"to_leader"`
	Message  codec.Raw `codec:"message"`
}

// encodeEnvelope serializes a Message for the wire, wrapping it in
// the to_leader envelope.
func encodeEnvelope(toLeader bool, msg Message) ([]byte, error) {
	payload, err := encodeAny(msg)
	if err != nil {
		return nil, fmt.Errorf("lobby: encode message: %w", err)
	}

	env := envelope{ToLeader: toLeader, Message: payload}
	out, err := encodeAny(&env)
	if err != nil {
		return nil, fmt.Errorf("lobby: encode envelope: %w", err)
	}
	return out, nil
}

// decodeEnvelope parses a wire frame back into (to_leader, Message).
// It is a two-pass decode: first the outer envelope and the inner
// header, then the full concrete struct matching that header.
func decodeEnvelope(data []byte) (bool, Message, error) {
	var env envelope
	if err := decodeAny(data, &env); err != nil {
		return false, nil, fmt.Errorf("lobby: decode envelope: %w", err)
	}

	var h header
	if err := decodeAny(env.Message, &h); err != nil {
		return false, nil, fmt.Errorf("lobby: decode header: %w", err)
	}

	msg, err := newMessageFor(h)
	if err != nil {
		return false, nil, err
	}

	if err := decodeAny(env.Message, msg); err != nil {
		return false, nil, fmt.Errorf("lobby: decode %T: %w", msg, err)
	}

	return env.ToLeader, msg, nil
}

// newMessageFor returns a zero-valued concrete Message for the given
// header, or an error if the (family, subtype) pair is unknown. Per
// spec.md §7, unknown tags must be logged and dropped, never fatal.
func newMessageFor(h header) (Message, error) {
	switch h.Family {
	case familyLobby:
		switch lobbyType(h.Subtype) {
		case lobbyRequestJoin:
			return &RequestJoin{}, nil
		case lobbyRequestNewMember:
			return &RequestNewMember{}, nil
		case lobbyNewMember:
			return &NewMember{}, nil
		case lobbyMemberAccept:
			return &MemberAccept{}, nil
		case lobbyLeave:
			return &Leave{}, nil
		case lobbyMemberLeft:
			return &MemberLeft{}, nil
		}
	case familyHeartbeat:
		return &HealthCheck{}, nil
	case familyElection:
		switch electionType(h.Subtype) {
		case electionStart:
			return &ElectionStart{}, nil
		case electionOk:
			return &ElectionOk{}, nil
		case electionIAmLeader:
			return &IAmLeader{}, nil
		}
	case familyApplication:
		switch applicationType(h.Subtype) {
		case appStop:
			return &Stop{}, nil
		case appResume:
			return &Resume{}, nil
		case appSet:
			return &Set{}, nil
		case appJumpToTimestamp:
			return &JumpToTimestamp{}, nil
		case appState:
			return &State{}, nil
		}
	}
	return nil, fmt.Errorf("%w: family=%d subtype=%d", ErrUnknownMessage, h.Family, h.Subtype)
}

func encodeAny(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, jsonHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAny(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, jsonHandle)
	return dec.Decode(v)
}
