package lobby

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		toLeader bool
		msg      Message
	}{
		{"RequestJoin", false, newRequestJoin("127.0.0.1:1", "127.0.0.1:2", "alice")},
		{"NewMember", false, newNewMember("127.0.0.1:1", "bob", "127.0.0.1:3", 42)},
		{"MemberAccept", false, newMemberAccept("127.0.0.1:1", map[string]Peer{
			"127.0.0.1:1": {IP: "127.0.0.1", Port: 1, Name: "alice", ID: 7, IsLeader: true, IsAlive: true},
		})},
		{"Leave", true, newLeave("127.0.0.1:2")},
		{"HealthCheck", true, newHealthCheck("127.0.0.1:1")},
		{"ElectionStart", false, newElectionStart("127.0.0.1:2")},
		{"Set", true, NewSet(5)},
		{"JumpToTimestamp", true, NewJumpToTimestamp(123456)},
		{"State", false, NewState(2, 9999, true)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := encodeEnvelope(tc.toLeader, tc.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			toLeader, decoded, err := decodeEnvelope(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if toLeader != tc.toLeader {
				t.Fatalf("to_leader = %v, want %v", toLeader, tc.toLeader)
			}
			if decoded.family() != tc.msg.family() || decoded.subtype() != tc.msg.subtype() {
				t.Fatalf("got family/subtype %d/%d, want %d/%d",
					decoded.family(), decoded.subtype(), tc.msg.family(), tc.msg.subtype())
			}
		})
	}
}

// TestEnvelopeRoundTripOverTransport exercises the same encode/decode
// path through an actual Transport's Send/Receive, not just the bare
// functions, so a codec option (e.g. the ugorji Raw handling
// envelope.Message depends on) that only breaks at the wire boundary
// doesn't slip past TestEnvelopeRoundTrip.
func TestEnvelopeRoundTripOverTransport(t *testing.T) {
	net := NewMemoryNetwork()
	a := NewMemoryTransport(net, "a")
	b := NewMemoryTransport(net, "b")
	defer a.Shutdown()
	defer b.Shutdown()

	msg := newNewMember("a", "bob", "c", 42)
	frame, err := encodeEnvelope(true, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if !a.Send("b", frame) {
		t.Fatalf("Send over transport failed")
	}

	_, received := b.Receive()
	if received == nil {
		t.Fatalf("Receive got no frame")
	}

	toLeader, decoded, err := decodeEnvelope(received)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !toLeader {
		t.Fatalf("to_leader = false, want true")
	}
	nm, ok := decoded.(*NewMember)
	if !ok || nm.NewMemberID != 42 || nm.Name != "bob" {
		t.Fatalf("got %#v, want NewMember{Name: bob, NewMemberID: 42}", decoded)
	}
}

func TestDecodeEnvelopeUnknownMessageIsNonFatal(t *testing.T) {
	data, err := encodeEnvelope(false, newHealthCheck("127.0.0.1:1"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Corrupt the family tag to something no newMessageFor case covers.
	corrupted := []byte(`{"to_leader":false,"message":{"type":99,"subtype":1,"sender":"x"}}`)
	_ = data

	if _, _, err := decodeEnvelope(corrupted); err == nil {
		t.Fatalf("expected an error decoding an unknown family, got nil")
	}
}
