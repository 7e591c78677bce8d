package lobby

import "testing"

func TestMemoryTransportSendReceive(t *testing.T) {
	net := NewMemoryNetwork()
	a := NewMemoryTransport(net, "a")
	b := NewMemoryTransport(net, "b")
	defer a.Shutdown()
	defer b.Shutdown()

	if !a.Send("b", []byte("hello")) {
		t.Fatalf("Send to a known peer should succeed")
	}

	source, frame := b.Receive()
	if source != "a" || string(frame) != "hello" {
		t.Fatalf("Receive got (%q, %q), want (\"a\", \"hello\")", source, frame)
	}
}

func TestMemoryTransportSendToUnknownPeerFails(t *testing.T) {
	net := NewMemoryNetwork()
	a := NewMemoryTransport(net, "a")
	defer a.Shutdown()

	if a.Send("nobody", []byte("hi")) {
		t.Fatalf("Send to an unregistered address should fail")
	}
}

func TestMemoryTransportShutdownUnblocksReceive(t *testing.T) {
	net := NewMemoryNetwork()
	a := NewMemoryTransport(net, "a")

	done := make(chan struct{})
	go func() {
		source, frame := a.Receive()
		if source != "" || frame != nil {
			t.Errorf("Receive after Shutdown should return zero values, got (%q, %v)", source, frame)
		}
		close(done)
	}()

	a.Shutdown()
	<-done
}

func TestMemoryTransportSendAfterShutdownFails(t *testing.T) {
	net := NewMemoryNetwork()
	a := NewMemoryTransport(net, "a")
	b := NewMemoryTransport(net, "b")
	defer b.Shutdown()

	a.Shutdown()
	if b.Send("a", []byte("too late")) {
		t.Fatalf("Send to a shut-down transport should fail")
	}
}
