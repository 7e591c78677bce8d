package lobby

import (
	"sync"
	"time"
)

// MemoryNetwork wires a set of MemoryTransports together in-process,
// so membership/election/failure-detector tests can run without
// binding real sockets.
type MemoryNetwork struct {
	mu    sync.Mutex
	peers map[string]*MemoryTransport
}

// NewMemoryNetwork creates an empty in-process network. Tests
// typically create one network and several transports on it to
// simulate a small lobby.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{peers: make(map[string]*MemoryTransport)}
}

// MemoryTransport is a Transport implementation backed by Go channels
// instead of sockets. It preserves the same best-effort, frame-
// delimited contract as TCPTransport.
type MemoryTransport struct {
	addr    string
	net     *MemoryNetwork
	inbox   chan memoryFrame
	closed  chan struct{}
	closeMu sync.Mutex
}

type memoryFrame struct {
	source string
	data   []byte
}

// NewMemoryTransport registers a transport at addr on the shared
// network.
func NewMemoryTransport(net *MemoryNetwork, addr string) *MemoryTransport {
	t := &MemoryTransport{
		addr:   addr,
		net:    net,
		inbox:  make(chan memoryFrame, 16),
		closed: make(chan struct{}),
	}
	net.mu.Lock()
	net.peers[addr] = t
	net.mu.Unlock()
	return t
}

func (t *MemoryTransport) Send(dest string, frame []byte) bool {
	t.net.mu.Lock()
	target, ok := t.net.peers[dest]
	t.net.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-target.closed:
		return false
	default:
	}

	select {
	case target.inbox <- memoryFrame{source: t.addr, data: frame}:
		return true
	default:
		return false
	}
}

func (t *MemoryTransport) Receive() (string, []byte) {
	select {
	case f := <-t.inbox:
		return f.source, f.data
	case <-time.After(receiveTimeout):
		return "", nil
	case <-t.closed:
		return "", nil
	}
}

func (t *MemoryTransport) Shutdown() {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	select {
	case <-t.closed:
	default:
		close(t.closed)
		t.net.mu.Lock()
		delete(t.net.peers, t.addr)
		t.net.mu.Unlock()
	}
}
