package agent

/*
 The agent exposes a small IPC mechanism so a separate CLI process
 (cmd/lobby/command's remote subcommands) can control a running agent
 without embedding a lobby.Lobby itself, and so it can tail the
 agent's logs. Grounded on command/agent/ipc.go, which serves the
 identical purpose for serf's own CLI/RPC split, simplified down to
 the commands this spec's application surface actually needs:
 members, join, leave, and the four playback requests.

 Each client opens a TCP connection and performs a handshake
 establishing the protocol version, then sends JSON request objects
 and receives one JSON response object per request, except for
 "monitor", which keeps streaming response objects on that same
 connection until the client disconnects.
*/

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/lobbysync/lobbysync/lobby"
	"github.com/lobbysync/lobbysync/player"
	"github.com/mitchellh/mapstructure"
)

const (
	minIPCVersion = 1
	maxIPCVersion = 1
)

const (
	handshakeCommand = "handshake"
	membersCommand   = "members"
	joinCommand      = "join"
	leaveCommand     = "leave"
	pauseCommand     = "pause"
	resumeCommand    = "resume"
	skipCommand      = "skip"
	seekCommand      = "seek"
	monitorCommand   = "monitor"
)

type requestHeader struct {
	Command string
	Seq     uint64
}

type handshakeRequest struct {
	Version int
}

type skipRequest struct {
	Index int
}

type seekRequest struct {
	DestinationMs int64
}

type responseHeader struct {
	Seq   uint64
	Error string
}

type membersResponse struct {
	responseHeader
	Members []lobby.Peer
}

// AgentIPC is the control-plane server: one listener, many
// connections, each served on its own goroutine.
type AgentIPC struct {
	agent     *Agent
	connector *player.Connector // optional; nil when no player is attached
	listener  net.Listener
	logger    *log.Logger
	logWriter *LogWriter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAgentIPC starts serving connections accepted on listener.
func NewAgentIPC(a *Agent, connector *player.Connector, listener net.Listener, logOutput io.Writer, lw *LogWriter) *AgentIPC {
	ipc := &AgentIPC{
		agent:     a,
		connector: connector,
		listener:  listener,
		logger:    log.New(logOutput, "", log.LstdFlags),
		logWriter: lw,
		stopCh:    make(chan struct{}),
	}
	go ipc.listen()
	return ipc
}

// Shutdown closes the listener and stops serving. Idempotent.
func (i *AgentIPC) Shutdown() {
	i.stopOnce.Do(func() {
		close(i.stopCh)
		i.listener.Close()
	})
}

func (i *AgentIPC) listen() {
	for {
		conn, err := i.listener.Accept()
		if err != nil {
			select {
			case <-i.stopCh:
				return
			default:
				i.logger.Printf("[ERR] agent.ipc: accept failed: %v", err)
				continue
			}
		}
		go i.handleConn(conn)
	}
}

func (i *AgentIPC) handleConn(conn net.Conn) {
	defer conn.Close()

	connID, err := uuid.GenerateUUID()
	if err != nil {
		connID = conn.RemoteAddr().String()
	}
	i.logger.Printf("[DEBUG] agent.ipc: accepted client %s (%s)", connID, conn.RemoteAddr())
	defer i.logger.Printf("[DEBUG] agent.ipc: closed client %s", connID)

	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)
	var encLock sync.Mutex

	send := func(resp interface{}) error {
		encLock.Lock()
		defer encLock.Unlock()
		return enc.Encode(resp)
	}

	handshaked := false
	for {
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			if err != io.EOF {
				i.logger.Printf("[ERR] agent.ipc: decode failed: %v", err)
			}
			return
		}

		var hdr requestHeader
		if err := mapstructure.Decode(raw, &hdr); err != nil {
			send(responseHeader{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		if hdr.Command != handshakeCommand && !handshaked {
			send(responseHeader{Seq: hdr.Seq, Error: "handshake required"})
			continue
		}

		switch hdr.Command {
		case handshakeCommand:
			var req handshakeRequest
			mapstructure.Decode(raw, &req)
			if req.Version < minIPCVersion || req.Version > maxIPCVersion {
				send(responseHeader{Seq: hdr.Seq, Error: "unsupported IPC version"})
				continue
			}
			handshaked = true
			send(responseHeader{Seq: hdr.Seq})

		case membersCommand:
			send(membersResponse{responseHeader{Seq: hdr.Seq}, i.agent.Lobby().Members()})

		case joinCommand:
			send(responseHeader{Seq: hdr.Seq, Error: "join must be configured at agent start, not via RPC"})

		case leaveCommand:
			err := i.agent.Leave()
			send(responseHeader{Seq: hdr.Seq, Error: errString(err)})

		case pauseCommand:
			send(responseHeader{Seq: hdr.Seq, Error: i.withConnector(func(c *player.Connector) { c.RequestPause() })})

		case resumeCommand:
			send(responseHeader{Seq: hdr.Seq, Error: i.withConnector(func(c *player.Connector) { c.RequestResume() })})

		case skipCommand:
			var req skipRequest
			mapstructure.Decode(raw, &req)
			send(responseHeader{Seq: hdr.Seq, Error: i.withConnector(func(c *player.Connector) { c.RequestSkip(req.Index) })})

		case seekCommand:
			var req seekRequest
			mapstructure.Decode(raw, &req)
			send(responseHeader{Seq: hdr.Seq, Error: i.withConnector(func(c *player.Connector) { c.RequestSkipToTimestamp(req.DestinationMs) })})

		case monitorCommand:
			// Streams until the connection closes; no further
			// requests on this connection are read after this point.
			i.streamLogs(hdr.Seq, send)
			return

		default:
			send(responseHeader{Seq: hdr.Seq, Error: "unsupported command: " + hdr.Command})
		}
	}
}

func (i *AgentIPC) withConnector(fn func(*player.Connector)) string {
	if i.connector == nil {
		return "no player attached to this agent"
	}
	fn(i.connector)
	return ""
}

// streamLogs pushes log lines to the client as they're written,
// until the client disconnects (the first send that fails on the
// closed connection ends the loop, and the outer handleConn's defer
// closes it) or the IPC server shuts down.
func (i *AgentIPC) streamLogs(seq uint64, send func(interface{}) error) {
	ch := make(chan string, 64)
	i.logWriter.RegisterHandler(ch)
	defer i.logWriter.DeregisterHandler(ch)

	send(responseHeader{Seq: seq})
	for {
		select {
		case line := <-ch:
			if err := send(struct {
				Seq uint64
				Log string
			}{seq, line}); err != nil {
				return
			}
		case <-i.stopCh:
			return
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
