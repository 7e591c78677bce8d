package command

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"

	"github.com/lobbysync/lobbysync/lobby"
)

// RPCAddrFlag registers the -rpc-addr flag every remote-control
// subcommand takes, matching command/rpc.go's RPCAddrFlag.
func RPCAddrFlag(f *flag.FlagSet) *string {
	return f.String("rpc-addr", "127.0.0.1:7373", "RPC address of the lobby agent")
}

// RPCClient is a thin client for agent.AgentIPC's protocol.
type RPCClient struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
	seq  uint64
}

// RPCClientFromAddr dials addr and performs the handshake.
func RPCClientFromAddr(addr string) (*RPCClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &RPCClient{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
		enc:  json.NewEncoder(conn),
	}

	var resp struct {
		Seq   uint64
		Error string
	}
	if err := c.call("handshake", map[string]interface{}{"Version": 1}, &resp); err != nil {
		conn.Close()
		return nil, err
	}
	if resp.Error != "" {
		conn.Close()
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return c, nil
}

func (c *RPCClient) Close() error {
	return c.conn.Close()
}

func (c *RPCClient) call(command string, extra map[string]interface{}, out interface{}) error {
	c.seq++
	req := map[string]interface{}{"Command": command, "Seq": c.seq}
	for k, v := range extra {
		req[k] = v
	}
	if err := c.enc.Encode(req); err != nil {
		return err
	}
	return c.dec.Decode(out)
}

// Members fetches the peer table from the connected agent.
func (c *RPCClient) Members() ([]lobby.Peer, error) {
	var resp struct {
		Seq     uint64
		Error   string
		Members []lobby.Peer
	}
	if err := c.call("members", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp.Members, nil
}

// Leave asks the agent to gracefully leave its lobby.
func (c *RPCClient) Leave() error {
	return c.simpleCall("leave", nil)
}

// Pause asks the agent's player to pause.
func (c *RPCClient) Pause() error {
	return c.simpleCall("pause", nil)
}

// Resume asks the agent's player to resume.
func (c *RPCClient) Resume() error {
	return c.simpleCall("resume", nil)
}

// Skip asks the agent's player to switch to the given playlist index.
func (c *RPCClient) Skip(index int) error {
	return c.simpleCall("skip", map[string]interface{}{"Index": index})
}

// Seek asks the agent's player to jump to destinationMs.
func (c *RPCClient) Seek(destinationMs int64) error {
	return c.simpleCall("seek", map[string]interface{}{"DestinationMs": destinationMs})
}

func (c *RPCClient) simpleCall(command string, extra map[string]interface{}) error {
	var resp struct {
		Seq   uint64
		Error string
	}
	if err := c.call(command, extra, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}
