package agent

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/lobbysync/lobbysync/lobby"
)

const eventScript = `#!/bin/sh
RESULT_FILE="%s"
echo $LOBBY_EVENT "$@" >>${RESULT_FILE}
`

// testEventScript creates an event script usable with an Agent and
// returns its path and the path of the file it writes to, the same
// shape as command/agent/agent_test.go's testEventScript.
func testEventScript(t *testing.T) (string, string) {
	t.Helper()
	scriptFile, err := ioutil.TempFile("", "lobby-script")
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	defer scriptFile.Close()

	if err := scriptFile.Chmod(0755); err != nil {
		t.Fatalf("err: %s", err)
	}

	resultFile, err := ioutil.TempFile("", "lobby-result")
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	defer resultFile.Close()

	if _, err := scriptFile.Write([]byte(fmt.Sprintf(eventScript, resultFile.Name()))); err != nil {
		t.Fatalf("err: %s", err)
	}

	return scriptFile.Name(), resultFile.Name()
}

func testAgent(t *testing.T, net *lobby.MemoryNetwork, name string, cfg *Config) *Agent {
	t.Helper()
	cfg.Transport = lobby.NewMemoryTransport(net, fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPort))
	a, err := Create(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestAgent_createAndLeave(t *testing.T) {
	net := lobby.NewMemoryNetwork()

	leaderCfg := DefaultConfig()
	leaderCfg.NodeName = "leader"
	leaderCfg.BindAddr = "127.0.0.1"
	leaderCfg.BindPort = 9201
	leader := testAgent(t, net, "leader", leaderCfg)
	if err := leader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer leader.Shutdown()

	if !leader.Lobby().IsLeader() {
		t.Fatal("expected solo agent to be its own leader")
	}

	if err := leader.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}
}

func TestAgent_eventHandlerInvokesScript(t *testing.T) {
	scriptPath, resultPath := testEventScript(t)
	defer os.Remove(scriptPath)
	defer os.Remove(resultPath)

	net := lobby.NewMemoryNetwork()
	leaderCfg := DefaultConfig()
	leaderCfg.NodeName = "leader"
	leaderCfg.BindAddr = "127.0.0.1"
	leaderCfg.BindPort = 9211
	leader := testAgent(t, net, "leader", leaderCfg)

	handler := &ScriptEventHandler{
		SelfName: "leader",
		Scripts:  ParseEventScript("*=" + scriptPath),
	}
	leader.RegisterEventHandler(handler)

	if err := leader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer leader.Shutdown()

	joinerCfg := DefaultConfig()
	joinerCfg.NodeName = "joiner"
	joinerCfg.BindAddr = "127.0.0.1"
	joinerCfg.BindPort = 9212
	joinerCfg.LobbyAddr = "127.0.0.1"
	joinerCfg.LobbyPort = 9211
	joiner := testAgent(t, net, "joiner", joinerCfg)
	if err := joiner.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer joiner.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out, _ := ioutil.ReadFile(resultPath)
		if len(out) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event script never ran")
}
