package agent

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/armon/go-metrics"
	"github.com/lobbysync/lobbysync/lobby"
)

const windows = "windows"

// invokeEventScript runs script with the event described via
// environment variables, mirroring command/agent/invoke.go's
// LOBBY_EVENT/LOBBY_SELF_NAME convention (SERF_* there). The member
// table, when relevant, is piped to stdin as JSON rather than a
// line-oriented format, since lobby.Event.Members is structured data
// with no existing textual convention to match.
func invokeEventScript(logger *log.Logger, script string, selfName string, e lobby.Event) error {
	defer metrics.MeasureSince([]string{"agent", "invoke", script}, time.Now())

	var shell, flag string
	if runtime.GOOS == windows {
		shell, flag = "cmd", "/C"
	} else {
		shell, flag = "/bin/sh", "-c"
	}

	var output bytes.Buffer
	cmd := exec.Command(shell, flag, script)
	cmd.Env = append(os.Environ(),
		"LOBBY_EVENT="+e.Type.String(),
		"LOBBY_SELF_NAME="+selfName,
		"LOBBY_SELF_ADDR="+string(e.Self),
		"LOBBY_LEADER_ADDR="+string(e.Leader),
	)
	if e.Type == lobby.EventNewMember {
		cmd.Env = append(cmd.Env, "LOBBY_NEW_MEMBER_ADDR="+string(e.NewMemberAddr))
	}
	cmd.Stdout = &output
	cmd.Stderr = &output

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	go func() {
		defer stdin.Close()
		enc := json.NewEncoder(stdin)
		enc.Encode(e.Members)
	}()

	if err := cmd.Start(); err != nil {
		return err
	}
	err = cmd.Wait()
	logger.Printf("[DEBUG] agent: event '%s' script output: %s", e.Type, output.String())
	return err
}
