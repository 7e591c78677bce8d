package command

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/cli"
)

// PauseCommand requests a pause of the currently playing media.
type PauseCommand struct{ Ui cli.Ui }

func (c *PauseCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby pause [options]

  Requests that the lobby pause playback.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
`)
}

func (c *PauseCommand) Run(args []string) int { return runSimple(c.Ui, c.Help(), args, (*RPCClient).Pause) }
func (c *PauseCommand) Synopsis() string       { return "Pauses playback" }

// ResumeCommand requests that playback resume.
type ResumeCommand struct{ Ui cli.Ui }

func (c *ResumeCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby resume [options]

  Requests that the lobby resume playback.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
`)
}

func (c *ResumeCommand) Run(args []string) int {
	return runSimple(c.Ui, c.Help(), args, (*RPCClient).Resume)
}
func (c *ResumeCommand) Synopsis() string { return "Resumes playback" }

// SkipCommand requests a playlist-index switch.
type SkipCommand struct{ Ui cli.Ui }

func (c *SkipCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby skip [options] <index>

  Requests that the lobby switch to the given playlist index.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
`)
}

func (c *SkipCommand) Run(args []string) int {
	cmdFlags := flag.NewFlagSet("skip", flag.ContinueOnError)
	cmdFlags.Usage = func() { c.Ui.Output(c.Help()) }
	rpcAddr := RPCAddrFlag(cmdFlags)
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if cmdFlags.NArg() != 1 {
		c.Ui.Error("Exactly one playlist index is required.")
		return 1
	}
	index, err := strconv.Atoi(cmdFlags.Arg(0))
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid index: %s", err))
		return 1
	}

	client, err := RPCClientFromAddr(*rpcAddr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error connecting to lobby agent: %s", err))
		return 1
	}
	defer client.Close()

	if err := client.Skip(index); err != nil {
		c.Ui.Error(fmt.Sprintf("Error requesting skip: %s", err))
		return 1
	}
	return 0
}
func (c *SkipCommand) Synopsis() string { return "Switches to a playlist index" }

// SeekCommand requests a jump to a timestamp, in milliseconds.
type SeekCommand struct{ Ui cli.Ui }

func (c *SeekCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby seek [options] <destination-ms>

  Requests that the lobby jump to the given timestamp.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
`)
}

func (c *SeekCommand) Run(args []string) int {
	cmdFlags := flag.NewFlagSet("seek", flag.ContinueOnError)
	cmdFlags.Usage = func() { c.Ui.Output(c.Help()) }
	rpcAddr := RPCAddrFlag(cmdFlags)
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if cmdFlags.NArg() != 1 {
		c.Ui.Error("Exactly one destination (milliseconds) is required.")
		return 1
	}
	destination, err := strconv.ParseInt(cmdFlags.Arg(0), 10, 64)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid destination: %s", err))
		return 1
	}

	client, err := RPCClientFromAddr(*rpcAddr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error connecting to lobby agent: %s", err))
		return 1
	}
	defer client.Close()

	if err := client.Seek(destination); err != nil {
		c.Ui.Error(fmt.Sprintf("Error requesting seek: %s", err))
		return 1
	}
	return 0
}
func (c *SeekCommand) Synopsis() string { return "Seeks to a timestamp" }

// LeaveCommand asks the agent to leave its lobby gracefully.
type LeaveCommand struct{ Ui cli.Ui }

func (c *LeaveCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby leave [options]

  Causes the agent to gracefully leave its lobby.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
`)
}

func (c *LeaveCommand) Run(args []string) int { return runSimple(c.Ui, c.Help(), args, (*RPCClient).Leave) }
func (c *LeaveCommand) Synopsis() string       { return "Gracefully leaves the lobby" }

// runSimple is the shared body of every no-argument RPC subcommand:
// parse -rpc-addr, dial, call, report.
func runSimple(ui cli.Ui, help string, args []string, call func(*RPCClient) error) int {
	cmdFlags := flag.NewFlagSet("lobby", flag.ContinueOnError)
	cmdFlags.Usage = func() { ui.Output(help) }
	rpcAddr := RPCAddrFlag(cmdFlags)
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	client, err := RPCClientFromAddr(*rpcAddr)
	if err != nil {
		ui.Error(fmt.Sprintf("Error connecting to lobby agent: %s", err))
		return 1
	}
	defer client.Close()

	if err := call(client); err != nil {
		ui.Error(fmt.Sprintf("Error: %s", err))
		return 1
	}
	return 0
}
