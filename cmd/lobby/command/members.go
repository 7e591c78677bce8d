package command

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/ryanuber/columnize"
)

// MembersCommand lists the peer table of a running agent, the lobby
// analogue of command/members.go.
type MembersCommand struct {
	Ui cli.Ui
}

func (c *MembersCommand) Help() string {
	helpText := `
Usage: lobby members [options]

  Outputs the members of a running lobby agent.

Options:

  -rpc-addr=127.0.0.1:7373  RPC address of the lobby agent.
  -json=false               Formats the members list as a JSON object.
`
	return strings.TrimSpace(helpText)
}

func (c *MembersCommand) Run(args []string) int {
	cmdFlags := flag.NewFlagSet("members", flag.ContinueOnError)
	cmdFlags.Usage = func() { c.Ui.Output(c.Help()) }
	rpcAddr := RPCAddrFlag(cmdFlags)
	asJSON := cmdFlags.Bool("json", false, "output as JSON")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	client, err := RPCClientFromAddr(*rpcAddr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error connecting to lobby agent: %s", err))
		return 1
	}
	defer client.Close()

	members, err := client.Members()
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error retrieving members: %s", err))
		return 1
	}

	if *asJSON {
		out, err := json.Marshal(map[string]interface{}{"members": members})
		if err != nil {
			c.Ui.Error(fmt.Sprintf("Error formatting members into JSON: %s", err))
			return 1
		}
		c.Ui.Output(string(out))
		return 0
	}

	lines := []string{"Name | Addr | ID | Leader | Alive"}
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s | %s | %d | %v | %v",
			m.Name, m.Addr(), m.ID, m.IsLeader, m.IsAlive))
	}
	out, _ := columnize.SimpleFormat(lines)
	c.Ui.Output(out)
	return 0
}

func (c *MembersCommand) Synopsis() string {
	return "Lists the members of a lobby"
}
