package command

import "github.com/mitchellh/cli"

// VersionCommand prints the lobby version, matching
// cmd/serf/command/version.go.
type VersionCommand struct {
	Version string
	Ui      cli.Ui
}

func (c *VersionCommand) Help() string { return "" }

func (c *VersionCommand) Run(_ []string) int {
	c.Ui.Output(c.Version)
	return 0
}

func (c *VersionCommand) Synopsis() string {
	return "Prints the lobby version"
}
