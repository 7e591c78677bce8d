package main

import (
	"os"
	"os/signal"

	"github.com/lobbysync/lobbysync/cmd/lobby/command"
	"github.com/mitchellh/cli"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// Commands is the mapping of all available lobby subcommands.
var Commands map[string]cli.CommandFactory

func init() {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr, Reader: os.Stdin}

	Commands = map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &command.AgentCommand{
				Ui:         ui,
				ShutdownCh: makeShutdownCh(),
			}, nil
		},

		"members": func() (cli.Command, error) {
			return &command.MembersCommand{Ui: ui}, nil
		},

		"pause": func() (cli.Command, error) {
			return &command.PauseCommand{Ui: ui}, nil
		},

		"resume": func() (cli.Command, error) {
			return &command.ResumeCommand{Ui: ui}, nil
		},

		"skip": func() (cli.Command, error) {
			return &command.SkipCommand{Ui: ui}, nil
		},

		"seek": func() (cli.Command, error) {
			return &command.SeekCommand{Ui: ui}, nil
		},

		"leave": func() (cli.Command, error) {
			return &command.LeaveCommand{Ui: ui}, nil
		},

		"version": func() (cli.Command, error) {
			return &command.VersionCommand{Version: Version, Ui: ui}, nil
		},
	}
}

// makeShutdownCh returns a channel that receives a message for every
// interrupt the process receives, matching serf's own commands.go.
func makeShutdownCh() <-chan struct{} {
	resultCh := make(chan struct{})

	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt)
	go func() {
		for {
			<-signalCh
			resultCh <- struct{}{}
		}
	}()

	return resultCh
}
