package command

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	"github.com/lobbysync/lobbysync/agent"
	"github.com/mitchellh/cli"
)

// gracefulTimeout bounds how long a graceful leave is given before
// the process exits anyway, matching command/agent/command.go.
var gracefulTimeout = 3 * time.Second

// AgentCommand runs a lobby agent in the foreground until an
// exit-causing signal arrives. Grounded on command/agent/command.go's
// Command, trimmed to the flags this spec's agent actually has (no
// encryption, snapshots, profiles, or mDNS discovery — none of those
// concepts exist in spec.md's data model).
type AgentCommand struct {
	Ui         cli.Ui
	ShutdownCh <-chan struct{}
	args       []string
}

func (c *AgentCommand) Help() string {
	return strings.TrimSpace(`
Usage: lobby agent [options]

  Starts a lobby agent in the foreground. The agent either creates a
  new lobby or joins an existing one, then serves RPC control-plane
  requests.

Options:

  -node=hostname             Node name (defaults to the OS hostname).
  -bind=0.0.0.0:7946         Address to bind the lobby listener to.
  -join=ip:port              Address of an existing member to join.
  -rpc-addr=127.0.0.1:7373   Address to bind the RPC listener to.
  -log-level=INFO            Log level: DEBUG, INFO, WARN, or ERR.
  -event-handler=cmd         Script to invoke on lobby events; may be
                             repeated, optionally prefixed "filter=".
  -syslog                    Also log to syslog (not on Windows).
  -syslog-facility=LOCAL0    Syslog facility to use with -syslog.
`)
}

func (c *AgentCommand) Synopsis() string {
	return "Runs a lobby agent"
}

func (c *AgentCommand) Run(args []string) int {
	c.Ui = &cli.PrefixedUi{
		OutputPrefix: "==> ",
		InfoPrefix:   "    ",
		ErrorPrefix:  "==> ",
		Ui:           c.Ui,
	}
	c.args = args

	config, eventHandlers := c.readConfig()
	if config == nil {
		return 1
	}

	logGate, logWriter, logOutput := agent.SetupLoggers(&cli.UiWriter{Ui: c.Ui}, config.LogLevel)

	if config.EnableSyslog {
		syslog, err := agent.SetupSyslog(config.SyslogFacility)
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		logOutput = io.MultiWriter(logOutput, syslog)
	}

	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)
	metrics.NewGlobal(metrics.DefaultConfig("lobby-agent"), inm)

	a, err := agent.Create(config, logOutput)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to create agent: %s", err))
		return 1
	}

	for _, eh := range eventHandlers {
		a.RegisterEventHandler(eh)
	}

	if err := a.Start(); err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to start agent: %s", err))
		return 1
	}
	defer a.Shutdown()

	rpcListener, err := net.Listen("tcp", config.RPCAddr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error starting RPC listener: %s", err))
		return 1
	}
	ipc := agent.NewAgentIPC(a, nil, rpcListener, logOutput, logWriter)
	defer ipc.Shutdown()

	c.Ui.Output("Lobby agent running!")
	c.Ui.Info(fmt.Sprintf("     Node name: '%s'", config.NodeName))
	c.Ui.Info(fmt.Sprintf("     Bind addr: '%s:%d'", config.BindAddr, config.BindPort))
	c.Ui.Info(fmt.Sprintf("      RPC addr: '%s'", config.RPCAddr))
	if config.Joining() {
		c.Ui.Info(fmt.Sprintf("  Joining lobby: '%s:%d'", config.LobbyAddr, config.LobbyPort))
	}

	c.Ui.Output("")
	c.Ui.Output("Log data will now stream in as it occurs:\n")
	logGate.Flush()

	return c.handleSignals(config, a)
}

func (c *AgentCommand) readConfig() (*agent.Config, []agent.EventHandler) {
	cmdFlags := flag.NewFlagSet("agent", flag.ContinueOnError)
	cmdFlags.Usage = func() { c.Ui.Output(c.Help()) }

	config := agent.DefaultConfig()
	cmdFlags.StringVar(&config.NodeName, "node", "", "node name")
	cmdFlags.StringVar(&config.BindAddr, "bind-addr", config.BindAddr, "address to bind to")
	cmdFlags.IntVar(&config.BindPort, "bind-port", config.BindPort, "port to bind to")
	cmdFlags.StringVar(&config.LobbyAddr, "join-addr", "", "address of an existing lobby member to join")
	cmdFlags.IntVar(&config.LobbyPort, "join-port", 0, "port of an existing lobby member to join")
	cmdFlags.StringVar(&config.RPCAddr, "rpc-addr", config.RPCAddr, "address to bind the RPC listener to")
	cmdFlags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	cmdFlags.BoolVar(&config.EnableSyslog, "syslog", false, "also log to syslog")
	cmdFlags.StringVar(&config.SyslogFacility, "syslog-facility", config.SyslogFacility, "syslog facility to use with -syslog")

	var bind string
	cmdFlags.StringVar(&bind, "bind", "", "shorthand for -bind-addr:-bind-port, e.g. 0.0.0.0:7946")
	var join string
	cmdFlags.StringVar(&join, "join", "", "shorthand for -join-addr:-join-port")
	cmdFlags.Var((*appendSliceValue)(&config.EventScripts), "event-handler",
		"script to run on lobby events; may be repeated")

	if err := cmdFlags.Parse(c.args); err != nil {
		return nil, nil
	}

	if bind != "" {
		ip, port, err := splitHostPort(bind)
		if err != nil {
			c.Ui.Error(fmt.Sprintf("Invalid -bind: %s", err))
			return nil, nil
		}
		config.BindAddr, config.BindPort = ip, port
	}
	if join != "" {
		ip, port, err := splitHostPort(join)
		if err != nil {
			c.Ui.Error(fmt.Sprintf("Invalid -join: %s", err))
			return nil, nil
		}
		config.LobbyAddr, config.LobbyPort = ip, port
	}

	if config.NodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			c.Ui.Error(fmt.Sprintf("Error determining hostname: %s", err))
			return nil, nil
		}
		config.NodeName = hostname
	}

	var handlers []agent.EventHandler
	for _, v := range config.EventScripts {
		scripts := agent.ParseEventScript(v)
		for _, s := range scripts {
			if !s.Valid() {
				c.Ui.Error(fmt.Sprintf("Invalid event handler: %s", s.String()))
				return nil, nil
			}
		}
		handlers = append(handlers, &agent.ScriptEventHandler{SelfName: config.NodeName, Scripts: scripts})
	}

	return config, handlers
}

func (c *AgentCommand) handleSignals(config *agent.Config, a *agent.Agent) int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	var sig os.Signal
	select {
	case s := <-signalCh:
		sig = s
	case <-c.ShutdownCh:
		sig = os.Interrupt
	case <-a.ShutdownCh():
		return 0
	}
	c.Ui.Output(fmt.Sprintf("Caught signal: %v", sig))

	gracefulCh := make(chan struct{})
	c.Ui.Output("Gracefully shutting down agent...")
	go func() {
		if err := a.Leave(); err != nil {
			c.Ui.Error(fmt.Sprintf("Error: %s", err))
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-signalCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// appendSliceValue implements flag.Value, collecting every occurrence
// of a repeatable flag into a slice, matching command/agent's own
// AppendSliceValue.
type appendSliceValue []string

func (s *appendSliceValue) String() string { return strings.Join(*s, ",") }

func (s *appendSliceValue) Set(value string) error {
	*s = append(*s, value)
	return nil
}
