package agent

import (
	"time"

	"github.com/lobbysync/lobbysync/lobby"
)

// Config is the configuration for an Agent. cmd/lobby's agent command
// fills it from command-line flags; the mapstructure tags name each
// field the way command/agent/config.go does for serf's own agent
// config, but no config-file loader reads them.
type Config struct {
	// NodeName is this node's human label (Peer.Name on the wire).
	NodeName string `mapstructure:"node_name"`

	// BindAddr/BindPort is the address this node listens on.
	BindAddr string `mapstructure:"bind_addr"`
	BindPort int    `mapstructure:"bind_port"`

	// LobbyAddr/LobbyPort, if set, is an existing member to join
	// instead of creating a new lobby.
	LobbyAddr string `mapstructure:"lobby_addr"`
	LobbyPort int    `mapstructure:"lobby_port"`

	// RPCAddr is where the IPC control-plane server listens.
	RPCAddr string `mapstructure:"rpc_addr"`

	// LogLevel filters what reaches the configured log output.
	LogLevel string `mapstructure:"log_level"`

	// EnableSyslog mirrors agent output into the local syslog at
	// SyslogFacility, in addition to whatever gateWriter SetupLoggers
	// was given.
	EnableSyslog   bool   `mapstructure:"enable_syslog"`
	SyslogFacility string `mapstructure:"syslog_facility"`

	// EventScripts is a list of "event=script" invocations, parsed by
	// ParseEventScript, run whenever a matching Event fires.
	EventScripts []string `mapstructure:"event_scripts"`

	LeaderHeartbeatInterval time.Duration `mapstructure:"leader_heartbeat_interval"`
	MemberHeartbeatTimeout  time.Duration `mapstructure:"member_heartbeat_timeout"`
	ElectionTimeout         time.Duration `mapstructure:"election_timeout"`

	// Transport overrides the lobby's default TCP transport. Left
	// nil in production; tests set it to an in-memory transport.
	Transport lobby.Transport `mapstructure:"-"`
}

// DefaultConfig mirrors command/agent/config.go's DefaultConfig:
// sensible defaults for every field a user doesn't set explicitly.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:       "0.0.0.0",
		BindPort:       7946,
		RPCAddr:        "127.0.0.1:7373",
		LogLevel:       "INFO",
		SyslogFacility: "LOCAL0",
	}
}

// Joining reports whether this config describes joining an existing
// lobby rather than creating a new one.
func (c *Config) Joining() bool {
	return c.LobbyAddr != ""
}
