package agent

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/hashicorp/go-sockaddr"
	"github.com/lobbysync/lobbysync/lobby"
)

// Agent starts and manages a Lobby, adding the niceties the bare
// package doesn't: registered EventHandlers, event-channel fan-out,
// and an orderly start/leave/shutdown sequence. Grounded on
// command/agent/agent.go's Agent, generalized from wrapping a
// *serf.Serf to wrapping a *lobby.Lobby.
type Agent struct {
	config *Config
	lobby  *lobby.Lobby

	eventCh chan lobby.Event
	appCh   chan lobby.ApplicationEvent

	eventHandlers     map[EventHandler]struct{}
	eventHandlersLock sync.Mutex

	logger *log.Logger

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// Create builds an Agent and its underlying Lobby but does not yet
// create or join anything — call Start for that, mirroring serf's own
// Create/Start split ("so there isn't a race condition between
// creating the agent and registering handlers").
func Create(config *Config, logOutput io.Writer) (*Agent, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}

	eventCh := make(chan lobby.Event, 64)
	appCh := make(chan lobby.ApplicationEvent, 64)

	lobbyConfig := lobby.DefaultConfig()
	lobbyConfig.LogOutput = logOutput
	lobbyConfig.EventCh = eventCh
	lobbyConfig.ApplicationCh = appCh
	if config.LeaderHeartbeatInterval > 0 {
		lobbyConfig.LeaderHeartbeatInterval = config.LeaderHeartbeatInterval
	}
	if config.MemberHeartbeatTimeout > 0 {
		lobbyConfig.MemberHeartbeatTimeout = config.MemberHeartbeatTimeout
	}
	if config.ElectionTimeout > 0 {
		lobbyConfig.ElectionTimeout = config.ElectionTimeout
	}
	if config.Transport != nil {
		lobbyConfig.Transport = config.Transport
	}

	return &Agent{
		config:        config,
		lobby:         lobby.New(lobbyConfig),
		eventCh:       eventCh,
		appCh:         appCh,
		eventHandlers: make(map[EventHandler]struct{}),
		logger:        log.New(logOutput, "", log.LstdFlags),
		shutdownCh:    make(chan struct{}),
	}, nil
}

// Start creates or joins the lobby described by config, then starts
// the event fan-out loop.
func (a *Agent) Start() error {
	a.logger.Printf("[INFO] agent: lobby agent starting")

	advertiseAddr, err := advertiseIP(a.config.BindAddr)
	if err != nil {
		return err
	}
	if advertiseAddr != a.config.BindAddr {
		a.logger.Printf("[INFO] agent: bind addr %q is unspecified, advertising %q instead",
			a.config.BindAddr, advertiseAddr)
	}

	if a.config.Joining() {
		ok, err := a.lobby.JoinLobby(a.config.NodeName, advertiseAddr, a.config.BindPort,
			a.config.LobbyAddr, a.config.LobbyPort)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Printf("[WARN] agent: initial join request to %s:%d did not leave the node",
				a.config.LobbyAddr, a.config.LobbyPort)
		}
	} else {
		if err := a.lobby.CreateLobby(advertiseAddr, a.config.BindPort, a.config.NodeName); err != nil {
			return err
		}
	}

	go a.eventLoop()
	return nil
}

// advertiseIP resolves the address this node should tell the rest of
// the lobby to dial it on. A concrete bind address is used as-is;
// "0.0.0.0" (or empty) can't be dialed by a remote peer, so it's
// replaced with this host's private IP, the same choice
// command/agent/command.go makes for serf's own advertise address.
func advertiseIP(bindAddr string) (string, error) {
	if bindAddr != "" && bindAddr != "0.0.0.0" {
		return bindAddr, nil
	}
	ip, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("agent: error resolving advertise address: %v", err)
	}
	if ip == "" {
		return "", fmt.Errorf("agent: no private IP address found, and explicit bind address not given")
	}
	return ip, nil
}

// Leave prepares for a graceful shutdown by notifying the rest of the
// lobby first.
func (a *Agent) Leave() error {
	if a.lobby == nil {
		return nil
	}
	a.logger.Println("[INFO] agent: requesting graceful leave from lobby")
	return a.lobby.LeaveLobby()
}

// Shutdown closes the agent and its lobby. Idempotent. Should
// normally be preceded by Leave.
func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown {
		return nil
	}

	a.logger.Println("[INFO] agent: requesting lobby shutdown")
	if err := a.lobby.Shutdown(); err != nil {
		return err
	}

	a.logger.Println("[INFO] agent: shutdown complete")
	a.shutdown = true
	close(a.shutdownCh)
	return nil
}

// ShutdownCh returns a channel that closes when the agent shuts down.
func (a *Agent) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}

// Lobby returns the underlying Lobby.
func (a *Agent) Lobby() *lobby.Lobby {
	return a.lobby
}

// ApplicationCh exposes the application-message channel so a
// player.Connector can be attached directly to this agent's lobby.
func (a *Agent) ApplicationCh() chan lobby.ApplicationEvent {
	return a.appCh
}

// RegisterEventHandler adds a handler to receive future events.
func (a *Agent) RegisterEventHandler(eh EventHandler) {
	a.eventHandlersLock.Lock()
	defer a.eventHandlersLock.Unlock()
	a.eventHandlers[eh] = struct{}{}
}

// DeregisterEventHandler removes a previously registered handler.
func (a *Agent) DeregisterEventHandler(eh EventHandler) {
	a.eventHandlersLock.Lock()
	defer a.eventHandlersLock.Unlock()
	delete(a.eventHandlers, eh)
}

// eventLoop fans every lobby.Event out to the registered handlers.
// Application messages aren't re-dispatched here: they're consumed
// directly off ApplicationCh by whatever the caller attaches (see
// player.Connector).
func (a *Agent) eventLoop() {
	for {
		select {
		case e, ok := <-a.eventCh:
			if !ok {
				return
			}
			a.eventHandlersLock.Lock()
			handlers := make([]EventHandler, 0, len(a.eventHandlers))
			for eh := range a.eventHandlers {
				handlers = append(handlers, eh)
			}
			a.eventHandlersLock.Unlock()

			for _, eh := range handlers {
				eh.HandleEvent(e)
			}
		case <-a.shutdownCh:
			return
		}
	}
}
