package player

import (
	"log"

	"github.com/lobbysync/lobbysync/lobby"
)

// Connector is the glue between a Lobby and a Player: it drains the
// lobby's event and application channels on its own goroutine,
// applies inbound commands to the player, and turns UI/player-side
// requests into lobby submissions. Grounded on
// PlayerLobbyConnector in the original implementation, which plays
// the identical role.
type Connector struct {
	player Player
	lobby  *lobby.Lobby
	logger *log.Logger

	eventCh chan lobby.Event
	appCh   chan lobby.ApplicationEvent
	doneCh  chan struct{}
}

// NewConnector wires player to l. The caller must have configured l's
// Config.EventCh and Config.ApplicationCh to the channels passed here
// before starting the lobby, and must call Run to start forwarding.
func NewConnector(p Player, l *lobby.Lobby, eventCh chan lobby.Event, appCh chan lobby.ApplicationEvent, logger *log.Logger) *Connector {
	return &Connector{
		player:  p,
		lobby:   l,
		logger:  logger,
		eventCh: eventCh,
		appCh:   appCh,
		doneCh:  make(chan struct{}),
	}
}

// Run forwards lobby events and application commands to the player
// until Stop is called. Intended to run on its own goroutine.
func (c *Connector) Run() {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.handleEvent(ev)
		case ae, ok := <-c.appCh:
			if !ok {
				return
			}
			c.handleApplication(ae)
		case <-c.doneCh:
			return
		}
	}
}

// Stop ends Run's forwarding loop. It does not touch the lobby or the
// player.
func (c *Connector) Stop() {
	close(c.doneCh)
}

// handleEvent reacts to membership changes; the only one the player
// layer cares about is a freshly admitted member, which needs the
// current state pushed to it directly (spec.md §4.3's NEW_MEMBER
// event, "used by the application layer to push current media
// state").
func (c *Connector) handleEvent(ev lobby.Event) {
	if ev.Type != lobby.EventNewMember {
		return
	}
	if !c.lobby.IsLeader() {
		return
	}
	state := c.player.GetState()
	msg := lobby.NewState(state.Index, state.Timestamp, state.Playing)
	if !c.lobby.SendTo(ev.NewMemberAddr, msg) {
		c.logger.Printf("[WARN] player: failed to push state to new member %s", ev.NewMemberAddr)
	}
}

// handleApplication applies an inbound application command to the
// player. Ordering and broadcast-onward are already handled by the
// lobby core (dispatch.go's processApplication); this only ever needs
// to mutate local playback state.
func (c *Connector) handleApplication(ae lobby.ApplicationEvent) {
	switch msg := ae.Message.(type) {
	case *lobby.Stop:
		c.player.Pause()
	case *lobby.Resume:
		c.player.Play()
	case *lobby.Set:
		c.player.SetSong(msg.Index)
	case *lobby.JumpToTimestamp:
		c.player.Seek(msg.Destination)
	case *lobby.State:
		c.player.SetState(State{Index: msg.Index, Timestamp: msg.Timestamp, Playing: msg.Playing})
	default:
		c.logger.Printf("[WARN] player: ignoring unrecognized application message %T", msg)
	}
}

// RequestPause asks the lobby to pause playback. The local player is
// not touched directly: the command takes effect once it comes back
// through the application channel, same as on every other member,
// which is what keeps playback state totally ordered (spec.md §5).
func (c *Connector) RequestPause() {
	c.lobby.SubmitApplication(lobby.NewStop())
}

// RequestResume asks the lobby to resume playback.
func (c *Connector) RequestResume() {
	c.lobby.SubmitApplication(lobby.NewResume())
}

// RequestSkip asks the lobby to switch to the given playlist index.
func (c *Connector) RequestSkip(index int) {
	c.lobby.SubmitApplication(lobby.NewSet(index))
}

// RequestSkipToTimestamp asks the lobby to seek to destinationMs.
func (c *Connector) RequestSkipToTimestamp(destinationMs int64) {
	c.lobby.SubmitApplication(lobby.NewJumpToTimestamp(destinationMs))
}
