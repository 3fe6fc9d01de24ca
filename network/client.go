// Package network holds the client side of the sync core: the connection
// wrapper, the local-entity predictor and the remote-entity interpolator.
package network

import (
	"fmt"
	"log"
	"sync"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

// Client manages a connection to the game server. Inbound traffic is
// consumed by calling Drain once per tick from the simulation context —
// nothing here touches prediction or interpolation buffers from another
// goroutine.
type Client struct {
	mu sync.RWMutex

	state     ClientState
	lastError error
	conn      transport.Conn

	localID  uint32
	tickRate int
	seed     int64

	killCh    chan netstate.EntityKilledEvent
	waveCh    chan netstate.WaveStartEvent
	bossCh    chan netstate.BossSpawnEvent
	levelUpCh chan netstate.LevelUpEvent
	xpCh      chan netstate.XPCollectedEvent
	endCh     chan netstate.EndMatchEvent
}

// NewClient creates a disconnected client.
func NewClient() *Client {
	return &Client{
		state:     StateDisconnected,
		killCh:    make(chan netstate.EntityKilledEvent, 16),
		waveCh:    make(chan netstate.WaveStartEvent, 4),
		bossCh:    make(chan netstate.BossSpawnEvent, 4),
		levelUpCh: make(chan netstate.LevelUpEvent, 4),
		xpCh:      make(chan netstate.XPCollectedEvent, 16),
		endCh:     make(chan netstate.EndMatchEvent, 1),
	}
}

// Connect attaches an established transport connection and starts the
// ready-up handshake.
func (c *Client) Connect(conn transport.Conn, playerName string) error {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.lastError = nil
	c.mu.Unlock()

	payload, err := wire.EncodeTagged(netstate.PlayerReadyEvent{PlayerName: playerName, Ready: true})
	if err != nil {
		return fmt.Errorf("encode ready: %w", err)
	}
	if err := conn.SendReliable(wire.OpPlayerReady, payload); err != nil {
		c.setError(fmt.Errorf("send ready: %w", err))
		return err
	}
	return nil
}

// Drained is one tick's worth of inbound state traffic, in arrival order
// within each kind.
type Drained struct {
	Snapshots []netstate.Snapshot
	Deltas    []*netstate.Delta
	Acks      []netstate.PlayerPositionEvent
}

// Drain consumes every queued transport event. Snapshots, deltas and
// input acks are returned for the caller to apply in order; auxiliary
// events land on their channels. A codec failure poisons the connection:
// corrupted buffers mean transport trouble deserving a reconnect, not a
// local fixup.
func (c *Client) Drain() (Drained, error) {
	var out Drained
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return out, nil
	}

	for {
		select {
		case ev := <-conn.Events():
			switch ev.Kind {
			case transport.EventDisconnect:
				log.Printf("[client] disconnected: %v", ev.Err)
				c.mu.Lock()
				if c.state != StateError {
					c.state = StateDisconnected
				}
				c.conn = nil
				c.mu.Unlock()
				return out, nil
			case transport.EventData:
				if handleErr := c.handleData(ev, &out); handleErr != nil {
					c.setError(handleErr)
					return out, handleErr
				}
			}
		default:
			return out, nil
		}
	}
}

func (c *Client) handleData(ev transport.Event, out *Drained) error {
	switch ev.Opcode {
	case wire.OpStateSnapshot:
		snap, err := wire.DecodeSnapshot(ev.Payload)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		out.Snapshots = append(out.Snapshots, snap)

	case wire.OpStateDelta:
		d, err := wire.DecodeDelta(ev.Payload)
		if err != nil {
			return fmt.Errorf("delta: %w", err)
		}
		out.Deltas = append(out.Deltas, d)

	case wire.OpPlayerPosition:
		var ack netstate.PlayerPositionEvent
		if err := wire.DecodeTagged(ev.Payload, &ack); err != nil {
			return fmt.Errorf("input ack: %w", err)
		}
		out.Acks = append(out.Acks, ack)

	case wire.OpStartMatch:
		var start netstate.StartMatchEvent
		if err := wire.DecodeTagged(ev.Payload, &start); err != nil {
			return fmt.Errorf("start match: %w", err)
		}
		log.Printf("[client] match started: localID=%d tickRate=%d seed=%d",
			start.LocalID, start.TickRate, start.Seed)
		c.mu.Lock()
		c.localID = start.LocalID
		c.tickRate = start.TickRate
		c.seed = start.Seed
		c.state = StateJoinedGame
		c.mu.Unlock()

	case wire.OpEntityKilled:
		pushEvent(c.killCh, ev.Payload)
	case wire.OpWaveStart:
		pushEvent(c.waveCh, ev.Payload)
	case wire.OpBossSpawn:
		pushEvent(c.bossCh, ev.Payload)
	case wire.OpLevelUp:
		pushEvent(c.levelUpCh, ev.Payload)
	case wire.OpXPCollected:
		pushEvent(c.xpCh, ev.Payload)
	case wire.OpEndMatch:
		pushEvent(c.endCh, ev.Payload)

	default:
		log.Printf("[client] unhandled opcode %s (%d bytes)", ev.Opcode, len(ev.Payload))
	}
	return nil
}

// pushEvent decodes a fallback-encoded event onto a channel, non-blocking.
func pushEvent[T any](ch chan T, payload []byte) {
	var v T
	if err := wire.DecodeTagged(payload, &v); err != nil {
		log.Printf("[client] bad event payload: %v", err)
		return
	}
	select {
	case ch <- v:
	default:
	}
}

// SendInput encodes and sends one input sample on the fast path.
func (c *Client) SendInput(in netstate.InputSample) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.Send(wire.OpPlayerInput, wire.EncodeInput(in))
}

// SendUpgrade tells the server which level-up upgrade was chosen.
func (c *Client) SendUpgrade(upgradeID uint8) error {
	c.mu.RLock()
	conn := c.conn
	localID := c.localID
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	payload, err := wire.EncodeTagged(netstate.UpgradeSelectedEvent{PlayerID: localID, UpgradeID: upgradeID})
	if err != nil {
		return fmt.Errorf("encode upgrade: %w", err)
	}
	return conn.SendReliable(wire.OpUpgradeSelected, payload)
}

// Disconnect tears the connection down and resets handshake state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.localID = 0
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// LocalID returns the entity id assigned by the server, 0 before joining.
func (c *Client) LocalID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localID
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *Client) Seed() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seed
}

func (c *Client) setError(err error) {
	log.Printf("[client] error: %v", err)
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// DrainKillEvents returns all pending kill events, non-blocking.
func (c *Client) DrainKillEvents() []netstate.EntityKilledEvent {
	return drainChan(c.killCh)
}

// DrainWaveEvents returns all pending wave-start events, non-blocking.
func (c *Client) DrainWaveEvents() []netstate.WaveStartEvent {
	return drainChan(c.waveCh)
}

// DrainBossEvents returns all pending boss-spawn events, non-blocking.
func (c *Client) DrainBossEvents() []netstate.BossSpawnEvent {
	return drainChan(c.bossCh)
}

// DrainLevelUpEvents returns all pending level-up events, non-blocking.
func (c *Client) DrainLevelUpEvents() []netstate.LevelUpEvent {
	return drainChan(c.levelUpCh)
}

// DrainXPEvents returns all pending xp-collected events, non-blocking.
func (c *Client) DrainXPEvents() []netstate.XPCollectedEvent {
	return drainChan(c.xpCh)
}

// DrainEndMatch returns a pending end-of-match event, if any.
func (c *Client) DrainEndMatch() (netstate.EndMatchEvent, bool) {
	select {
	case ev := <-c.endCh:
		return ev, true
	default:
		return netstate.EndMatchEvent{}, false
	}
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
