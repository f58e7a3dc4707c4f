// Package node implements the per-peer WebRTC setup container
// (Connection) and the node-side signalling orchestrator (Client) that
// drives it.
package node

import (
	"context"
	"sync"

	"github.com/signalmesh/core/internal/identity"
	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/protocol"
	"github.com/signalmesh/core/internal/webrtcsetup"
)

// Direction names one of the two handshake-or-channel slots a
// Connection holds per peer.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

type slot struct {
	handshake *webrtcsetup.PeerHandshake
	channel   webrtcsetup.DataChannel
	polling   bool
}

func (s *slot) empty() bool {
	return s.handshake == nil && s.channel == nil
}

// ReceiveFunc delivers one application payload from remote.
type ReceiveFunc func(remote identity.NodeID, payload string)

// FrameSender ships one PeerSetup frame back out over the owning
// ClientCore's WebSocket.
type FrameSender func(pi protocol.PeerInfo) error

// Connection is the per-remote-peer container holding up to one
// outgoing and one incoming handshake or live channel, plus the queue
// of payloads waiting for either to open.
type Connection struct {
	mu sync.Mutex

	self    identity.NodeID
	remote  identity.NodeID
	factory webrtcsetup.Factory
	send    FrameSender
	receive ReceiveFunc
	log     logging.Logger

	outgoing slot
	incoming slot
	queue    []string

	// lastFailure holds the reason the most recent handshake died
	// asynchronously (after the Send call that started it had already
	// returned), until the next Send reports it via NoTransportError and
	// clears it.
	lastFailure string
}

// NewConnection builds a Connection for one remote peer. factory may be
// nil on the server side, where no Connection is ever constructed.
func NewConnection(self, remote identity.NodeID, factory webrtcsetup.Factory, send FrameSender, receive ReceiveFunc, log logging.Logger) *Connection {
	return &Connection{
		self:    self,
		remote:  remote,
		factory: factory,
		send:    send,
		receive: receive,
		log:     log.Clone(remote.String()[:8]),
	}
}

// Send prefers a live channel, falls back to queuing behind an
// in-progress handshake, and only starts a brand new outgoing handshake
// once neither slot holds anything at all. If the previous handshake to
// this peer died after its Send call had already returned, that failure
// is reported once as NoTransportError before this call goes on to
// start a fresh attempt.
func (c *Connection) Send(ctx context.Context, payload string) error {
	c.mu.Lock()

	if c.outgoing.channel != nil {
		ch := c.outgoing.channel
		c.mu.Unlock()
		if err := ch.Send(payload); err != nil {
			return &TransportError{Err: err}
		}
		return nil
	}
	if c.incoming.channel != nil {
		ch := c.incoming.channel
		c.mu.Unlock()
		if err := ch.Send(payload); err != nil {
			return &TransportError{Err: err}
		}
		return nil
	}
	if !c.outgoing.empty() || !c.incoming.empty() {
		c.queue = append(c.queue, payload)
		c.mu.Unlock()
		return nil
	}

	if c.lastFailure != "" {
		reason := c.lastFailure
		c.lastFailure = ""
		c.mu.Unlock()
		return &NoTransportError{Remote: c.remote.String(), Reason: reason}
	}

	// Nothing in flight and no unreported failure: start a fresh outgoing handshake.
	h, err := c.factory.Spawn(webrtcsetup.Initializer)
	if err != nil {
		c.mu.Unlock()
		return &TransportError{Err: err}
	}
	hs := webrtcsetup.NewInitializer(h)
	c.outgoing.handshake = hs
	c.queue = append(c.queue, payload)
	c.mu.Unlock()

	offer, err := hs.Start(ctx)
	if err != nil {
		c.mu.Lock()
		if c.outgoing.handshake == hs {
			c.outgoing = slot{}
		}
		c.mu.Unlock()
		return &TransportError{Err: err}
	}

	if err := c.send(protocol.PeerInfo{IDInit: c.self, IDFollow: c.remote, Message: offer}); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// ProcessPeerSetup feeds one incoming PeerMessage into the handshake for
// the given direction. isRemoteInitiator is true when the local node is
// pi.id_follow, routing the message to the incoming slot; otherwise it
// routes to the outgoing slot. A non-nil PeerMessage return value must be
// rewrapped by the caller into a PeerSetup with the same
// id_init/id_follow and sent back out.
func (c *Connection) ProcessPeerSetup(ctx context.Context, msg protocol.PeerMessage, isRemoteInitiator bool) (*protocol.PeerMessage, error) {
	direction := Outgoing
	if isRemoteInitiator {
		direction = Incoming
	}

	c.mu.Lock()
	s := c.slot(direction)

	if s.channel != nil {
		c.mu.Unlock()
		return nil, nil // already live; duplicate wire traffic is ignored
	}

	if s.handshake == nil {
		if direction != Incoming {
			// An outgoing reply referencing a handshake we never started;
			// stray frame from a stale pairing.
			c.mu.Unlock()
			return nil, nil
		}
		if msg.Kind != protocol.PeerOffer {
			c.mu.Unlock()
			return nil, &ProtocolViolationError{Reason: "follower needs Offer first"}
		}
		h, err := c.factory.Spawn(webrtcsetup.Follower)
		if err != nil {
			c.mu.Unlock()
			return nil, &TransportError{Err: err}
		}
		s.handshake = webrtcsetup.NewFollower(h)
	} else if direction == Incoming && msg.Kind == protocol.PeerOffer && s.handshake.Phase() != webrtcsetup.Idle {
		// A second incoming Offer while the first handshake is still
		// mid-setup (simultaneous open from both sides): replace it
		// rather than queue behind it, so the most recent attempt wins.
		c.log.Warn("replacing stale incoming handshake mid-setup")
		h, err := c.factory.Spawn(webrtcsetup.Follower)
		if err != nil {
			c.mu.Unlock()
			return nil, &TransportError{Err: err}
		}
		s.handshake = webrtcsetup.NewFollower(h)
		s.polling = false
	}

	hs := s.handshake
	res := hs.Step(ctx, msg)
	emit := c.applyStepResultLocked(direction, hs, res)
	c.mu.Unlock()

	if res.Kind == webrtcsetup.ResultFail {
		return nil, &ProtocolViolationError{Reason: res.Reason}
	}
	return emit, nil
}

func (c *Connection) slot(d Direction) *slot {
	if d == Outgoing {
		return &c.outgoing
	}
	return &c.incoming
}

// applyStepResultLocked folds one StepResult into the named slot. Callers
// must hold c.mu. It returns the PeerMessage the caller should ship back
// out, if any.
func (c *Connection) applyStepResultLocked(direction Direction, hs *webrtcsetup.PeerHandshake, res webrtcsetup.StepResult) *protocol.PeerMessage {
	s := c.slot(direction)

	switch res.Kind {
	case webrtcsetup.ResultEmit:
		if hs.Phase() == webrtcsetup.IceExchange && !s.polling {
			s.polling = true
			go c.pollChannel(direction, hs)
		}
		msg := res.Emit
		return &msg

	case webrtcsetup.ResultLive:
		s.channel = res.Channel
		s.handshake = nil
		s.polling = false
		remote := c.remote
		receive := c.receive
		s.channel.SetOnMessage(func(payload string) { receive(remote, payload) })
		c.flushQueueLocked()
		if res.Emit.Kind != "" {
			msg := res.Emit
			return &msg
		}
		return nil

	case webrtcsetup.ResultFail:
		if s.handshake == hs {
			*s = slot{}
			c.lastFailure = res.Reason
		}
		return nil

	default: // ResultIgnore
		return nil
	}
}

// pollChannel blocks waiting for one handshake's data channel to open
// and folds the result back into the owning slot, unless that handshake
// was superseded (by a replace or a fresh Send) in the meantime.
func (c *Connection) pollChannel(direction Direction, hs *webrtcsetup.PeerHandshake) {
	res := hs.PollChannel(context.Background())

	c.mu.Lock()
	s := c.slot(direction)
	if s.handshake != hs {
		c.mu.Unlock()
		return
	}
	emit := c.applyStepResultLocked(direction, hs, res)
	self, remote := c.self, c.remote
	c.mu.Unlock()

	if emit != nil {
		if err := c.send(protocol.PeerInfo{IDInit: initOf(direction, self, remote), IDFollow: followOf(direction, self, remote), Message: *emit}); err != nil {
			c.log.Warn("failed to send post-live frame: %v", err)
		}
	}
}

func initOf(d Direction, self, remote identity.NodeID) identity.NodeID {
	if d == Outgoing {
		return self
	}
	return remote
}

func followOf(d Direction, self, remote identity.NodeID) identity.NodeID {
	if d == Outgoing {
		return remote
	}
	return self
}

// flushQueueLocked drains the outgoing queue into whichever channel just
// went live, preferring outgoing over incoming, preserving submission
// order. Callers must hold c.mu.
func (c *Connection) flushQueueLocked() {
	if len(c.queue) == 0 {
		return
	}
	var ch webrtcsetup.DataChannel
	if c.outgoing.channel != nil {
		ch = c.outgoing.channel
	} else if c.incoming.channel != nil {
		ch = c.incoming.channel
	} else {
		return
	}
	pending := c.queue
	c.queue = nil
	for _, payload := range pending {
		if err := ch.Send(payload); err != nil {
			c.log.Warn("dropping queued payload after send failure: %v", err)
			return
		}
	}
}

// HasTransport reports whether any path (live channel or in-progress
// handshake) currently exists for this peer.
func (c *Connection) HasTransport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.outgoing.empty() || !c.incoming.empty()
}
