package node

import (
	"context"
	"sync"

	"github.com/signalmesh/core/internal/identity"
	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/protocol"
	"github.com/signalmesh/core/internal/webrtcsetup"
	"github.com/signalmesh/core/internal/wsconn"
)

// Client is the node-side signalling orchestrator. It owns the
// WebSocket, the map of per-peer Connections, and the last roster
// snapshot. A single mutex guards the map, the roster and the pending
// challenge; frames are written with conn.Send outside that mutex.
type Client struct {
	mu sync.Mutex

	self    identity.NodeInfo
	conn    wsconn.Conn
	factory webrtcsetup.Factory
	receive ReceiveFunc
	log     logging.Logger

	peers   map[identity.NodeID]*Connection
	roster  []identity.NodeInfo
	pending *identity.NodeID // challenge awaiting NodeInfo, if any
}

// NewClient wires conn's message callback to the dispatcher and returns a
// ready ClientCore.
func NewClient(conn wsconn.Conn, factory webrtcsetup.Factory, receive ReceiveFunc, log logging.Logger, self identity.NodeInfo) *Client {
	c := &Client{
		self:    self,
		conn:    conn,
		factory: factory,
		receive: receive,
		log:     log.Clone("client"),
		peers:   make(map[identity.NodeID]*Connection),
	}
	conn.SetMessageCallback(c.onEvent)
	return c
}

func (c *Client) onEvent(ev wsconn.Event) {
	switch ev.Kind {
	case wsconn.EventMessage:
		c.onFrame([]byte(ev.Text))
	case wsconn.EventError:
		c.log.Error("websocket error: %v", ev.Err)
		fallthrough
	case wsconn.EventClosed:
		c.log.Warn("websocket closed")
	case wsconn.EventOpened:
		c.log.Info("websocket opened")
	}
}

func (c *Client) onFrame(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn("decode failed, dropping frame: %v", err)
		return
	}

	switch f.Kind {
	case protocol.KindChallenge:
		c.onChallenge(f.Challenge)
	case protocol.KindListIDsReply:
		c.onRoster(f.Nodes)
	case protocol.KindPeerSetup:
		if f.PeerSetup == nil {
			return
		}
		c.onPeerSetup(*f.PeerSetup)
	default:
		// Done, Announce, ListIDsRequest, ClearNodes are never expected
		// inbound on a client.
	}
}

// onChallenge answers a Challenge with exactly one Announce, carrying
// this node's own identity.
func (c *Client) onChallenge(challenge identity.NodeID) {
	c.mu.Lock()
	info := c.self
	c.pending = nil
	c.mu.Unlock()

	if err := c.sendFrameRaw(protocol.NewAnnounce(challenge, info)); err != nil {
		c.log.Error("failed to send Announce: %v", err)
	}
}

func (c *Client) onRoster(nodes []identity.NodeInfo) {
	filtered := identity.FilterSelf(nodes, c.self.Public)
	c.mu.Lock()
	c.roster = filtered
	c.mu.Unlock()
}

// onPeerSetup routes an inbound PeerSetup frame to the Connection for
// whichever side of id_init/id_follow is not this node, then ships any
// reply frame the handshake produces back out.
func (c *Client) onPeerSetup(pi protocol.PeerInfo) {
	remote, ok := pi.RemoteOf(c.self.Public)
	if !ok {
		c.log.Warn("%v", &AlienPeerSetupError{Self: c.self.Public.String()})
		return
	}

	isRemoteInitiator := remote.Equal(pi.IDInit)
	conn := c.connectionFor(remote)

	emit, err := conn.ProcessPeerSetup(context.Background(), pi.Message, isRemoteInitiator)
	if err != nil {
		c.log.Warn("peer setup with %s: %v", remote, err)
		return
	}
	if emit == nil {
		return
	}

	reply := protocol.PeerInfo{IDInit: pi.IDInit, IDFollow: pi.IDFollow, Message: *emit}
	if err := c.sendFrameRaw(protocol.NewPeerSetup(reply)); err != nil {
		c.log.Error("failed to send PeerSetup reply: %v", err)
	}
}

// connectionFor looks up or lazily creates the Connection for remote.
func (c *Client) connectionFor(remote identity.NodeID) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.peers[remote]; ok {
		return conn
	}
	conn := NewConnection(c.self.Public, remote, c.factory, c.sendPeerSetupFrame, c.receive, c.log)
	c.peers[remote] = conn
	return conn
}

func (c *Client) sendPeerSetupFrame(pi protocol.PeerInfo) error {
	return c.sendFrameRaw(protocol.NewPeerSetup(pi))
}

func (c *Client) sendFrameRaw(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	return c.conn.Send(string(data))
}

// Send delegates to the named peer's Connection, creating one lazily if
// needed.
func (c *Client) Send(ctx context.Context, dst identity.NodeID, payload string) error {
	conn := c.connectionFor(dst)
	return conn.Send(ctx, payload)
}

// Broadcast sends payload to every node currently in the roster.
func (c *Client) Broadcast(ctx context.Context, payload string) []error {
	var errs []error
	for _, ni := range c.List() {
		if err := c.Send(ctx, ni.Public, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// List returns the last roster snapshot received from the server, with
// this node's own identity always filtered out.
func (c *Client) List() []identity.NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.NodeInfo, len(c.roster))
	copy(out, c.roster)
	return out
}

// UpdateList requests a fresh roster snapshot from the server.
func (c *Client) UpdateList() error {
	return c.sendFrameRaw(protocol.NewListIDsRequest())
}

// Clear asks the server to forget every announced identity (debug).
func (c *Client) Clear() error {
	return c.sendFrameRaw(protocol.NewClearNodes())
}
