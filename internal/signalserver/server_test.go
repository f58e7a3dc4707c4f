package signalserver_test

import (
	"sync"
	"testing"

	"github.com/signalmesh/core/internal/identity"
	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/protocol"
	"github.com/signalmesh/core/internal/signalserver"
	"github.com/signalmesh/core/internal/wsconn"
)

// fakeConn is a minimal wsconn.Conn double recording every frame the
// server sends to it and allowing the test to inject inbound events.
type fakeConn struct {
	mu    sync.Mutex
	cb    func(wsconn.Event)
	sent  []string
	label string
}

func (c *fakeConn) SetMessageCallback(fn func(wsconn.Event)) {
	c.mu.Lock()
	c.cb = fn
	c.mu.Unlock()
}

func (c *fakeConn) Send(text string) error {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) RemoteLabel() string { return c.label }
func (c *fakeConn) Close() error        { return nil }

func (c *fakeConn) deliver(ev wsconn.Event) {
	c.mu.Lock()
	fn := c.cb
	c.mu.Unlock()
	fn(ev)
}

func (c *fakeConn) deliverFrame(t *testing.T, f protocol.Frame) {
	t.Helper()
	data, err := protocol.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	c.deliver(wsconn.Event{Kind: wsconn.EventMessage, Text: string(data)})
}

func (c *fakeConn) framesOfKind(t *testing.T, kind protocol.FrameKind) []protocol.Frame {
	t.Helper()
	c.mu.Lock()
	sent := append([]string(nil), c.sent...)
	c.mu.Unlock()

	var out []protocol.Frame
	for _, s := range sent {
		f, err := protocol.Decode([]byte(s))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func attachAndChallenge(t *testing.T, srv *signalserver.Server, label string) (*fakeConn, identity.NodeID) {
	t.Helper()
	conn := &fakeConn{label: label}
	srv.Attach(conn)

	challenges := conn.framesOfKind(t, protocol.KindChallenge)
	if len(challenges) != 1 {
		t.Fatalf("expected exactly one Challenge on attach, got %d", len(challenges))
	}
	return conn, challenges[0].Challenge
}

func announce(t *testing.T, conn *fakeConn, challenge identity.NodeID, info identity.NodeInfo) {
	t.Helper()
	conn.deliverFrame(t, protocol.NewAnnounce(challenge, info))
}

// TestChallengeThenAnnounce verifies attaching sends exactly one
// Challenge, and an Announce on that connection leaves the entry count
// at one.
func TestChallengeThenAnnounce(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())
	conn, challenge := attachAndChallenge(t, srv, "a")

	info := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}
	announce(t, conn, challenge, info)

	if srv.NumEntries() != 1 {
		t.Fatalf("expected 1 entry after announce, got %d", srv.NumEntries())
	}
}

// TestAnnounceIsLastWriterWins verifies re-announcing the same public
// key from a new connection evicts the stale entry rather than
// accumulating duplicates.
func TestAnnounceIsLastWriterWins(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())
	info := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}

	connOld, challengeOld := attachAndChallenge(t, srv, "a-old")
	announce(t, connOld, challengeOld, info)

	connNew, challengeNew := attachAndChallenge(t, srv, "a-new")
	announce(t, connNew, challengeNew, info)

	if n := srv.NumEntries(); n != 1 {
		t.Fatalf("expected exactly 1 entry after re-announce, got %d", n)
	}
}

// TestRosterExchange verifies ListIDsRequest returns every announced
// node, including the requester itself — the client is responsible for
// filtering self out of the roster.
func TestRosterExchange(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())

	connA, challengeA := attachAndChallenge(t, srv, "a")
	infoA := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}
	announce(t, connA, challengeA, infoA)

	connB, challengeB := attachAndChallenge(t, srv, "b")
	infoB := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "b"}
	announce(t, connB, challengeB, infoB)

	connA.deliverFrame(t, protocol.NewListIDsRequest())

	replies := connA.framesOfKind(t, protocol.KindListIDsReply)
	if len(replies) != 1 {
		t.Fatalf("expected exactly one ListIDsReply, got %d", len(replies))
	}
	if len(replies[0].Nodes) != 2 {
		t.Fatalf("expected roster of 2 (including self), got %d", len(replies[0].Nodes))
	}
}

// TestPeerSetupRelayByPublicKey verifies the relay destination is
// resolved by announced public key, not by the ephemeral challenge id,
// and the frame is forwarded verbatim.
func TestPeerSetupRelayByPublicKey(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())

	connA, challengeA := attachAndChallenge(t, srv, "a")
	infoA := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}
	announce(t, connA, challengeA, infoA)

	connB, challengeB := attachAndChallenge(t, srv, "b")
	infoB := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "b"}
	announce(t, connB, challengeB, infoB)

	pi := protocol.PeerInfo{IDInit: infoA.Public, IDFollow: infoB.Public, Message: protocol.Offer("v=0 sdp")}
	connA.deliverFrame(t, protocol.NewPeerSetup(pi))

	relayed := connB.framesOfKind(t, protocol.KindPeerSetup)
	if len(relayed) != 1 {
		t.Fatalf("expected exactly one relayed PeerSetup on B, got %d", len(relayed))
	}
	if relayed[0].PeerSetup.Message.SDP != "v=0 sdp" {
		t.Fatalf("relayed frame carried wrong SDP: %+v", relayed[0].PeerSetup)
	}

	if got := connA.framesOfKind(t, protocol.KindPeerSetup); len(got) != 0 {
		t.Fatalf("sender should not receive its own PeerSetup relayed back, got %d", len(got))
	}
}

// TestPeerSetupWithNoRouteIsDropped exercises the NoRouteError path: a
// PeerSetup naming an unknown public key is logged and silently dropped.
func TestPeerSetupWithNoRouteIsDropped(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())

	connA, challengeA := attachAndChallenge(t, srv, "a")
	infoA := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}
	announce(t, connA, challengeA, infoA)

	unknown := identity.RandomNodeID()
	pi := protocol.PeerInfo{IDInit: infoA.Public, IDFollow: unknown, Message: protocol.Offer("v=0 sdp")}
	connA.deliverFrame(t, protocol.NewPeerSetup(pi))

	if got := connA.framesOfKind(t, protocol.KindPeerSetup); len(got) != 0 {
		t.Fatalf("expected no relay for an unroutable PeerSetup, got %d", len(got))
	}
}

// TestClearNodesResetsAnnouncements verifies that after ClearNodes, a
// roster request returns no nodes even though connections remain
// attached.
func TestClearNodesResetsAnnouncements(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())

	connA, challengeA := attachAndChallenge(t, srv, "a")
	infoA := identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"}
	announce(t, connA, challengeA, infoA)

	connA.deliverFrame(t, protocol.NewClearNodes())
	connA.deliverFrame(t, protocol.NewListIDsRequest())

	replies := connA.framesOfKind(t, protocol.KindListIDsReply)
	if len(replies) != 1 {
		t.Fatalf("expected exactly one ListIDsReply, got %d", len(replies))
	}
	if len(replies[0].Nodes) != 0 {
		t.Fatalf("expected empty roster after ClearNodes, got %d", len(replies[0].Nodes))
	}
	if srv.NumEntries() != 1 {
		t.Fatalf("ClearNodes must not drop the connection entry itself, got %d entries", srv.NumEntries())
	}
}

// TestDisconnectRemovesEntry checks that an EventClosed event evicts the
// entry entirely, not just its announced info.
func TestDisconnectRemovesEntry(t *testing.T) {
	srv := signalserver.NewServer(logging.NewNopLogger())
	conn, challenge := attachAndChallenge(t, srv, "a")
	announce(t, conn, challenge, identity.NodeInfo{Public: identity.RandomNodeID(), Name: "a"})

	conn.deliver(wsconn.Event{Kind: wsconn.EventClosed})

	if srv.NumEntries() != 0 {
		t.Fatalf("expected 0 entries after disconnect, got %d", srv.NumEntries())
	}
}
