// Package signalserver implements the rendez-vous side of the
// signalling protocol: it assigns each connection a challenge id,
// records announced node identities, relays PeerSetup frames between
// them, and answers roster requests, routing PeerSetup by announced
// public key rather than by the ephemeral challenge id.
package signalserver

import (
	"sync"

	"github.com/google/uuid"

	"github.com/signalmesh/core/internal/identity"
	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/protocol"
	"github.com/signalmesh/core/internal/wsconn"
)

type nodeEntry struct {
	conn      wsconn.Conn
	challenge identity.NodeID
	info      *identity.NodeInfo
}

// Server is one WebSocket server plus the map of currently connected
// entries, all guarded by a single mutex.
type Server struct {
	mu         sync.Mutex
	entries    map[identity.NodeID]*nodeEntry
	log        logging.Logger
	instanceID string
}

// NewServer returns an empty ServerCore. instanceID is a random tag
// distinguishing this ServerCore's log lines from any other instance
// running in the same process (useful when a test stands up several
// servers side by side); it never appears on the wire.
func NewServer(log logging.Logger) *Server {
	instanceID := uuid.NewString()
	return &Server{
		entries:    make(map[identity.NodeID]*nodeEntry),
		log:        log.Clone("server[" + instanceID[:8] + "]"),
		instanceID: instanceID,
	}
}

// Attach wires a newly accepted connection into the server: a fresh
// random NodeId becomes its ChallengeId, a Challenge frame is sent, and
// the entry is recorded.
func (s *Server) Attach(conn wsconn.Conn) {
	challenge := identity.RandomNodeID()
	e := &nodeEntry{conn: conn, challenge: challenge}

	s.mu.Lock()
	s.entries[challenge] = e
	s.mu.Unlock()

	conn.SetMessageCallback(func(ev wsconn.Event) {
		s.onEvent(challenge, ev)
	})

	if err := s.sendTo(e, protocol.NewChallenge(challenge)); err != nil {
		s.log.Error("failed to send challenge: %v", err)
	}
}

func (s *Server) onEvent(challenge identity.NodeID, ev wsconn.Event) {
	switch ev.Kind {
	case wsconn.EventMessage:
		s.onFrame(challenge, []byte(ev.Text))
	case wsconn.EventClosed:
		s.onClose(challenge)
	case wsconn.EventError:
		s.log.Error("connection %s: %v", challenge, ev.Err)
		s.onClose(challenge)
	}
}

func (s *Server) onClose(challenge identity.NodeID) {
	s.mu.Lock()
	delete(s.entries, challenge)
	s.mu.Unlock()
}

func (s *Server) onFrame(challenge identity.NodeID, data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		s.log.Warn("decode failed, dropping frame: %v", err)
		return
	}

	switch f.Kind {
	case protocol.KindAnnounce:
		s.onAnnounce(challenge, f.AnnounceInfo)
	case protocol.KindListIDsRequest:
		s.onListIDsRequest(challenge)
	case protocol.KindClearNodes:
		s.onClearNodes()
	case protocol.KindPeerSetup:
		if f.PeerSetup != nil {
			s.onPeerSetup(challenge, *f.PeerSetup)
		}
	default:
		// Challenge, ListIDsReply, Done are never expected inbound on the
		// server; ignore.
	}
}

// onAnnounce implements last-writer-wins eviction by public key: any
// other entry already announced under the same public key is dropped
// before this one takes over it, so a reconnecting node never leaves a
// stale duplicate behind.
func (s *Server) onAnnounce(challenge identity.NodeID, info *identity.NodeInfo) {
	if info == nil {
		return
	}

	s.mu.Lock()
	for ch, e := range s.entries {
		if ch == challenge {
			continue
		}
		if e.info != nil && e.info.Public.Equal(info.Public) {
			delete(s.entries, ch)
		}
	}
	if e, ok := s.entries[challenge]; ok {
		infoCopy := *info
		e.info = &infoCopy
	}
	s.mu.Unlock()
}

func (s *Server) onListIDsRequest(challenge identity.NodeID) {
	s.mu.Lock()
	e, ok := s.entries[challenge]
	if !ok {
		s.mu.Unlock()
		return
	}
	var nodes []identity.NodeInfo
	for _, other := range s.entries {
		if other.info != nil {
			nodes = append(nodes, *other.info)
		}
	}
	s.mu.Unlock()

	if err := s.sendTo(e, protocol.NewListIDsReply(nodes)); err != nil {
		s.log.Error("failed to send ListIDsReply: %v", err)
	}
}

func (s *Server) onClearNodes() {
	s.mu.Lock()
	for k := range s.entries {
		s.entries[k].info = nil
	}
	s.mu.Unlock()
}

// onPeerSetup relays a PeerSetup frame to whichever of id_init/id_follow
// is NOT the sender's own announced public key.
func (s *Server) onPeerSetup(challenge identity.NodeID, pi protocol.PeerInfo) {
	s.mu.Lock()
	sender, ok := s.entries[challenge]
	if !ok || sender.info == nil {
		s.mu.Unlock()
		s.log.Warn("PeerSetup from unannounced connection, dropping")
		return
	}

	dest := pi.IDFollow
	if sender.info.Public.Equal(pi.IDFollow) {
		dest = pi.IDInit
	}

	var target *nodeEntry
	for _, e := range s.entries {
		if e.info != nil && e.info.Public.Equal(dest) {
			target = e
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		s.log.Warn("%v", &NoRouteError{Destination: dest.String()})
		return
	}
	if err := s.sendTo(target, protocol.NewPeerSetup(pi)); err != nil {
		s.log.Error("failed to relay PeerSetup: %v", err)
	}
}

func (s *Server) sendTo(e *nodeEntry, f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	return e.conn.Send(string(data))
}

// NumEntries reports the live entry count, for tests and diagnostics.
func (s *Server) NumEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
