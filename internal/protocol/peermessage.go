package protocol

import "github.com/signalmesh/core/internal/identity"

// PeerMessageKind discriminates the steps of one WebRTC handshake.
type PeerMessageKind string

const (
	PeerInit       PeerMessageKind = "Init"
	PeerOffer      PeerMessageKind = "Offer"
	PeerAnswer     PeerMessageKind = "Answer"
	PeerIceInit    PeerMessageKind = "IceInit"
	PeerIceFollow  PeerMessageKind = "IceFollow"
	PeerHandDone   PeerMessageKind = "Done"
)

// PeerMessage is one step of the WebRTC setup state machine carried
// inside a PeerSetup frame. Init is a local sentinel only: it MUST NOT be
// emitted on the wire by a Follower, and a Follower that receives it
// rejects the handshake.
type PeerMessage struct {
	Kind      PeerMessageKind `json:"kind"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate string          `json:"candidate,omitempty"`
}

// Init constructs the local-only trigger for an Initializer to start.
func Init() PeerMessage { return PeerMessage{Kind: PeerInit} }

// Offer constructs an SDP offer step.
func Offer(sdp string) PeerMessage { return PeerMessage{Kind: PeerOffer, SDP: sdp} }

// Answer constructs an SDP answer step.
func Answer(sdp string) PeerMessage { return PeerMessage{Kind: PeerAnswer, SDP: sdp} }

// IceInit constructs an ICE candidate emitted by the Initializer.
func IceInit(candidate string) PeerMessage {
	return PeerMessage{Kind: PeerIceInit, Candidate: candidate}
}

// IceFollow constructs an ICE candidate emitted by the Follower.
func IceFollow(candidate string) PeerMessage {
	return PeerMessage{Kind: PeerIceFollow, Candidate: candidate}
}

// Done constructs the idempotent handshake acknowledgement.
func Done() PeerMessage { return PeerMessage{Kind: PeerHandDone} }

// PeerInfo is the signalling envelope relayed verbatim by the server for
// every WebRTC handshake step between two specific nodes. IDInit is the
// node that first sent Init; IDFollow is the other.
type PeerInfo struct {
	IDInit   identity.NodeID `json:"idInit"`
	IDFollow identity.NodeID `json:"idFollow"`
	Message  PeerMessage     `json:"message"`
}

// RemoteOf returns the peer of local within pi, or (_, false) if local is
// neither end of the pair — the "alien PeerSetup" case the caller must
// reject.
func (pi PeerInfo) RemoteOf(local identity.NodeID) (identity.NodeID, bool) {
	switch {
	case local.Equal(pi.IDInit):
		return pi.IDFollow, true
	case local.Equal(pi.IDFollow):
		return pi.IDInit, true
	default:
		return identity.NodeID{}, false
	}
}
