// Package protocol defines the wire-level signalling frame that
// multiplexes every control message exchanged over a node's WebSocket:
// challenge/announce handshake, roster requests, and the relayed
// PeerSetup envelopes that carry WebRTC offers/answers/ICE candidates.
package protocol

import "github.com/signalmesh/core/internal/identity"

// FrameKind discriminates the seven variants a signalling Frame can be.
type FrameKind string

const (
	KindChallenge       FrameKind = "Challenge"
	KindAnnounce        FrameKind = "Announce"
	KindListIDsRequest  FrameKind = "ListIDsRequest"
	KindListIDsReply    FrameKind = "ListIDsReply"
	KindClearNodes      FrameKind = "ClearNodes"
	KindPeerSetup       FrameKind = "PeerSetup"
	KindDone            FrameKind = "Done"
)

// Frame is the single textual object a WSSignalFrame is serialized as: a
// discriminator (Kind) plus whichever of the variant's payload fields
// apply. Unused fields are omitted on the wire.
type Frame struct {
	Kind FrameKind `json:"kind"`

	// Challenge carries the nonce for KindChallenge.
	Challenge identity.NodeID `json:"challenge,omitzero"`

	// AnnounceChallenge/AnnounceInfo carry the KindAnnounce payload.
	AnnounceChallenge identity.NodeID    `json:"announceChallenge,omitzero"`
	AnnounceInfo      *identity.NodeInfo `json:"announceInfo,omitempty"`

	// Nodes carries the KindListIDsReply payload.
	Nodes []identity.NodeInfo `json:"nodes,omitempty"`

	// PeerSetup carries the KindPeerSetup payload.
	PeerSetup *PeerInfo `json:"peerSetup,omitempty"`
}

// NewChallenge builds a Challenge frame.
func NewChallenge(id identity.NodeID) Frame {
	return Frame{Kind: KindChallenge, Challenge: id}
}

// NewAnnounce builds an Announce frame.
func NewAnnounce(challenge identity.NodeID, info identity.NodeInfo) Frame {
	return Frame{Kind: KindAnnounce, AnnounceChallenge: challenge, AnnounceInfo: &info}
}

// NewListIDsRequest builds a ListIDsRequest frame.
func NewListIDsRequest() Frame {
	return Frame{Kind: KindListIDsRequest}
}

// NewListIDsReply builds a ListIDsReply frame.
func NewListIDsReply(nodes []identity.NodeInfo) Frame {
	return Frame{Kind: KindListIDsReply, Nodes: nodes}
}

// NewClearNodes builds a ClearNodes (debug) frame.
func NewClearNodes() Frame {
	return Frame{Kind: KindClearNodes}
}

// NewPeerSetup builds a PeerSetup relay frame.
func NewPeerSetup(pi PeerInfo) Frame {
	return Frame{Kind: KindPeerSetup, PeerSetup: &pi}
}

// NewDone builds a no-op acknowledgement frame.
func NewDone() Frame {
	return Frame{Kind: KindDone}
}
