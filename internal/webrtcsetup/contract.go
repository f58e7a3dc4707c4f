// Package webrtcsetup defines the abstract WebRTC collaborator that
// PeerHandshake drives, and implements PeerHandshake itself — the
// per-side WebRTC setup state machine. The concrete stack (SDP
// generation, ICE gathering, DTLS, data-channel I/O) lives in the
// pionsetup subpackage and is treated here only through this contract.
package webrtcsetup

import "context"

// Role is the WebRTC side a SetupHandle was spawned for.
type Role int

const (
	// Initializer creates the offer.
	Initializer Role = iota
	// Follower responds with an answer.
	Follower
)

func (r Role) String() string {
	if r == Initializer {
		return "Initializer"
	}
	return "Follower"
}

// Factory spawns a new setup handle for the given role. It is a pure
// function of role and may be called concurrently from distinct
// Connections.
type Factory interface {
	Spawn(role Role) (SetupHandle, error)
}

// SetupHandle is one in-flight WebRTC negotiation. Every method may
// block on network or gathering I/O; callers must be prepared for the
// context to be cancelled mid-call.
type SetupHandle interface {
	MakeOffer(ctx context.Context) (sdp string, err error)
	MakeAnswer(ctx context.Context, offerSDP string) (sdp string, err error)
	UseAnswer(ctx context.Context, answerSDP string) error
	WaitGathering(ctx context.Context) error
	ICEString(ctx context.Context) (string, error)
	ICEPut(ctx context.Context, candidate string) error

	// GetChannel blocks until the data channel backing this setup opens,
	// or ctx is cancelled.
	GetChannel(ctx context.Context) (DataChannel, error)

	// Close releases any resources held by a setup that never completed.
	Close() error
}

// DataChannel is the live, post-handshake transport for application
// payloads. It is the only path application messages take once a
// Connection slot reaches Live.
type DataChannel interface {
	Send(payload string) error
	SetOnMessage(fn func(payload string))
	Close() error
}
