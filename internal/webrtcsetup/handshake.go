package webrtcsetup

import (
	"context"
	"fmt"

	"github.com/signalmesh/core/internal/protocol"
)

// Phase is one state of the PeerHandshake state machine.
type Phase int

const (
	Idle Phase = iota
	OfferSent
	AnswerSent
	IceExchange
	Live
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case OfferSent:
		return "OfferSent"
	case AnswerSent:
		return "AnswerSent"
	case IceExchange:
		return "IceExchange"
	case Live:
		return "Live"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ResultKind discriminates the four outcomes Step/PollChannel can produce.
type ResultKind int

const (
	ResultEmit ResultKind = iota
	ResultLive
	ResultIgnore
	ResultFail
)

// StepResult is the outcome of one PeerHandshake transition.
type StepResult struct {
	Kind ResultKind

	// Emit is set when Kind is ResultEmit, and additionally when Kind is
	// ResultLive for the Initializer's "channel goes live and a trailing
	// Done frame must still go out" transition.
	Emit protocol.PeerMessage

	// Channel is set when Kind is ResultLive.
	Channel DataChannel

	// Reason is set when Kind is ResultFail.
	Reason string
}

func emit(msg protocol.PeerMessage) StepResult { return StepResult{Kind: ResultEmit, Emit: msg} }
func ignore() StepResult                       { return StepResult{Kind: ResultIgnore} }
func fail(reason string) StepResult            { return StepResult{Kind: ResultFail, Reason: reason} }
func live(ch DataChannel) StepResult           { return StepResult{Kind: ResultLive, Channel: ch} }
func liveWithDone(ch DataChannel) StepResult {
	return StepResult{Kind: ResultLive, Channel: ch, Emit: protocol.Done()}
}

// PeerHandshake drives one side of the WebRTC offer/answer/ICE exchange
// for a single peer pairing. It has no knowledge of Connection or the
// signalling transport; it only consumes PeerMessage steps and the
// local data-channel-open event, and produces the next frame to emit, a
// live DataChannel, or a failure.
type PeerHandshake struct {
	role  Role
	phase Phase
	setup SetupHandle

	sdpApplied bool
	pendingICE []string
}

// NewInitializer creates a handshake in the Initializer role, still in
// phase Idle. Call Start to produce the first Offer.
func NewInitializer(setup SetupHandle) *PeerHandshake {
	return &PeerHandshake{role: Initializer, phase: Idle, setup: setup}
}

// NewFollower creates a handshake in the Follower role, still in phase
// Idle, waiting for the remote Offer.
func NewFollower(setup SetupHandle) *PeerHandshake {
	return &PeerHandshake{role: Follower, phase: Idle, setup: setup}
}

// Role reports which side of the handshake this is.
func (h *PeerHandshake) Role() Role { return h.role }

// Phase reports the current state, for tests and diagnostics.
func (h *PeerHandshake) Phase() Phase { return h.phase }

// Start transitions Idle -> OfferSent for an Initializer, producing the
// SDP offer to send to the remote Follower. It is invalid to call Start
// on a Follower or outside phase Idle.
func (h *PeerHandshake) Start(ctx context.Context) (protocol.PeerMessage, error) {
	if h.role != Initializer {
		return protocol.PeerMessage{}, fmt.Errorf("webrtcsetup: Start is only valid for Initializer")
	}
	if h.phase != Idle {
		return protocol.PeerMessage{}, fmt.Errorf("webrtcsetup: Start called in phase %s", h.phase)
	}
	sdp, err := h.setup.MakeOffer(ctx)
	if err != nil {
		h.phase = Failed
		return protocol.PeerMessage{}, fmt.Errorf("webrtcsetup: MakeOffer: %w", err)
	}
	h.phase = OfferSent
	return protocol.Offer(sdp), nil
}

// Step consumes one PeerMessage and returns the next action. It is the
// single entry point for every wire-triggered transition of both the
// Initializer and the Follower state machines.
func (h *PeerHandshake) Step(ctx context.Context, msg protocol.PeerMessage) StepResult {
	if h.phase == Live {
		// Any Done (or anything else) received after Live is idempotent.
		return ignore()
	}
	if h.phase == Failed {
		return ignore()
	}

	if h.role == Initializer {
		return h.stepInitializer(ctx, msg)
	}
	return h.stepFollower(ctx, msg)
}

func (h *PeerHandshake) stepInitializer(ctx context.Context, msg protocol.PeerMessage) StepResult {
	switch h.phase {
	case Idle:
		if msg.Kind != protocol.PeerInit {
			h.phase = Failed
			return fail("initializer requires a local Init trigger before any wire message")
		}
		return ignore()

	case OfferSent:
		if msg.Kind != protocol.PeerAnswer {
			return ignore()
		}
		if err := h.setup.UseAnswer(ctx, msg.SDP); err != nil {
			h.phase = Failed
			return fail(fmt.Sprintf("UseAnswer: %v", err))
		}
		h.sdpApplied = true
		h.phase = IceExchange
		if err := h.replayPendingICE(ctx); err != nil {
			h.phase = Failed
			return fail(err.Error())
		}
		// Trickle ICE starts on the Initializer's side as soon as the
		// answer is installed, independent of any inbound frame — the
		// same way pion's OnICECandidate fires spontaneously once
		// SetRemoteDescription has run.
		return h.emitOwnCandidateOrDone(ctx, protocol.IceInit)

	case IceExchange:
		switch msg.Kind {
		case protocol.PeerIceFollow:
			if err := h.ingestICE(ctx, msg.Candidate); err != nil {
				h.phase = Failed
				return fail(err.Error())
			}
			return h.emitOwnCandidateOrDone(ctx, protocol.IceInit)
		case protocol.PeerHandDone:
			return ignore()
		default:
			return ignore()
		}

	default:
		return ignore()
	}
}

func (h *PeerHandshake) stepFollower(ctx context.Context, msg protocol.PeerMessage) StepResult {
	switch h.phase {
	case Idle:
		if msg.Kind != protocol.PeerOffer {
			h.phase = Failed
			return fail("follower needs Offer first")
		}
		answerSDP, err := h.setup.MakeAnswer(ctx, msg.SDP)
		if err != nil {
			h.phase = Failed
			return fail(fmt.Sprintf("MakeAnswer: %v", err))
		}
		h.sdpApplied = true
		h.phase = AnswerSent
		if err := h.replayPendingICE(ctx); err != nil {
			h.phase = Failed
			return fail(err.Error())
		}
		return emit(protocol.Answer(answerSDP))

	case AnswerSent:
		if msg.Kind != protocol.PeerIceInit {
			return ignore()
		}
		if err := h.ingestICE(ctx, msg.Candidate); err != nil {
			h.phase = Failed
			return fail(err.Error())
		}
		h.phase = IceExchange
		return h.emitOwnCandidateOrDone(ctx, protocol.IceFollow)

	case IceExchange:
		switch msg.Kind {
		case protocol.PeerIceInit:
			if err := h.ingestICE(ctx, msg.Candidate); err != nil {
				h.phase = Failed
				return fail(err.Error())
			}
			return h.emitOwnCandidateOrDone(ctx, protocol.IceFollow)
		default:
			return ignore()
		}

	default:
		return ignore()
	}
}

// emitOwnCandidateOrDone fetches this side's next local ICE candidate and
// wraps it with buildMsg, or emits Done once local gathering is
// exhausted (ICEString returns "").
func (h *PeerHandshake) emitOwnCandidateOrDone(
	ctx context.Context,
	buildMsg func(string) protocol.PeerMessage,
) StepResult {
	own, err := h.setup.ICEString(ctx)
	if err != nil {
		h.phase = Failed
		return fail(fmt.Sprintf("ICEString: %v", err))
	}
	if own == "" {
		return emit(protocol.Done())
	}
	return emit(buildMsg(own))
}

// ingestICE installs candidate immediately if the remote SDP has already
// been applied; otherwise it buffers it in arrival order for replay
// right after SDP install, since a remote ICE candidate can arrive
// before this side has finished installing the offer/answer it trickles
// against.
func (h *PeerHandshake) ingestICE(ctx context.Context, candidate string) error {
	if !h.sdpApplied {
		h.pendingICE = append(h.pendingICE, candidate)
		return nil
	}
	if err := h.setup.ICEPut(ctx, candidate); err != nil {
		return fmt.Errorf("ICEPut: %w", err)
	}
	return nil
}

func (h *PeerHandshake) replayPendingICE(ctx context.Context) error {
	pending := h.pendingICE
	h.pendingICE = nil
	for _, candidate := range pending {
		if err := h.setup.ICEPut(ctx, candidate); err != nil {
			return fmt.Errorf("ICEPut (replay): %w", err)
		}
	}
	return nil
}

// PollChannel waits for the local data-channel-open event and
// transitions to Live, for either role. It blocks until the channel
// opens, the setup fails, or ctx is cancelled, so callers run it in its
// own goroutine and feed the result back through their own
// synchronization — it performs no locking of its own, and callers must
// re-acquire their own lock before touching any shared state with the
// result.
func (h *PeerHandshake) PollChannel(ctx context.Context) StepResult {
	if h.phase != IceExchange {
		return ignore()
	}
	ch, err := h.setup.GetChannel(ctx)
	if err != nil {
		h.phase = Failed
		return fail(fmt.Sprintf("GetChannel: %v", err))
	}
	h.phase = Live
	if h.role == Initializer {
		return liveWithDone(ch)
	}
	return live(ch)
}
