package pionsetup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/signalmesh/core/internal/webrtcsetup"
)

// handle is the pion-backed webrtcsetup.SetupHandle for one negotiation.
type handle struct {
	pc   *webrtc.PeerConnection
	role webrtcsetup.Role

	candidates chan string // closed once local gathering completes

	mu      sync.Mutex
	dc      *dataChannel
	channel chan webrtcsetup.DataChannel
	once    sync.Once
}

func newHandle(pc *webrtc.PeerConnection, role webrtcsetup.Role) *handle {
	return &handle{
		pc:         pc,
		role:       role,
		candidates: make(chan string, 32),
		channel:    make(chan webrtcsetup.DataChannel, 1),
	}
}

func (h *handle) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		close(h.candidates)
		return
	}
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return
	}
	h.candidates <- string(data)
}

func (h *handle) bindOwnDataChannel(raw *webrtc.DataChannel) {
	dc := newDataChannel(raw)
	h.mu.Lock()
	h.dc = dc
	h.mu.Unlock()
	raw.OnOpen(func() {
		h.once.Do(func() { h.channel <- dc })
	})
}

func (h *handle) MakeOffer(ctx context.Context) (string, error) {
	offer, err := h.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("pionsetup: CreateOffer: %w", err)
	}
	if err := h.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("pionsetup: SetLocalDescription: %w", err)
	}
	return offer.SDP, nil
}

func (h *handle) MakeAnswer(ctx context.Context, offerSDP string) (string, error) {
	if err := h.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		return "", fmt.Errorf("pionsetup: SetRemoteDescription(offer): %w", err)
	}
	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("pionsetup: CreateAnswer: %w", err)
	}
	if err := h.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("pionsetup: SetLocalDescription: %w", err)
	}
	return answer.SDP, nil
}

func (h *handle) UseAnswer(ctx context.Context, answerSDP string) error {
	if err := h.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return fmt.Errorf("pionsetup: SetRemoteDescription(answer): %w", err)
	}
	return nil
}

func (h *handle) WaitGathering(ctx context.Context) error {
	<-webrtc.GatheringCompletePromise(h.pc)
	return nil
}

// ICEString returns this side's next locally gathered candidate, or ""
// once OnICECandidate has fired with nil (gathering exhausted).
func (h *handle) ICEString(ctx context.Context) (string, error) {
	select {
	case candidate, ok := <-h.candidates:
		if !ok {
			return "", nil
		}
		return candidate, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *handle) ICEPut(ctx context.Context, candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return fmt.Errorf("pionsetup: decode ICE candidate: %w", err)
	}
	if err := h.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("pionsetup: AddICECandidate: %w", err)
	}
	return nil
}

func (h *handle) GetChannel(ctx context.Context) (webrtcsetup.DataChannel, error) {
	select {
	case ch := <-h.channel:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *handle) Close() error {
	return h.pc.Close()
}
