package webrtcsetup_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalmesh/core/internal/webrtcsetup"
)

// mockChannel is an in-memory DataChannel; two linked mockChannels
// simulate a data channel pair by forwarding each Send directly into the
// other's registered callback, without any real network or WebRTC stack
// involved.
type mockChannel struct {
	mu     sync.Mutex
	onMsg  func(string)
	peer   *mockChannel
	closed bool
}

func linkedMockChannels() (a, b *mockChannel) {
	a = &mockChannel{}
	b = &mockChannel{}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *mockChannel) Send(payload string) error {
	c.mu.Lock()
	closed := c.closed
	peer := c.peer
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("mockChannel: send on closed channel")
	}
	peer.mu.Lock()
	fn := peer.onMsg
	peer.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
	return nil
}

func (c *mockChannel) SetOnMessage(fn func(string)) {
	c.mu.Lock()
	c.onMsg = fn
	c.mu.Unlock()
}

func (c *mockChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// mockSetup is a deterministic SetupHandle: SDPs and ICE candidates are
// opaque tags, and GetChannel blocks until the test hands it a channel
// via setChannel — enough to drive PeerHandshake through every phase
// without a real WebRTC stack.
type mockSetup struct {
	role        webrtcsetup.Role
	iceSent     bool
	channelOnce sync.Once
	channel     webrtcsetup.DataChannel
	readyCh     chan struct{}
}

func newMockSetup(role webrtcsetup.Role) *mockSetup {
	return &mockSetup{role: role, readyCh: make(chan struct{})}
}

func (s *mockSetup) MakeOffer(ctx context.Context) (string, error) {
	return "offer-sdp", nil
}

func (s *mockSetup) MakeAnswer(ctx context.Context, offerSDP string) (string, error) {
	if offerSDP != "offer-sdp" {
		return "", fmt.Errorf("mockSetup: unexpected offer %q", offerSDP)
	}
	return "answer-sdp", nil
}

func (s *mockSetup) UseAnswer(ctx context.Context, answerSDP string) error {
	if answerSDP != "answer-sdp" {
		return fmt.Errorf("mockSetup: unexpected answer %q", answerSDP)
	}
	return nil
}

func (s *mockSetup) WaitGathering(ctx context.Context) error { return nil }

func (s *mockSetup) ICEString(ctx context.Context) (string, error) {
	if s.iceSent {
		return "", nil // gathering exhausted
	}
	s.iceSent = true
	return "candidate-" + s.role.String(), nil
}

func (s *mockSetup) ICEPut(ctx context.Context, candidate string) error {
	return nil
}

func (s *mockSetup) GetChannel(ctx context.Context) (webrtcsetup.DataChannel, error) {
	select {
	case <-s.readyCh:
		return s.channel, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *mockSetup) Close() error { return nil }

// setChannel makes GetChannel resolve with ch.
func (s *mockSetup) setChannel(ch webrtcsetup.DataChannel) {
	s.channelOnce.Do(func() {
		s.channel = ch
		close(s.readyCh)
	})
}

var _ webrtcsetup.SetupHandle = (*mockSetup)(nil)
var _ webrtcsetup.DataChannel = (*mockChannel)(nil)
