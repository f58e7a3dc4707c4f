package node_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalmesh/core/internal/webrtcsetup"
)

// mockChannel is a linked in-memory DataChannel pair (same shape as the
// one used to test PeerHandshake directly).
type mockChannel struct {
	mu      sync.Mutex
	onMsg   func(string)
	pending []string // buffered until SetOnMessage is called, since Live and SetOnMessage race across the two sides in tests
	peer    *mockChannel
	closed  bool
}

func linkedMockChannels() (a, b *mockChannel) {
	a = &mockChannel{}
	b = &mockChannel{}
	a.peer, b.peer = b, a
	return a, b
}

func (c *mockChannel) Send(payload string) error {
	c.mu.Lock()
	closed, peer := c.closed, c.peer
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("mockChannel: send on closed channel")
	}
	peer.mu.Lock()
	fn := peer.onMsg
	if fn == nil {
		peer.pending = append(peer.pending, payload)
	}
	peer.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
	return nil
}

func (c *mockChannel) SetOnMessage(fn func(string)) {
	c.mu.Lock()
	c.onMsg = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, payload := range pending {
		fn(payload)
	}
}

func (c *mockChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// mockSetup deterministically drives a PeerHandshake through every phase
// without a real WebRTC stack, identical in spirit to the fixture used by
// the webrtcsetup package's own tests.
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

func (s *mockSetup) MakeOffer(ctx context.Context) (string, error) { return "offer-sdp", nil }

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
		return "", nil
	}
	s.iceSent = true
	return "candidate-" + s.role.String(), nil
}

func (s *mockSetup) ICEPut(ctx context.Context, candidate string) error { return nil }

func (s *mockSetup) GetChannel(ctx context.Context) (webrtcsetup.DataChannel, error) {
	select {
	case <-s.readyCh:
		return s.channel, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *mockSetup) Close() error { return nil }

func (s *mockSetup) setChannel(ch webrtcsetup.DataChannel) {
	s.channelOnce.Do(func() {
		s.channel = ch
		close(s.readyCh)
	})
}

// mockFactory spawns mockSetups and lets a test grab the last one of each
// role to feed it a live channel once the handshake reaches IceExchange.
type mockFactory struct {
	mu         sync.Mutex
	lastInit   *mockSetup
	lastFollow *mockSetup
}

func (f *mockFactory) Spawn(role webrtcsetup.Role) (webrtcsetup.SetupHandle, error) {
	s := newMockSetup(role)
	f.mu.Lock()
	if role == webrtcsetup.Initializer {
		f.lastInit = s
	} else {
		f.lastFollow = s
	}
	f.mu.Unlock()
	return s, nil
}

var _ webrtcsetup.SetupHandle = (*mockSetup)(nil)
var _ webrtcsetup.DataChannel = (*mockChannel)(nil)
var _ webrtcsetup.Factory = (*mockFactory)(nil)
