// Package pionsetup implements webrtcsetup.Factory and webrtcsetup.SetupHandle
// against a real pion/webrtc/v4 PeerConnection. It adapts PeerHandshake's
// pull-based ICEString/ICEPut contract onto pion's push-style
// OnICECandidate callback by buffering candidates on a channel that is
// closed once local gathering completes.
package pionsetup

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/signalmesh/core/internal/webrtcsetup"
)

// stunServers is a zero-infrastructure choice: STUN only, no TURN, so
// connectivity depends on direct or NAT-traversed paths.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Factory spawns pion-backed SetupHandles.
type Factory struct {
	api *webrtc.API
}

// NewFactory builds a Factory using pion's default media-less API (this
// module only ever opens a single ordered DataChannel).
func NewFactory() *Factory {
	return &Factory{api: webrtc.NewAPI()}
}

// Spawn implements webrtcsetup.Factory.
func (f *Factory) Spawn(role webrtcsetup.Role) (webrtcsetup.SetupHandle, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
	pc, err := f.api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("pionsetup: NewPeerConnection: %w", err)
	}

	h := newHandle(pc, role)

	if role == webrtcsetup.Initializer {
		ordered := true
		dc, err := pc.CreateDataChannel("signalmesh", &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("pionsetup: CreateDataChannel: %w", err)
		}
		h.bindOwnDataChannel(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			h.bindOwnDataChannel(dc)
		})
	}

	pc.OnICECandidate(h.onICECandidate)

	return h, nil
}
