package pionsetup

import (
	"github.com/pion/webrtc/v4"
)

const (
	highWaterMark = 256 * 1024 // pause sending once bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume once bufferedAmount drops below this
)

// dataChannel wraps a pion DataChannel with a high/low watermark
// backpressure pattern: sends above highWaterMark block until
// OnBufferedAmountLow fires.
type dataChannel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}
}

func newDataChannel(raw *webrtc.DataChannel) *dataChannel {
	dc := &dataChannel{raw: raw, sendReady: make(chan struct{}, 1)}
	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case dc.sendReady <- struct{}{}:
		default:
		}
	})
	return dc
}

func (c *dataChannel) Send(payload string) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		<-c.sendReady
	}
	return c.raw.SendText(payload)
}

func (c *dataChannel) SetOnMessage(fn func(payload string)) {
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(string(msg.Data))
	})
}

func (c *dataChannel) Close() error {
	return c.raw.Close()
}
