package signalserver

import "fmt"

// NoRouteError marks a PeerSetup whose destination has no connected
// entry. It is logged and the sender is not notified: the signalling
// wire protocol has no frame for reporting a failed relay back to the
// sender.
type NoRouteError struct {
	Destination string
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("signalserver: no route to %s", e.Destination)
}
