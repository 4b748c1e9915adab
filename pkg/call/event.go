package call

import "github.com/ghettovoice/gosip/sip"

// EventKind tags what a Call event carries.
type EventKind int

const (
	// OutgoingRequest a locally originated request about to be sent.
	OutgoingRequest EventKind = iota
	// OutgoingACK a locally originated ACK about to be sent.
	OutgoingACK
	// IncomingResponse a response received for a request we sent; the
	// originating request rides along.
	IncomingResponse
	// Timer a transaction-layer timer firing for this call.
	Timer
)

// Event is one unit of work for a Call's loop. Events are processed
// strictly in arrival order.
type Event struct {
	Kind     EventKind
	Request  sip.Request
	Response sip.Response
	// Done, when non-nil, receives the outcome of processing exactly
	// once. Buffer it or read it; the loop never blocks on it.
	Done chan error
}
