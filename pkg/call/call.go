package call

import (
	"errors"
	"sync"

	"github.com/cloudwebrtc/go-sip-core/pkg/dialog"
	"github.com/gammazero/deque"
	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
	"github.com/google/uuid"
	"github.com/tevino/abool"
)

var ErrClosed = errors.New("call closed")

// Call owns every dialog of one Call-ID for one application instance.
// A single goroutine drains the mailbox, so dialog mutations are
// serialized without locking; inter-call parallelism comes from running
// many Calls.
type Call struct {
	appID  string
	callID sip.CallID
	store  *dialog.Store
	uac    *dialog.UAC

	mutex   sync.Mutex
	mailbox deque.Deque
	wake    chan struct{}
	running *abool.AtomicBool
	done    chan struct{}
	log     log.Logger
}

func New(appID string, callID sip.CallID, tp dialog.Transport, logger log.Logger) *Call {
	if appID == "" {
		appID = uuid.New().String()
	}
	store := dialog.NewStore()
	c := &Call{
		appID:   appID,
		callID:  callID,
		store:   store,
		uac:     dialog.NewUACMachine(appID, store, tp, logger),
		wake:    make(chan struct{}, 1),
		running: abool.NewBool(true),
		done:    make(chan struct{}),
		log: logger.WithPrefix("Call").WithFields(log.Fields{
			"call_id": string(callID),
		}),
	}
	go c.serve()
	return c
}

func (c *Call) AppID() string {
	return c.appID
}

func (c *Call) CallID() sip.CallID {
	return c.callID
}

// Store exposes the call's dialogs for inspection.
func (c *Call) Store() *dialog.Store {
	return c.store
}

// UAC exposes the state machine for synchronous use from the call's own
// loop, e.g. building an in-dialog request from a handler.
func (c *Call) UAC() *dialog.UAC {
	return c.uac
}

// Push enqueues an event. Events of one Call are consumed in the exact
// order they were pushed.
func (c *Call) Push(ev Event) error {
	if !c.running.IsSet() {
		return ErrClosed
	}
	c.mutex.Lock()
	c.mailbox.PushBack(ev)
	c.mutex.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Call) serve() {
	defer close(c.done)
	for {
		ev, ok := c.pop()
		if !ok {
			if !c.running.IsSet() {
				return
			}
			<-c.wake
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Call) pop() (Event, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.mailbox.Len() == 0 {
		return Event{}, false
	}
	return c.mailbox.PopFront().(Event), true
}

func (c *Call) dispatch(ev Event) {
	var err error
	switch ev.Kind {
	case OutgoingRequest:
		err = c.uac.OnOutgoingRequest(ev.Request)
	case OutgoingACK:
		c.uac.OnOutgoingAck(ev.Request)
	case IncomingResponse:
		c.uac.OnIncomingResponse(ev.Request, ev.Response)
	case Timer:
		// Transaction timers surface as 408 responses; nothing to do
		// here beyond logging.
		c.log.Debugf("timer event for call %s", c.callID)
	}
	if ev.Done != nil {
		select {
		case ev.Done <- err:
		default:
		}
	}
}

// Close stops the loop after the events already queued have drained.
func (c *Call) Close() {
	if !c.running.SetToIf(true, false) {
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
	<-c.done
}
