package dialog

import (
	"time"

	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
)

// Transport is the slice of the transport layer the state machine
// touches: it never opens sockets itself.
type Transport interface {
	SendRequest(req sip.Request) error
	ResendRequest(req sip.Request) error
}

// UAC advances dialogs for requests this side originated. All entry
// points must be called from the owning Call's loop; they are not safe
// for concurrent use on the same Store.
type UAC struct {
	appID string
	store *Store
	tp    Transport
	log   log.Logger
}

func NewUACMachine(appID string, store *Store, tp Transport, logger log.Logger) *UAC {
	return &UAC{
		appID: appID,
		store: store,
		tp:    tp,
		log:   logger.WithPrefix("dialog.UAC"),
	}
}

// OnOutgoingRequest inspects a locally originated request about to be
// sent. ACK is handled by OnOutgoingAck. A request that does not carry
// both tags has no dialog semantics yet and passes through; an INVITE
// in that position creates its dialog on the first response.
func (u *UAC) OnOutgoingRequest(req sip.Request) error {
	if req.IsAck() {
		return nil
	}

	id, ok := MessageID(req)
	if !ok {
		return nil
	}

	d, found := u.store.Find(id)
	if !found {
		if req.IsInvite() {
			return nil
		}
		return ErrFinished
	}

	if cseq, ok := req.CSeq(); ok && cseq.SeqNo > d.LocalSeq {
		d.LocalSeq = cseq.SeqNo
	}

	switch {
	case req.IsInvite() && d.Status == Confirmed:
		d.storeRequest(req)
		d.Status = ProceedingUAC
	case req.IsInvite():
		u.log.Debugf("INVITE while dialog %d is %s, rejecting", id, d.Status)
		return ErrRequestPending
	case req.Method() == sip.BYE:
		d.Status = Bye
	case d.Status == Bye:
		return ErrFinished
	}

	u.store.Update(d)
	return nil
}

// OnOutgoingAck stores the ACK for the current INVITE and confirms the
// dialog. Any other combination is ignored on purpose: a retransmitted
// ACK in Confirmed state is replayed by OnIncomingResponse, not here.
func (u *UAC) OnOutgoingAck(ack sip.Request) {
	id, ok := MessageID(ack)
	if !ok {
		u.log.Warnf("ACK without dialog identity: %s", ack.Short())
		return
	}
	d, found := u.store.Find(id)
	if !found {
		u.log.Warnf("ACK for unknown dialog %d", id)
		return
	}

	if d.Status != AcceptedUAC {
		u.log.Debugf("ignoring ACK in status %s for dialog %d", d.Status, id)
		return
	}
	ackCSeq, ok1 := ack.CSeq()
	invCSeq, ok2 := d.Request.CSeq()
	if !ok1 || !ok2 || ackCSeq.SeqNo != invCSeq.SeqNo {
		u.log.Debugf("ignoring ACK with stale CSeq for dialog %d", id)
		return
	}

	d.ACK = ack
	d.Status = Confirmed
	u.store.Update(d)
}

// OnIncomingResponse processes a response to a request this side sent.
// The original request of the client transaction is passed along, the
// dialog-forming case needs it.
func (u *UAC) OnIncomingResponse(req sip.Request, res sip.Response) {
	id, ok := MessageID(res)
	if !ok {
		return
	}

	d, found := u.store.Find(id)
	if !found {
		code := res.StatusCode()
		if req.IsInvite() && code > 100 && code < 300 {
			created, err := NewUAC(u.appID, req, res)
			if err != nil {
				u.log.Warnf("cannot create dialog from %s: %s", res.Short(), err)
				return
			}
			u.store.Update(created)
			u.OnIncomingResponse(req, res)
			return
		}
		u.log.Debugf("response %d for unknown dialog, dropping", code)
		return
	}

	u.doResponse(req, res, d)
	d.updateRemoteEndpoint(res)

	if d.Status == Stop {
		u.store.Remove(d.ID)
		return
	}
	u.store.Update(d)
}

func (u *UAC) doResponse(req sip.Request, res sip.Response, d *Dialog) {
	method := req.Method()
	code := res.StatusCode()

	if code == 408 || code == 481 {
		d.stop(StopCode(code))
		return
	}
	if code < 101 {
		return
	}

	switch {
	case method == sip.INVITE:
		u.doInviteResponse(res, req, d, code)
	case method == sip.BYE:
		if from, ok := req.From(); ok && tagOf(from.Params) == d.LocalTag {
			d.stop(CallerBye)
		} else {
			d.stop(CalleeBye)
		}
	}
}

func (u *UAC) doInviteResponse(res sip.Response, req sip.Request, d *Dialog, code sip.StatusCode) {
	proceeding := d.Status == Init || d.Status == ProceedingUAC

	switch {
	case code < 200 && proceeding:
		d.storeRequest(req)
		d.storeResponse(res)
		d.Status = ProceedingUAC

	case code < 300 && proceeding:
		d.storeRequest(req)
		d.storeResponse(res)
		d.Status = AcceptedUAC
		d.Early = false
		if d.Answered.IsZero() {
			d.Answered = time.Now()
		}

	case code < 300 && (d.Status == AcceptedUAC || d.Status == Confirmed):
		// Retransmitted 2xx: answer it with the ACK we already sent.
		if d.ACK == nil {
			u.log.Debugf("2xx retransmission for dialog %d before local ACK", d.ID)
			return
		}
		if err := u.tp.ResendRequest(d.ACK); err != nil {
			u.log.Warnf("resend ACK for dialog %d failed: %s", d.ID, err)
			d.stop(StopCode(503))
		}

	case code >= 300 && proceeding:
		// An error answer ends an early dialog, but an answered dialog
		// outlives its INVITE transaction.
		if !d.Answered.IsZero() {
			d.Status = Confirmed
		} else {
			d.stop(StopCode(code))
		}

	default:
		u.log.Debugf("unexpected %d for dialog %d in status %s", code, d.ID, d.Status)
	}
}
