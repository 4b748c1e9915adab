package dialog

import (
	"math/rand"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
)

// RequestOptions are the caller-supplied knobs for an in-dialog request.
type RequestOptions struct {
	// CSeq forces the wire sequence number; zero lets the dialog choose.
	CSeq uint32
	// MakeContact asks the transport layer to synthesize the Contact
	// from the local listening point.
	MakeContact bool
	// Contact overrides the dialog's local target.
	Contact []sip.Uri
	// ContactString is a Contact given as text; when it does not parse
	// it is discarded and the dialog's local target is used.
	ContactString string
	// Headers are appended after the dialog-derived ones.
	Headers []sip.Header
}

// RequestTemplate is the assembled in-dialog request, ready for the
// transport layer to serialize and send.
type RequestTemplate struct {
	AppID       string
	Method      sip.RequestMethod
	RequestURI  sip.Uri
	From        sip.Address
	To          sip.Address
	CallID      sip.CallID
	CSeq        uint32
	Route       []sip.Uri
	Contact     []sip.Uri
	MakeContact bool
	// Headers holds auth pre-headers first, then the caller's.
	Headers []sip.Header
}

// MakeRequest assembles an outbound in-dialog request, advancing the
// dialog's local CSeq per RFC 3261 section 12.2.1.1.
func (u *UAC) MakeRequest(id ID, method sip.RequestMethod, opts RequestOptions) (*RequestTemplate, error) {
	d, found := u.store.Find(id)
	if !found {
		return nil, ErrUnknownDialog
	}
	if method == sip.ACK && d.Status != AcceptedUAC {
		return nil, ErrInvalidDialog
	}

	cseq, err := u.nextCSeq(d, method, opts.CSeq)
	if err != nil {
		return nil, err
	}

	t := &RequestTemplate{
		AppID:      d.AppID,
		Method:     method,
		RequestURI: d.RemoteTarget,
		From:       d.LocalURI,
		To:         d.RemoteURI,
		CallID:     d.CallID,
		CSeq:       cseq,
		Route:      d.RouteSet,
	}

	switch {
	case opts.MakeContact:
		t.MakeContact = true
	case len(opts.Contact) > 0:
		t.Contact = opts.Contact
	case opts.ContactString != "":
		if uri, err := parser.ParseSipUri(opts.ContactString); err == nil {
			t.Contact = []sip.Uri{&uri}
		} else if d.LocalTarget != nil {
			t.Contact = []sip.Uri{d.LocalTarget}
		}
	case d.LocalTarget != nil:
		t.Contact = []sip.Uri{d.LocalTarget}
	}

	if method == sip.ACK && d.Request != nil {
		t.Headers = append(t.Headers, authHeaders(d.Request)...)
	}
	t.Headers = append(t.Headers, opts.Headers...)

	u.store.Update(d)
	return t, nil
}

func (u *UAC) nextCSeq(d *Dialog, method sip.RequestMethod, forced uint32) (uint32, error) {
	if forced == 0 {
		if method == sip.ACK {
			// ACK reuses the INVITE's CSeq and leaves the counter alone.
			if d.Request == nil {
				return 0, ErrInvalidDialog
			}
			cseq, ok := d.Request.CSeq()
			if !ok {
				return 0, ErrInvalidDialog
			}
			return cseq.SeqNo, nil
		}
		if d.LocalSeq > 0 {
			d.LocalSeq++
			return d.LocalSeq, nil
		}
		d.LocalSeq = freshCSeq()
		return d.LocalSeq, nil
	}

	// Caller-driven sequence number; only adopt it when the dialog has
	// no counter of its own yet.
	if d.LocalSeq == 0 {
		d.LocalSeq = forced
	}
	return forced, nil
}

// authHeaders extracts the credentials of the stored INVITE so the ACK
// travels with the same authorization (RFC 3261 section 22).
func authHeaders(req sip.Request) []sip.Header {
	var hdrs []sip.Header
	for _, name := range []string{"Authorization", "Proxy-Authorization"} {
		for _, h := range req.GetHeaders(name) {
			hdrs = append(hdrs, h.Clone())
		}
	}
	return hdrs
}

// freshCSeq seeds a dialog's sequence counter, RFC 3261 section 8.1.1.5:
// a 31-bit non-zero random value.
func freshCSeq() uint32 {
	return uint32(rand.Int31n(1<<31-2)) + 1
}
