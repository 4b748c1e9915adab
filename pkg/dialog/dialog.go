package dialog

import (
	"time"

	"github.com/cloudwebrtc/go-sip-core/pkg/utils"
	"github.com/ghettovoice/gosip/sip"
	"github.com/pixelbender/go-sdp/sdp"
)

// Status of a dialog, RFC 3261 section 12.
type Status string

const (
	Init          Status = "Init"
	ProceedingUAC Status = "ProceedingUAC" /**< Provisional answer received for our INVITE. */
	ProceedingUAS Status = "ProceedingUAS"
	AcceptedUAC   Status = "AcceptedUAC" /**< 2xx received, local ACK not sent yet. */
	AcceptedUAS   Status = "AcceptedUAS"
	Confirmed     Status = "Confirmed" /**< ACK sent/received. */
	Bye           Status = "Bye"
	Stop          Status = "Stop" /**< Terminal, dialog is removed from the store. */
)

// StopReason records why a dialog reached Stop.
type StopReason struct {
	Code   sip.StatusCode
	Reason string
}

var (
	CallerBye = StopReason{Reason: "caller-bye"}
	CalleeBye = StopReason{Reason: "callee-bye"}
)

// StopCode builds a code-derived stop reason.
func StopCode(code sip.StatusCode) StopReason {
	return StopReason{Code: code}
}

// Dialog is an RFC 3261 section 12 peer-to-peer relationship, tracked on
// the side that originated the INVITE.
type Dialog struct {
	ID             ID
	AppID          string
	CallID         sip.CallID
	Status         Status
	LocalSeq       uint32
	RemoteSeq      uint32
	LocalURI       sip.Address
	RemoteURI      sip.Address
	LocalTarget    sip.Uri
	RemoteTarget   sip.Uri
	RouteSet       []sip.Uri
	Request        sip.Request
	Response       sip.Response
	ACK            sip.Request
	Answered       time.Time
	LocalTag       string
	RemoteEndpoint string
	Early          bool
	Secure         bool
	Reason         StopReason
	Created        time.Time
	Updated        time.Time
	LocalSDP       *sdp.Session
	RemoteSDP      *sdp.Session
}

// NewUAC builds a dialog from the INVITE and the first dialog-forming
// response (101-299 carrying a To tag), with this side in the UAC role.
func NewUAC(appID string, req sip.Request, res sip.Response) (*Dialog, error) {
	from, ok := req.From()
	if !ok {
		return nil, ErrInvalidDialog
	}
	to, ok := res.To()
	if !ok {
		return nil, ErrInvalidDialog
	}
	callID, ok := req.CallID()
	if !ok {
		return nil, ErrInvalidDialog
	}

	localTag := tagOf(from.Params)
	remoteTag := tagOf(to.Params)
	if localTag == "" || remoteTag == "" {
		return nil, ErrInvalidDialog
	}

	d := &Dialog{
		ID:        MakeID(*callID, localTag, remoteTag),
		AppID:     appID,
		CallID:    *callID,
		Status:    Init,
		LocalURI:  sip.Address{DisplayName: from.DisplayName, Uri: from.Address, Params: from.Params},
		RemoteURI: sip.Address{DisplayName: to.DisplayName, Uri: to.Address, Params: to.Params},
		LocalTag:  localTag,
		Early:     res.IsProvisional(),
		Created:   time.Now(),
		Updated:   time.Now(),
	}

	if cseq, ok := req.CSeq(); ok {
		d.LocalSeq = cseq.SeqNo
	}
	if contact, ok := req.Contact(); ok {
		d.LocalTarget = contact.Address
		d.Secure = contact.Address.IsEncrypted()
	}
	if contact, ok := res.Contact(); ok {
		d.RemoteTarget = contact.Address
	}
	d.RouteSet = routeSetFromResponse(res)

	d.storeRequest(req)
	d.storeResponse(res)
	return d, nil
}

// storeRequest keeps the latest INVITE and drops any ACK kept for the
// previous one.
func (d *Dialog) storeRequest(req sip.Request) {
	d.Request = req
	d.ACK = nil
	if body := req.Body(); len(body) > 0 {
		if sess, err := sdp.ParseString(body); err == nil {
			d.LocalSDP = sess
		}
	}
}

func (d *Dialog) storeResponse(res sip.Response) {
	d.Response = res
	if to, ok := res.To(); ok {
		if to.Params != nil && to.Params.Has("tag") {
			d.RemoteURI = sip.Address{DisplayName: to.DisplayName, Uri: to.Address, Params: to.Params}
		}
	}
	if contact, ok := res.Contact(); ok {
		d.RemoteTarget = contact.Address
	}
	if body := res.Body(); len(body) > 0 {
		if sess, err := sdp.ParseString(body); err == nil {
			d.RemoteSDP = sess
		}
	}
}

func (d *Dialog) stop(reason StopReason) {
	d.Status = Stop
	d.Reason = reason
}

// updateRemoteEndpoint records where the peer answered from, taken from
// the top Via of the response (received/rport override the sent-by).
func (d *Dialog) updateRemoteEndpoint(res sip.Response) {
	hop, ok := res.ViaHop()
	if !ok {
		return
	}
	host := hop.Host
	if received, ok := hop.Params.Get("received"); ok && received != nil && received.String() != "" {
		host = received.String()
	}
	port := ""
	if hop.Port != nil {
		port = hop.Port.String()
	}
	if rport, ok := hop.Params.Get("rport"); ok && rport != nil && rport.String() != "" {
		port = rport.String()
	}
	if port == "" {
		d.RemoteEndpoint = host
		return
	}
	d.RemoteEndpoint = host + ":" + port
}

// routeSetFromResponse derives the UAC route set: the Record-Route URIs of
// the dialog-forming response in reverse order (RFC 3261 section 12.1.2).
func routeSetFromResponse(res sip.Response) []sip.Uri {
	var routes []sip.Uri
	for _, h := range res.GetHeaders("Record-Route") {
		routes = append(routes, utils.ParseURIList(utils.HeaderValue(h))...)
	}
	if len(routes) == 0 {
		return nil
	}
	reversed := make([]sip.Uri, 0, len(routes))
	for i := len(routes) - 1; i >= 0; i-- {
		reversed = append(reversed, routes[i].Clone())
	}
	return reversed
}

func tagOf(params sip.Params) string {
	if params == nil {
		return ""
	}
	if tag, ok := params.Get("tag"); ok && tag != nil {
		return tag.String()
	}
	return ""
}
