package proxy

import (
	"strconv"
	"strings"

	"github.com/cloudwebrtc/go-sip-core/pkg/utils"
	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
)

// Allow and Accept values announced on the Max-Forwards OPTIONS answer.
const (
	AllowedMethods = "INVITE,ACK,CANCEL,BYE,UPDATE,OPTIONS,INFO"
	AcceptedBody   = "application/sdp"
)

// Transport is the slice of the transport layer the routing engine
// needs; serialization and sockets stay behind it.
type Transport interface {
	SendRequest(req sip.Request) error
	SendResponse(res sip.Response) error
	AddVia(req sip.Request) sip.Request
	IsLocal(uri sip.Uri) bool
}

// Forker dispatches a stateful fork across the target groups: groups in
// order, the URIs of one group in parallel. The transaction machinery
// behind it is not part of this package.
type Forker interface {
	Fork(req sip.Request, targets URISet) error
}

// Options for one proxied request. Zero value forwards statefully with
// the request's own routes and headers.
type Options struct {
	Stateless       bool
	RecordRoute     bool
	FollowRedirects bool
	// Headers are prepended before the retained header set.
	Headers []sip.Header
	// Route URIs are prepended before the retained route set.
	Route        []sip.Uri
	RemoveRoutes bool
	// RemoveHeaders drops the non-system headers of the request.
	RemoveHeaders bool
}

// Mode is how a request left the engine.
type Mode string

const (
	Stateful  Mode = "stateful"
	Stateless Mode = "stateless"
	Replied   Mode = "replied"
)

// Result of a routing decision. When Mode is Replied the engine did not
// forward and Reply holds the answer to send upstream.
type Result struct {
	Mode        Mode
	Reply       *Reply
	Request     sip.Request
	Targets     URISet
	RecordRoute bool
}

// Proxy rewrites and forwards requests to one or more downstream
// targets.
type Proxy struct {
	tp   Transport
	fork Forker
	log  log.Logger
}

func New(tp Transport, fork Forker, logger log.Logger) *Proxy {
	return &Proxy{
		tp:   tp,
		fork: fork,
		log:  logger.WithPrefix("Proxy"),
	}
}

// Start routes an inbound request towards the given target
// specification (any shape Normalize accepts).
func (p *Proxy) Start(req sip.Request, target interface{}, opts Options) *Result {
	uriSet := Normalize(target)

	if uriSet.Empty() {
		if req.IsAck() {
			p.log.Warnf("ACK with no routable target: %s", req.Short())
		}
		reply := ReplyTemporarilyUnavailable
		return &Result{Mode: Replied, Reply: &reply}
	}

	if req.IsAck() {
		if reply := p.checkMaxForwards(req); reply != nil {
			return &Result{Mode: Replied, Reply: reply}
		}
		first, _ := uriSet.First()
		return p.routeStateless(req, first)
	}

	recordRoute := opts.RecordRoute && req.IsInvite()

	if reply := p.checkMaxForwards(req); reply != nil {
		return &Result{Mode: Replied, Reply: reply}
	}
	if tokens := proxyRequire(req); tokens != "" {
		reply := BadExtension(tokens)
		return &Result{Mode: Replied, Reply: &reply}
	}

	p.preprocess(req, opts)

	if opts.Stateless {
		first, _ := uriSet.First()
		res := p.routeStateless(req, first)
		res.RecordRoute = recordRoute
		return res
	}

	if err := p.fork.Fork(req, uriSet); err != nil {
		p.log.Errorf("stateful fork failed: %s", err)
		reply := NewReply(503)
		return &Result{Mode: Replied, Reply: &reply}
	}
	return &Result{
		Mode:        Stateful,
		Request:     req,
		Targets:     uriSet,
		RecordRoute: recordRoute,
	}
}

// checkMaxForwards returns the reply mandated by RFC 3261 section 16.3
// step 2, or nil when the request may travel one more hop.
func (p *Proxy) checkMaxForwards(req sip.Request) *Reply {
	forwards, ok, valid := maxForwards(req)
	if !valid {
		reply := ReplyInvalidRequest
		return &reply
	}
	if !ok || forwards > 0 {
		return nil
	}
	if req.Method() == sip.OPTIONS {
		reply := Reply{
			Code:   200,
			Reason: "Max Forwards",
			Headers: []sip.Header{
				&sip.GenericHeader{HeaderName: "Accept", Contents: AcceptedBody},
				&sip.GenericHeader{HeaderName: "Allow", Contents: AllowedMethods},
				&sip.SupportedHeader{Options: []string{"path", "outbound"}},
			},
		}
		return &reply
	}
	reply := ReplyTooManyHops
	return &reply
}

// maxForwards reads the header; ok is false when absent, valid is false
// when present but unusable.
func maxForwards(req sip.Request) (uint32, bool, bool) {
	hdrs := req.GetHeaders("Max-Forwards")
	if len(hdrs) == 0 {
		return 0, false, true
	}
	switch h := hdrs[0].(type) {
	case *sip.MaxForwards:
		return uint32(*h), true, true
	case *sip.GenericHeader:
		n, err := strconv.Atoi(strings.TrimSpace(h.Contents))
		if err != nil || n < 0 {
			return 0, true, false
		}
		return uint32(n), true, true
	default:
		return 0, true, false
	}
}

func proxyRequire(req sip.Request) string {
	var tokens []string
	for _, h := range req.GetHeaders("Proxy-Require") {
		switch v := h.(type) {
		case *sip.ProxyRequireHeader:
			tokens = append(tokens, v.Options...)
		case *sip.GenericHeader:
			for _, tok := range strings.Split(v.Contents, ",") {
				if tok = strings.TrimSpace(tok); tok != "" {
					tokens = append(tokens, tok)
				}
			}
		}
	}
	return strings.Join(tokens, ",")
}

// preprocess applies the per-hop rewrites before a stateful or stateless
// forward of a non-ACK request; the ACK path forwards without them.
func (p *Proxy) preprocess(req sip.Request, opts Options) {
	p.decrementMaxForwards(req)

	if opts.RemoveRoutes {
		req.RemoveHeader("Route")
	}
	if opts.RemoveHeaders {
		removeNonSystemHeaders(req)
	}
	for i := len(opts.Headers) - 1; i >= 0; i-- {
		req.PrependHeader(opts.Headers[i].Clone())
	}
	if len(opts.Route) > 0 {
		req.PrependHeader(&sip.GenericHeader{
			HeaderName: "Route",
			Contents:   utils.FormatURIList(opts.Route),
		})
	}
}

func (p *Proxy) decrementMaxForwards(req sip.Request) {
	forwards, ok, valid := maxForwards(req)
	if !ok || !valid {
		return
	}
	if forwards > 0 {
		forwards--
	}
	req.RemoveHeader("Max-Forwards")
	mf := sip.MaxForwards(forwards)
	req.AppendHeader(&mf)
}

// systemHeaders survive a RemoveHeaders rewrite; everything else is the
// application's to replace.
var systemHeaders = map[string]bool{
	"Via":            true,
	"From":           true,
	"To":             true,
	"Call-ID":        true,
	"CSeq":           true,
	"Max-Forwards":   true,
	"Route":          true,
	"Record-Route":   true,
	"Contact":        true,
	"Content-Type":   true,
	"Content-Length": true,
}

func removeNonSystemHeaders(req sip.Request) {
	var names []string
	for _, h := range req.Headers() {
		if !systemHeaders[h.Name()] {
			names = append(names, h.Name())
		}
	}
	for _, name := range names {
		req.RemoveHeader(name)
	}
}

// routeStateless forwards to a single target without keeping any
// transaction state: rewrite the Request-URI, refuse loops, push our
// Via, send.
func (p *Proxy) routeStateless(req sip.Request, target sip.Uri) *Result {
	req.SetRecipient(target)

	if p.tp.IsLocal(target) {
		p.log.Warnf("request to %s would loop back, refusing", target)
		reply := ReplyLoopDetected
		return &Result{Mode: Replied, Reply: &reply}
	}

	out := p.tp.AddVia(req)
	if err := p.tp.SendRequest(out); err != nil {
		p.log.Errorf("stateless forward of %s failed: %s", req.Short(), err)
	} else {
		p.log.Debugf("stateless forward of %s to %s", req.Method(), target)
	}
	return &Result{Mode: Stateless, Request: out}
}

// ResponseStateless relays a response on the reverse Via path: pop the
// hop that names us, send if any hop remains.
func (p *Proxy) ResponseStateless(res sip.Response) {
	if !popVia(res) {
		p.log.Warnf("stateless response without our Via, dropping: %s", res.Short())
		return
	}
	if _, ok := res.ViaHop(); !ok {
		// RFC 3261 section 16.11: nowhere left to send it.
		p.log.Warnf("stateless response with no remaining Via, dropping: %s", res.Short())
		return
	}
	if err := p.tp.SendResponse(res); err != nil {
		p.log.Errorf("stateless response forward failed: %s", err)
	}
}

// popVia removes the top Via hop, collapsing the remaining hops into a
// single header.
func popVia(res sip.Response) bool {
	var hops []*sip.ViaHop
	for _, h := range res.GetHeaders("Via") {
		if via, ok := h.(sip.ViaHeader); ok {
			hops = append(hops, via...)
		}
	}
	if len(hops) == 0 {
		return false
	}
	res.RemoveHeader("Via")
	if len(hops) > 1 {
		res.PrependHeader(sip.ViaHeader(hops[1:]))
	}
	return true
}
