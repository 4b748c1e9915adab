package proxy

import (
	"strings"

	"github.com/ghettovoice/gosip/sip"
)

// ReasonPhrase .
var ReasonPhrase = map[sip.StatusCode]string{
	100: "Trying",
	180: "Ringing",
	183: "Session Progress",
	200: "OK",
	202: "Accepted",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Moved Temporarily",
	305: "Use Proxy",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	420: "Bad Extension",
	480: "Temporarily Unavailable",
	481: "Call/Transaction Does Not Exist",
	482: "Loop Detected",
	483: "Too Many Hops",
	486: "Busy Here",
	487: "Request Terminated",
	491: "Request Pending",
	500: "Server Internal Error",
	503: "Service Unavailable",
	603: "Decline",
}

// Reply is an answer the routing engine gives instead of forwarding.
type Reply struct {
	Code    sip.StatusCode
	Reason  string
	Headers []sip.Header
}

func NewReply(code sip.StatusCode) Reply {
	return Reply{Code: code, Reason: ReasonPhrase[code]}
}

var (
	ReplyTemporarilyUnavailable = NewReply(480)
	ReplyLoopDetected           = NewReply(482)
	ReplyTooManyHops            = NewReply(483)
	ReplyInvalidRequest         = Reply{Code: 400, Reason: "Invalid Request"}
)

// BadExtension answers 420 naming the Proxy-Require tokens this element
// does not support.
func BadExtension(tokens string) Reply {
	r := NewReply(420)
	r.Headers = []sip.Header{&sip.UnsupportedHeader{
		Options: strings.Split(tokens, ","),
	}}
	return r
}

// Response renders the reply against the request that triggered it.
func (r Reply) Response(req sip.Request) sip.Response {
	res := sip.NewResponseFromRequest(req.MessageID(), req, r.Code, r.Reason, "")
	for _, h := range r.Headers {
		res.AppendHeader(h)
	}
	return res
}
