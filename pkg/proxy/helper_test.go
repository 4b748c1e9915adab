package proxy

import (
	"errors"
	"strings"
	"testing"

	"github.com/cloudwebrtc/go-sip-core/pkg/utils"
	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
	"github.com/stretchr/testify/require"
)

func testLogger() log.Logger {
	return utils.NewLogrusLogger(log.ErrorLevel, "proxy-test", nil)
}

func mustParseURI(t *testing.T, raw string) sip.Uri {
	t.Helper()
	uri, err := parser.ParseSipUri(raw)
	require.NoError(t, err)
	return uri.Clone()
}

func makeRequest(t *testing.T, method sip.RequestMethod, forwards int, headers ...sip.Header) sip.Request {
	t.Helper()

	target := mustParseURI(t, "sip:service@proxy.example.com")
	callID := sip.CallID("proxy-call-1")
	port := sip.Port(5060)

	hdrs := []sip.Header{
		sip.ViaHeader{&sip.ViaHop{
			ProtocolName:    "SIP",
			ProtocolVersion: "2.0",
			Transport:       "UDP",
			Host:            "198.51.100.1",
			Port:            &port,
			Params:          sip.NewParams().Add("branch", sip.String{Str: sip.GenerateBranch()}),
		}},
		&sip.FromHeader{
			Address: mustParseURI(t, "sip:alice@a.example.com"),
			Params:  sip.NewParams().Add("tag", sip.String{Str: "ftag"}),
		},
		&sip.ToHeader{
			Address: mustParseURI(t, "sip:bob@b.example.com"),
			Params:  sip.NewParams(),
		},
		&callID,
		&sip.CSeq{SeqNo: 1, MethodName: method},
	}
	if forwards >= 0 {
		mf := sip.MaxForwards(forwards)
		hdrs = append(hdrs, &mf)
	}
	hdrs = append(hdrs, headers...)

	return sip.NewRequest("", method, target, "SIP/2.0", hdrs, "", nil)
}

// fakeTransport records forwarded messages and simulates the local
// address check.
type fakeTransport struct {
	sent      []sip.Request
	responses []sip.Response
	localHost string
	sendErr   error
	viaAdded  int
}

func (f *fakeTransport) SendRequest(req sip.Request) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeTransport) SendResponse(res sip.Response) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.responses = append(f.responses, res)
	return nil
}

func (f *fakeTransport) AddVia(req sip.Request) sip.Request {
	f.viaAdded++
	port := sip.Port(5060)
	req.PrependHeader(sip.ViaHeader{&sip.ViaHop{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            "203.0.113.9",
		Port:            &port,
		Params:          sip.NewParams().Add("branch", sip.String{Str: sip.GenerateBranch()}),
	}})
	return req
}

func (f *fakeTransport) IsLocal(uri sip.Uri) bool {
	return f.localHost != "" && strings.Contains(uri.String(), f.localHost)
}

var errNoRoute = errors.New("no route")

type fakeForker struct {
	requests []sip.Request
	targets  []URISet
	err      error
}

func (f *fakeForker) Fork(req sip.Request, targets URISet) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	f.targets = append(f.targets, targets)
	return nil
}

func newTestProxy() (*Proxy, *fakeTransport, *fakeForker) {
	tp := &fakeTransport{}
	fork := &fakeForker{}
	return New(tp, fork, testLogger()), tp, fork
}
