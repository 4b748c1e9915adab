package dialog

import (
	"errors"
	"testing"

	"github.com/cloudwebrtc/go-sip-core/pkg/utils"
	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
	"github.com/stretchr/testify/require"
)

const (
	testCallID  = "call-abc@10.0.0.1"
	testFromTag = "ftag-1"
	testToTag   = "ttag-1"
)

func testLogger() log.Logger {
	return utils.NewLogrusLogger(log.ErrorLevel, "test", nil)
}

func mustParseURI(t *testing.T, raw string) sip.Uri {
	t.Helper()
	uri, err := parser.ParseSipUri(raw)
	require.NoError(t, err)
	return uri.Clone()
}

type requestSpec struct {
	method  sip.RequestMethod
	cseq    uint32
	fromTag string
	toTag   string
	body    string
	headers []sip.Header
}

func makeRequest(t *testing.T, spec requestSpec) sip.Request {
	t.Helper()

	target := mustParseURI(t, "sip:bob@b.example.com")
	fromURI := mustParseURI(t, "sip:alice@a.example.com")
	toURI := mustParseURI(t, "sip:bob@b.example.com")
	contactURI := mustParseURI(t, "sip:alice@10.0.0.1:5060")

	callID := sip.CallID(testCallID)
	fromParams := sip.NewParams()
	if spec.fromTag != "" {
		fromParams.Add("tag", sip.String{Str: spec.fromTag})
	}
	toParams := sip.NewParams()
	if spec.toTag != "" {
		toParams.Add("tag", sip.String{Str: spec.toTag})
	}

	port := sip.Port(5060)
	hdrs := []sip.Header{
		sip.ViaHeader{&sip.ViaHop{
			ProtocolName:    "SIP",
			ProtocolVersion: "2.0",
			Transport:       "UDP",
			Host:            "10.0.0.1",
			Port:            &port,
			Params:          sip.NewParams().Add("branch", sip.String{Str: sip.GenerateBranch()}),
		}},
		&sip.FromHeader{Address: fromURI, Params: fromParams},
		&sip.ToHeader{Address: toURI, Params: toParams},
		&callID,
		&sip.CSeq{SeqNo: spec.cseq, MethodName: spec.method},
		&sip.ContactHeader{Address: contactURI.(sip.ContactUri), Params: sip.NewParams()},
	}
	hdrs = append(hdrs, spec.headers...)

	return sip.NewRequest("", spec.method, target, "SIP/2.0", hdrs, spec.body, nil)
}

func makeInvite(t *testing.T, cseq uint32) sip.Request {
	return makeRequest(t, requestSpec{method: sip.INVITE, cseq: cseq, fromTag: testFromTag})
}

func respond(t *testing.T, req sip.Request, code sip.StatusCode, reason, toTag string) sip.Response {
	t.Helper()
	res := sip.NewResponseFromRequest("", req, code, reason, "")
	if toTag != "" {
		to, ok := res.To()
		require.True(t, ok)
		params := sip.NewParams().Add("tag", sip.String{Str: toTag})
		res.RemoveHeader("To")
		res.AppendHeader(&sip.ToHeader{DisplayName: to.DisplayName, Address: to.Address, Params: params})
	}
	res.AppendHeader(&sip.ContactHeader{
		Address: mustParseURI(t, "sip:bob@10.0.0.2:5080").(sip.ContactUri),
		Params:  sip.NewParams(),
	})
	return res
}

// mockTransport records what the state machine pushes down.
type mockTransport struct {
	sent       []sip.Request
	resent     []sip.Request
	failResend bool
}

func (m *mockTransport) SendRequest(req sip.Request) error {
	m.sent = append(m.sent, req)
	return nil
}

func (m *mockTransport) ResendRequest(req sip.Request) error {
	if m.failResend {
		return errors.New("transport down")
	}
	m.resent = append(m.resent, req)
	return nil
}

// establish drives a dialog to Confirmed and returns the machine, the
// transport and the dialog handle.
func establish(t *testing.T) (*UAC, *mockTransport, ID) {
	t.Helper()
	tp := &mockTransport{}
	u := NewUACMachine("app-1", NewStore(), tp, testLogger())

	invite := makeInvite(t, 10)
	require.NoError(t, u.OnOutgoingRequest(invite))

	u.OnIncomingResponse(invite, respond(t, invite, 180, "Ringing", testToTag))
	u.OnIncomingResponse(invite, respond(t, invite, 200, "OK", testToTag))

	ack := makeRequest(t, requestSpec{method: sip.ACK, cseq: 10, fromTag: testFromTag, toTag: testToTag})
	u.OnOutgoingAck(ack)

	id := MakeID(sip.CallID(testCallID), testFromTag, testToTag)
	d, found := u.store.Find(id)
	require.True(t, found)
	require.Equal(t, Confirmed, d.Status)
	return u, tp, id
}
