package utils

import (
	"testing"

	"github.com/ghettovoice/gosip/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIPPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1", GetIP("10.0.0.1:5060"))
	assert.Equal(t, "5060", GetPort("10.0.0.1:5060"))
	assert.Equal(t, "10.0.0.1", GetIP("10.0.0.1"))
	assert.Equal(t, "", GetPort("10.0.0.1"))
}

func TestSplitURIList(t *testing.T) {
	parts := SplitURIList("<sip:a@x.com;lr>, <sip:b@y.com>")
	require.Len(t, parts, 2)

	// A comma inside brackets does not split.
	parts = SplitURIList("<sip:a@x.com;foo=b,c>, sip:d@z.com")
	require.Len(t, parts, 2)
}

func TestParseURIList(t *testing.T) {
	uris := ParseURIList("<sip:a@x.com;lr>, <sip:b@y.com>")
	require.Len(t, uris, 2)
	assert.Contains(t, uris[0].String(), "a@x.com")
	assert.Contains(t, uris[1].String(), "b@y.com")

	assert.Empty(t, ParseURIList("junk"))
	assert.Empty(t, ParseURIList(""))
}

func TestFormatURIList(t *testing.T) {
	uris := ParseURIList("sip:a@x.com, sip:b@y.com")
	require.Len(t, uris, 2)
	formatted := FormatURIList(uris)
	assert.Contains(t, formatted, "<sip:a@x.com>")
	assert.Contains(t, formatted, ", <sip:b@y.com>")
}

func TestHeaderValue(t *testing.T) {
	h := &sip.GenericHeader{HeaderName: "Record-Route", Contents: "<sip:p1.example.com;lr>"}
	assert.Equal(t, "<sip:p1.example.com;lr>", HeaderValue(h))
}
