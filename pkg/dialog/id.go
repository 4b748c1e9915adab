package dialog

import (
	"hash/fnv"

	"github.com/ghettovoice/gosip/sip"
)

// ID is the local handle of a dialog, a 32-bit hash over
// (Call-ID, from-tag, to-tag). Zero means "no dialog".
type ID uint32

// MakeID hashes the dialog identity. The two tags are ordered before
// hashing so that UAC and UAS sides derive the same handle
// (RFC 3261 section 12).
func MakeID(callID sip.CallID, tagA, tagB string) ID {
	if tagA == "" || tagB == "" {
		return 0
	}
	lo, hi := tagA, tagB
	if lo > hi {
		lo, hi = hi, lo
	}
	h := fnv.New32a()
	h.Write([]byte(string(callID)))
	h.Write([]byte{0})
	h.Write([]byte(lo))
	h.Write([]byte{0})
	h.Write([]byte(hi))
	return ID(h.Sum32())
}

// MessageID computes the dialog handle of a message from its Call-ID and
// the From/To tags. Returns false when either tag is missing, i.e. the
// message does not belong to an established or early dialog yet.
func MessageID(msg sip.Message) (ID, bool) {
	callID, ok := msg.CallID()
	if !ok {
		return 0, false
	}
	from, ok := msg.From()
	if !ok {
		return 0, false
	}
	to, ok := msg.To()
	if !ok {
		return 0, false
	}
	fromTag := tagOf(from.Params)
	toTag := tagOf(to.Params)
	if fromTag == "" || toTag == "" {
		return 0, false
	}
	return MakeID(*callID, fromTag, toTag), true
}

// PendingID is MessageID for an INVITE whose To tag has not hit the wire
// yet: the tag reserved for the dialog is supplied by the caller.
func PendingID(msg sip.Message, pendingToTag string) (ID, bool) {
	if pendingToTag == "" {
		return MessageID(msg)
	}
	callID, ok := msg.CallID()
	if !ok {
		return 0, false
	}
	from, ok := msg.From()
	if !ok {
		return 0, false
	}
	fromTag := tagOf(from.Params)
	if fromTag == "" {
		return 0, false
	}
	return MakeID(*callID, fromTag, pendingToTag), true
}
