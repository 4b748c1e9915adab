package proxy

import (
	"fmt"

	"github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
)

// SerialForker is the reference Forker: it walks the groups in order,
// forks the request to every target of a group in parallel, and only
// falls through to the next group when no target of the current one
// could be handed to the transport. Waiting for downstream answers and
// CANCELing the losers belongs to the transaction layer above.
type SerialForker struct {
	tp  Transport
	log log.Logger
}

func NewSerialForker(tp Transport, logger log.Logger) *SerialForker {
	return &SerialForker{
		tp:  tp,
		log: logger.WithPrefix("Forker"),
	}
}

func (f *SerialForker) Fork(req sip.Request, targets URISet) error {
	for _, group := range targets {
		sent := 0
		for _, target := range group {
			branch := sip.CopyRequest(req)
			branch.SetRecipient(target)
			out := f.tp.AddVia(branch)
			if err := f.tp.SendRequest(out); err != nil {
				f.log.Warnf("fork to %s failed: %s", target, err)
				continue
			}
			sent++
		}
		if sent > 0 {
			f.log.Debugf("forked %s to %d target(s)", req.Method(), sent)
			return nil
		}
	}
	return fmt.Errorf("no target of %d group(s) accepted the request", len(targets))
}
