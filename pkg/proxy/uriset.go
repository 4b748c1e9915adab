package proxy

import (
	"github.com/cloudwebrtc/go-sip-core/pkg/utils"
	"github.com/ghettovoice/gosip/sip"
)

// URISet is an ordered sequence of target groups: groups are tried
// serially, the URIs inside one group are forked in parallel.
type URISet [][]sip.Uri

// Empty reports whether the set holds no routable target.
func (us URISet) Empty() bool {
	for _, group := range us {
		if len(group) > 0 {
			return false
		}
	}
	return true
}

// First returns the first URI of the first non-empty group.
func (us URISet) First() (sip.Uri, bool) {
	for _, group := range us {
		if len(group) > 0 {
			return group[0], true
		}
	}
	return nil, false
}

// Normalize canonicalizes a user-supplied target specification into a
// URISet. Accepted shapes: a sip.Uri, a string of one or more
// comma-separated URIs, a []sip.Uri or []string (one parallel group), a
// []interface{} whose elements are URIs, strings or nested lists (nested
// lists switch to serial groups), or an already normal URISet. Anything
// else normalizes to the "no routable target" sentinel [[]].
func Normalize(spec interface{}) URISet {
	switch v := spec.(type) {
	case URISet:
		return v
	case sip.Uri:
		return URISet{{v}}
	case sip.SipUri:
		return URISet{{&v}}
	case string:
		return URISet{parseURIs(v)}
	case []sip.Uri:
		group := make([]sip.Uri, 0, len(v))
		group = append(group, v...)
		return URISet{group}
	case []string:
		var group []sip.Uri
		for _, s := range v {
			group = append(group, parseURIs(s)...)
		}
		return URISet{group}
	case [][]sip.Uri:
		return URISet(v)
	case []interface{}:
		if hasNested(v) {
			return normalizeMulti(v)
		}
		var group []sip.Uri
		for _, elem := range v {
			group = append(group, flatten(elem)...)
		}
		return URISet{group}
	default:
		return URISet{nil}
	}
}

func hasNested(list []interface{}) bool {
	for _, elem := range list {
		switch elem.(type) {
		case []interface{}, []sip.Uri, []string:
			return true
		}
	}
	return false
}

// normalizeMulti treats the surrounding list as a sequence of parallel
// groups; a bare URI or string becomes a group of its own.
func normalizeMulti(list []interface{}) URISet {
	set := make(URISet, 0, len(list))
	for _, elem := range list {
		switch v := elem.(type) {
		case []interface{}:
			var group []sip.Uri
			for _, inner := range v {
				group = append(group, flatten(inner)...)
			}
			set = append(set, group)
		case []sip.Uri:
			set = append(set, v)
		case []string:
			var group []sip.Uri
			for _, s := range v {
				group = append(group, parseURIs(s)...)
			}
			set = append(set, group)
		default:
			set = append(set, flatten(elem))
		}
	}
	return set
}

func flatten(elem interface{}) []sip.Uri {
	switch v := elem.(type) {
	case sip.Uri:
		return []sip.Uri{v}
	case sip.SipUri:
		return []sip.Uri{&v}
	case string:
		return parseURIs(v)
	default:
		return nil
	}
}

// parseURIs parses a comma-separated URI list; unparsable entries are
// dropped.
func parseURIs(s string) []sip.Uri {
	return utils.ParseURIList(s)
}
