package idb

import (
	"strconv"
	"strings"
)

// PK is a primary key of an object store. Keys are ordered segment by
// segment (split on ':'). Canonical decimal segments compare as numbers
// and sort before every other segment, the rest compare as strings.
type PK struct {
	key      string
	segments []string
}

func newPK(k string) PK {
	return PK{
		key:      k,
		segments: strings.Split(k, ":"),
	}
}

func (pk *PK) String() string {
	return pk.key
}

func (pk *PK) Less(other PK) bool {
	l := smallestSegmentLen(pk.segments, other.segments)

	for i := 0; i < l; i++ {
		if c := compareSegments(pk.segments[i], other.segments[i]); c != 0 {
			return c < 0
		}
	}

	return len(pk.segments) < len(other.segments)
}

func byPrimaryKeys(a, b interface{}) bool {
	i1, i2 := a.(*entry), b.(*entry)
	return i1.key.Less(i2.key)
}

func smallestSegmentLen(a, b []string) int {
	if len(a) > len(b) {
		return len(b)
	}

	return len(a)
}

// compareSegments is a total order, two segments are only equal when
// they are the same string
func compareSegments(a, b string) int {
	an, aNum := canonicalInt(a)
	bn, bNum := canonicalInt(b)

	switch {
	case aNum && bNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}

	return strings.Compare(a, b)
}

// canonicalInt accepts only plain decimals without sign or leading zeros,
// so every number has exactly one spelling
func canonicalInt(s string) (uint64, bool) {
	if s == "" || len(s) > 1 && s[0] == '0' {
		return 0, false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}
