package filter

import (
	"strings"
	"time"

	"github.com/marcopeg/mondo-sub000/internal/dates"
	"github.com/marcopeg/mondo-sub000/internal/model"
)

type cmpKind int

const (
	cmpNil cmpKind = iota
	cmpNumber
	cmpTemporal
	cmpBool
	cmpString
)

type cmpVal struct {
	kind cmpKind
	num  float64
	t    time.Time
	s    string
}

func normalizeForCompare(v any) cmpVal {
	switch vv := v.(type) {
	case nil:
		return cmpVal{kind: cmpNil}
	case bool:
		if vv {
			return cmpVal{kind: cmpBool, num: 1, s: "true"}
		}
		return cmpVal{kind: cmpBool, s: "false"}
	case time.Time:
		return cmpVal{kind: cmpTemporal, t: vv, s: model.Stringify(vv)}
	case string:
		s := strings.TrimSpace(vv)
		if n, ok := model.ToNumber(s); ok {
			return cmpVal{kind: cmpNumber, num: n, s: s}
		}
		if t, ok := dates.FromValue(s); ok {
			return cmpVal{kind: cmpTemporal, t: t, s: s}
		}
		return cmpVal{kind: cmpString, s: s}
	}
	if n, ok := model.ToNumber(v); ok {
		return cmpVal{kind: cmpNumber, num: n, s: model.Stringify(v)}
	}
	return cmpVal{kind: cmpString, s: model.Stringify(v)}
}

// compareValues orders two metadata values: numerically when both are
// numbers, chronologically when both are dates, as text otherwise. nil sorts
// first.
func compareValues(a, b any) int {
	av := normalizeForCompare(a)
	bv := normalizeForCompare(b)

	switch {
	case av.kind == cmpNil && bv.kind == cmpNil:
		return 0
	case av.kind == cmpNil:
		return -1
	case bv.kind == cmpNil:
		return 1
	}

	if av.kind == bv.kind {
		switch av.kind {
		case cmpNumber, cmpBool:
			return compareFloat(av.num, bv.num)
		case cmpTemporal:
			return av.t.Compare(bv.t)
		}
	}
	return strings.Compare(av.s, bv.s)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
