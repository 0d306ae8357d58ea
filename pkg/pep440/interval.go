package pep440

import "strings"

// bound is one end of an interval. A nil version means unbounded.
type bound struct {
	v         *Version
	inclusive bool
}

// interval is a contiguous range of the version line.
type interval struct {
	lo, hi bound
}

func (iv interval) empty() bool {
	if iv.lo.v == nil || iv.hi.v == nil {
		return false
	}
	c := Compare(*iv.lo.v, *iv.hi.v)
	return c > 0 || (c == 0 && !(iv.lo.inclusive && iv.hi.inclusive))
}

func (iv interval) String() string {
	var b strings.Builder
	if iv.lo.inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if iv.lo.v == nil {
		b.WriteString("-inf")
	} else {
		b.WriteString(iv.lo.v.String())
	}
	b.WriteString(", ")
	if iv.hi.v == nil {
		b.WriteString("+inf")
	} else {
		b.WriteString(iv.hi.v.String())
	}
	if iv.hi.inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Range is a union of disjoint intervals over the version line. It is used
// to decide whether constraints can hold at the same time without knowing
// the released versions of a package.
type Range []interval

// Any is the unconstrained range.
func Any() Range { return Range{{}} }

// Empty reports whether no version lies in r.
func (r Range) Empty() bool {
	for _, iv := range r {
		if !iv.empty() {
			return false
		}
	}
	return true
}

// String renders r in interval notation, for diagnostics.
func (r Range) String() string {
	if r.Empty() {
		return "{}"
	}
	parts := make([]string, 0, len(r))
	for _, iv := range r {
		if !iv.empty() {
			parts = append(parts, iv.String())
		}
	}
	return strings.Join(parts, " U ")
}

// Intersect returns the versions in both r and o.
func (r Range) Intersect(o Range) Range {
	var out Range
	for _, a := range r {
		for _, b := range o {
			iv := interval{lo: maxLo(a.lo, b.lo), hi: minHi(a.hi, b.hi)}
			if !iv.empty() {
				out = append(out, iv)
			}
		}
	}
	return out
}

func maxLo(a, b bound) bound {
	switch {
	case a.v == nil:
		return b
	case b.v == nil:
		return a
	}
	switch c := Compare(*a.v, *b.v); {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	return bound{v: a.v, inclusive: a.inclusive && b.inclusive}
}

func minHi(a, b bound) bound {
	switch {
	case a.v == nil:
		return b
	case b.v == nil:
		return a
	}
	switch c := Compare(*a.v, *b.v); {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	return bound{v: a.v, inclusive: a.inclusive && b.inclusive}
}

func point(v Version) Range {
	return Range{{lo: bound{&v, true}, hi: bound{&v, true}}}
}

func span(lo, hi Version) Range {
	return Range{{lo: bound{&lo, true}, hi: bound{&hi, false}}}
}

// without returns the complement of the closed/half-open block [lo, hi).
// When hi is nil the block is the single point lo.
func without(lo Version, hi *Version) Range {
	if hi == nil {
		return Range{
			{hi: bound{&lo, false}},
			{lo: bound{&lo, false}},
		}
	}
	return Range{
		{hi: bound{&lo, false}},
		{lo: bound{hi, true}},
	}
}

// Range converts the clause into the versions it admits. Pre-release
// filtering and the exclusive-ordering refinements of < and > are not
// modeled, so the result may be slightly wider than [Specifier.Contains].
func (s Specifier) Range() Range {
	v := s.Version
	switch s.Op {
	case OpArbitrary:
		if v.Release == nil {
			return Any()
		}
		return point(v)
	case OpEqual:
		if s.Wildcard {
			return span(firstOfRelease(v.Epoch, v.Release), nextRelease(v.Epoch, v.Release))
		}
		return point(v)
	case OpNotEqual:
		if s.Wildcard {
			hi := nextRelease(v.Epoch, v.Release)
			return without(firstOfRelease(v.Epoch, v.Release), &hi)
		}
		return without(v, nil)
	case OpCompatible:
		return span(v, nextRelease(v.Epoch, v.Release[:len(v.Release)-1]))
	case OpLessEq:
		return Range{{hi: bound{&v, true}}}
	case OpLess:
		return Range{{hi: bound{&v, false}}}
	case OpGreaterEq:
		return Range{{lo: bound{&v, true}}}
	case OpGreater:
		return Range{{lo: bound{&v, false}}}
	}
	return Any()
}

// Range intersects the ranges of all clauses.
func (set SpecifierSet) Range() Range {
	r := Any()
	for _, s := range set {
		r = r.Intersect(s.Range())
	}
	return r
}

// Satisfiable reports whether some version could satisfy every set at once.
func Satisfiable(sets ...SpecifierSet) bool {
	r := Any()
	for _, set := range sets {
		r = r.Intersect(set.Range())
		if r.Empty() {
			return false
		}
	}
	return true
}
