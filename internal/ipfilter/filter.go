package ipfilter

import (
	"errors"
	"net/netip"
	"sort"
)

var (
	ErrMixedFamilies = errors.New("ipfilter: range endpoints belong to different address families")
	ErrInvertedRange = errors.New("ipfilter: range start is greater than range end")
)

// Range is an inclusive span of addresses within a single family.
type Range struct {
	Start netip.Addr
	End   netip.Addr
}

// Contains reports whether addr falls inside the range.
func (r Range) Contains(addr netip.Addr) bool {
	return r.Start.Compare(addr) <= 0 && addr.Compare(r.End) <= 0
}

// Filter stores blocked address ranges per family as sorted, disjoint,
// non-adjacent spans. It is single-writer: a load job populates it and
// hands it off; after handoff it is only read.
type Filter struct {
	v4 []Range
	v6 []Range
}

func New() *Filter {
	return &Filter{}
}

// Insert merges the inclusive range [start, end] into the filter,
// coalescing it with any stored range it overlaps or touches.
func (f *Filter) Insert(start, end netip.Addr) error {
	if start.Is4() != end.Is4() {
		return ErrMixedFamilies
	}
	if start.Compare(end) > 0 {
		return ErrInvertedRange
	}

	ranges := &f.v6
	if start.Is4() {
		ranges = &f.v4
	}
	*ranges = coalesce(*ranges, Range{Start: start, End: end})
	return nil
}

// coalesce splices r into the sorted range list, absorbing every stored
// range that overlaps or is directly adjacent to it.
func coalesce(ranges []Range, r Range) []Range {
	// First stored range that could touch r: its end must reach at
	// least the address directly before r.Start.
	lo := sort.Search(len(ranges), func(i int) bool {
		return !ranges[i].End.Less(prevOrSelf(r.Start))
	})
	// First stored range strictly beyond r, not even adjacent.
	hi := sort.Search(len(ranges), func(i int) bool {
		return nextOrSelf(r.End).Less(ranges[i].Start)
	})

	if lo < hi {
		if ranges[lo].Start.Less(r.Start) {
			r.Start = ranges[lo].Start
		}
		if r.End.Less(ranges[hi-1].End) {
			r.End = ranges[hi-1].End
		}
	}

	out := make([]Range, 0, len(ranges)-(hi-lo)+1)
	out = append(out, ranges[:lo]...)
	out = append(out, r)
	out = append(out, ranges[hi:]...)
	return out
}

// prevOrSelf returns the address directly before a, or a itself at the
// low end of the family space.
func prevOrSelf(a netip.Addr) netip.Addr {
	if p := a.Prev(); p.IsValid() {
		return p
	}
	return a
}

// nextOrSelf returns the address directly after a, or a itself at the
// high end of the family space.
func nextOrSelf(a netip.Addr) netip.Addr {
	if n := a.Next(); n.IsValid() {
		return n
	}
	return a
}

// Contains reports whether addr is covered by a stored range of its
// family. Lookup is a binary search over the sorted disjoint spans.
func (f *Filter) Contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()

	ranges := f.v6
	if addr.Is4() {
		ranges = f.v4
	}

	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if addr.Less(ranges[mid].Start) {
			hi = mid
			continue
		}
		if ranges[mid].End.Less(addr) {
			lo = mid + 1
			continue
		}
		return true
	}
	return false
}

// Len returns the number of stored disjoint ranges across both families.
func (f *Filter) Len() int {
	return len(f.v4) + len(f.v6)
}

// Ranges returns the stored spans for inspection, IPv4 first.
func (f *Filter) Ranges() []Range {
	out := make([]Range, 0, len(f.v4)+len(f.v6))
	out = append(out, f.v4...)
	out = append(out, f.v6...)
	return out
}
