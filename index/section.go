package index

import (
	"fmt"

	"github.com/arloliu/nimbo/errs"
)

// Section is the canonical form of a selection: parallel start/count/stride
// triples in logical (outer-to-inner) dimension order, plus the squeeze mask
// recording which dimensions were addressed by a point selector.
//
// For every dimension i the resolved selection is the count[i] positions
// start[i], start[i]+stride[i], ... A count of zero denotes an empty
// selection along that dimension. A Section of rank 0 addresses the single
// element of a scalar variable.
//
// Storage engines address dimensions in reversed (innermost-first) order;
// callers performing a transfer reverse the triples exactly once with
// Reversed at that boundary.
type Section struct {
	// Start holds the first selected position per dimension.
	Start []int
	// Count holds the number of selected positions per dimension.
	Count []int
	// Stride holds the distance between selected positions per dimension.
	Stride []int
	// Squeeze flags dimensions addressed by At, dropped from the result
	// shape.
	Squeeze []bool
}

// Normalize resolves one selector per dimension of shape into a Section.
//
// Rules:
//   - At(i) resolves to the triple (i, 1, 1) and squeezes the dimension.
//   - All() resolves to (0, extent, 1).
//   - Range(lo, hi) resolves to (lo, hi-lo+1, 1).
//   - Strided(lo, hi, step) resolves to (lo, (hi-lo)/step+1, step).
//   - A range with hi < lo is empty and canonicalizes to (0, 0, 1).
//
// The selector count must equal len(shape) (errs.ErrRankMismatch), every
// selector must be non-nil (errs.ErrUnsupportedIndex), strided steps must be
// positive (errs.ErrInvalidStride), and non-empty bounds must lie inside
// [0, extent) (errs.ErrIndexOutOfRange). Validation happens entirely here,
// before any storage call.
func Normalize(shape []int, sels ...Selector) (Section, error) {
	return normalize(shape, nil, sels)
}

// NormalizeGrowable is Normalize for writes to a variable whose flagged
// dimensions may grow. On a growable dimension an explicit upper bound may
// exceed the current extent; the write then extends the dimension. All()
// still resolves to the current extent, so growing a record dimension always
// takes an explicit bound.
func NormalizeGrowable(shape []int, growable []bool, sels ...Selector) (Section, error) {
	return normalize(shape, growable, sels)
}

func normalize(shape []int, growable []bool, sels []Selector) (Section, error) {
	if len(sels) != len(shape) {
		return Section{}, fmt.Errorf("%w: %d selectors for rank %d", errs.ErrRankMismatch, len(sels), len(shape))
	}

	sec := Section{
		Start:   make([]int, len(shape)),
		Count:   make([]int, len(shape)),
		Stride:  make([]int, len(shape)),
		Squeeze: make([]bool, len(shape)),
	}

	for d, sel := range sels {
		var lo, hi, step int

		switch s := sel.(type) {
		case pointSel:
			lo, hi, step = int(s), int(s), 1
			sec.Squeeze[d] = true
		case allSel:
			lo, hi, step = 0, shape[d]-1, 1
		case rangeSel:
			lo, hi, step = s.lo, s.hi, 1
		case stridedSel:
			lo, hi, step = s.lo, s.hi, s.step
		case nil:
			return Section{}, fmt.Errorf("%w: dimension %d has no selector", errs.ErrUnsupportedIndex, d)
		default:
			return Section{}, fmt.Errorf("%w: dimension %d: %T", errs.ErrUnsupportedIndex, d, sel)
		}

		if step <= 0 {
			return Section{}, fmt.Errorf("%w: dimension %d: step %d", errs.ErrInvalidStride, d, step)
		}

		if hi < lo {
			// Empty selection; never touches storage, so no bounds check.
			sec.Stride[d] = 1
			continue
		}

		if lo < 0 || (hi >= shape[d] && (growable == nil || !growable[d])) {
			return Section{}, fmt.Errorf("%w: dimension %d: %s exceeds extent %d",
				errs.ErrIndexOutOfRange, d, sel, shape[d])
		}

		sec.Start[d] = lo
		sec.Count[d] = (hi-lo)/step + 1
		sec.Stride[d] = step
	}

	return sec, nil
}

// Rank returns the number of dimensions the section addresses, before
// squeezing.
func (s Section) Rank() int { return len(s.Count) }

// Size returns the total number of selected elements: the product of the
// per-dimension counts. The empty product is 1, matching the single element
// of a rank-0 section.
func (s Section) Size() int {
	n := 1
	for _, c := range s.Count {
		n *= c
	}

	return n
}

// Shape returns the result shape after squeezing: the counts of every
// non-squeezed dimension, in logical order. A fully squeezed section yields
// an empty shape (a scalar result).
func (s Section) Shape() []int {
	out := make([]int, 0, len(s.Count))
	for d, c := range s.Count {
		if !s.Squeeze[d] {
			out = append(out, c)
		}
	}

	return out
}

// IsFull reports whether the section selects every element of shape in
// order: start 0, stride 1 and count equal to the extent on every
// dimension. Full sections qualify for the unsegmented whole-variable
// transfer path. A rank-0 section is trivially full.
func (s Section) IsFull(shape []int) bool {
	if len(shape) != len(s.Count) {
		return false
	}

	for d := range shape {
		if s.Start[d] != 0 || s.Stride[d] != 1 || s.Count[d] != shape[d] {
			return false
		}
	}

	return true
}

// IsPoint reports whether every dimension was addressed by At: a
// single-element selection qualifying for the point fast path.
func (s Section) IsPoint() bool {
	if len(s.Squeeze) == 0 {
		return false
	}

	for _, sq := range s.Squeeze {
		if !sq {
			return false
		}
	}

	return true
}

// Reversed returns a copy of a in reversed order. It converts between
// logical (outer-to-inner) and storage (innermost-first) dimension order;
// applying it twice is the identity, and a zero-length slice round-trips
// with no special casing.
func Reversed(a []int) []int {
	out := make([]int, len(a))
	for i, v := range a {
		out[len(a)-1-i] = v
	}

	return out
}
