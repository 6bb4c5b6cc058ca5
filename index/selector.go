// Package index converts heterogeneous per-dimension selections into the
// canonical start/count/stride form used for storage transfers.
//
// A selection addresses one variable dimension with one Selector:
//
//	v.Get(index.At(3), index.All(), index.Range(10, 19))
//
// Normalize resolves the selector tuple against the variable's shape into a
// Section: parallel start/count/stride triples in logical dimension order
// plus a squeeze mask recording which dimensions were addressed by a single
// point and therefore drop out of the result shape.
//
// Selectors form a closed set: At (single point), All (full range), Range
// (contiguous inclusive range) and Strided (inclusive range with a positive
// step). All bounds are zero-based and validated against the dimension
// extent before any transfer is issued.
package index

import "fmt"

// Selector selects positions along one dimension of a variable.
//
// The set of implementations is closed; values are built with At, All,
// Range and Strided.
type Selector interface {
	isSelector()
	fmt.Stringer
}

type pointSel int

type allSel struct{}

type rangeSel struct {
	lo, hi int
}

type stridedSel struct {
	lo, hi, step int
}

// At selects the single position i and marks the dimension for squeezing:
// the dimension does not appear in the result shape.
func At(i int) Selector { return pointSel(i) }

// All selects every position of the dimension.
func All() Selector { return allSel{} }

// Range selects the contiguous inclusive range [lo, hi]. A range with
// hi < lo is empty and selects nothing.
func Range(lo, hi int) Selector { return rangeSel{lo: lo, hi: hi} }

// Strided selects the inclusive range [lo, hi] stepping by step positions.
// The step must be positive; Normalize rejects zero and negative steps.
func Strided(lo, hi, step int) Selector { return stridedSel{lo: lo, hi: hi, step: step} }

func (pointSel) isSelector()   {}
func (allSel) isSelector()     {}
func (rangeSel) isSelector()   {}
func (stridedSel) isSelector() {}

func (s pointSel) String() string { return fmt.Sprintf("%d", int(s)) }

func (allSel) String() string { return ":" }

func (s rangeSel) String() string { return fmt.Sprintf("%d:%d", s.lo, s.hi) }

func (s stridedSel) String() string { return fmt.Sprintf("%d:%d:%d", s.lo, s.hi, s.step) }
