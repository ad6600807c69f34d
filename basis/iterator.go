package basis

import "github.com/notargets/galerkin/utils"

// ElementIterator walks the nonempty knot-span boxes of a tensor basis,
// either over the whole patch or restricted to one side. Side-restricted
// iteration pins the side-normal direction to the face coordinate,
// producing zero-thickness boxes whose pinned direction the quadrature
// rule handles.
type ElementIterator struct {
	breaks [][]float64
	pinDir int // -1 when iterating the full patch
	pinVal float64
	idx    []int
	counts []int
	good   bool
}

func (tb *TensorBasis) Elements() (it *ElementIterator) {
	return tb.newIterator(-1, 0)
}

func (tb *TensorBasis) BoundaryElements(s Side) (it *ElementIterator) {
	var (
		b   = tb.B[s.Direction()]
		pin float64
	)
	x0, x1 := b.Domain()
	if s.IsUpper() {
		pin = x1
	} else {
		pin = x0
	}
	return tb.newIterator(s.Direction(), pin)
}

func (tb *TensorBasis) newIterator(pinDir int, pinVal float64) (it *ElementIterator) {
	var (
		dim = tb.Dim()
	)
	it = &ElementIterator{
		breaks: make([][]float64, dim),
		pinDir: pinDir,
		pinVal: pinVal,
		idx:    make([]int, dim),
		counts: make([]int, dim),
		good:   true,
	}
	for d, b := range tb.B {
		it.breaks[d] = b.Breaks()
		it.counts[d] = len(it.breaks[d]) - 1
		if d == pinDir {
			it.counts[d] = 1
		}
		if it.counts[d] < 1 {
			it.good = false
		}
	}
	return
}

func (it *ElementIterator) Good() bool { return it.good }

func (it *ElementIterator) Next() {
	for d := 0; d < len(it.idx); d++ {
		it.idx[d]++
		if it.idx[d] < it.counts[d] {
			return
		}
		it.idx[d] = 0
	}
	it.good = false
}

// NumElements is the total box count for this iteration.
func (it *ElementIterator) NumElements() (n int) {
	n = 1
	for _, c := range it.counts {
		n *= c
	}
	return
}

// Lower and Upper bound the current element box. For a pinned direction
// both equal the face coordinate.
func (it *ElementIterator) Lower() (lower utils.Vector) {
	lower = utils.NewVector(len(it.idx))
	for d := range it.idx {
		if d == it.pinDir {
			lower.Set(d, it.pinVal)
			continue
		}
		lower.Set(d, it.breaks[d][it.idx[d]])
	}
	return
}

func (it *ElementIterator) Upper() (upper utils.Vector) {
	upper = utils.NewVector(len(it.idx))
	for d := range it.idx {
		if d == it.pinDir {
			upper.Set(d, it.pinVal)
			continue
		}
		upper.Set(d, it.breaks[d][it.idx[d]+1])
	}
	return
}

// Seek positions the iterator at element n of its own enumeration
// order, skipping the elements before it.
func (it *ElementIterator) Seek(n int) {
	for d := range it.idx {
		it.idx[d] = n % it.counts[d]
		n /= it.counts[d]
	}
	it.good = n == 0
}
