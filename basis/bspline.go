package basis

import (
	"fmt"
)

// BSpline1D is a univariate B-spline basis on an open (clamped) knot
// vector. Evaluation follows the Cox-de Boor recurrence over a single
// knot span, returning the P+1 functions active there.
type BSpline1D struct {
	P     int // polynomial degree
	Knots []float64
}

func NewBSpline1D(p int, knots []float64) (b *BSpline1D) {
	if len(knots) < 2*(p+1) {
		panic(fmt.Errorf("knot vector of length %d too short for degree %d", len(knots), p))
	}
	return &BSpline1D{P: p, Knots: knots}
}

// NewUniformBSpline1D builds a clamped uniform knot vector with numElems
// nonempty spans over [x0,x1].
func NewUniformBSpline1D(p, numElems int, x0, x1 float64) (b *BSpline1D) {
	if numElems < 1 {
		panic("need at least one element")
	}
	knots := make([]float64, 0, 2*(p+1)+numElems-1)
	for i := 0; i <= p; i++ {
		knots = append(knots, x0)
	}
	h := (x1 - x0) / float64(numElems)
	for i := 1; i < numElems; i++ {
		knots = append(knots, x0+float64(i)*h)
	}
	for i := 0; i <= p; i++ {
		knots = append(knots, x1)
	}
	return NewBSpline1D(p, knots)
}

func (b *BSpline1D) NumBasis() int { return len(b.Knots) - b.P - 1 }
func (b *BSpline1D) Degree() int   { return b.P }

func (b *BSpline1D) Domain() (x0, x1 float64) {
	return b.Knots[b.P], b.Knots[len(b.Knots)-b.P-1]
}

// FindSpan locates the knot span index mu with Knots[mu] <= x < Knots[mu+1],
// clamped to the last nonempty span at the right end of the domain.
func (b *BSpline1D) FindSpan(x float64) (span int) {
	var (
		lo = b.P
		hi = len(b.Knots) - b.P - 2
	)
	if x >= b.Knots[hi+1] {
		// Right end of the domain belongs to the last span
		for span = hi; span > lo && b.Knots[span] == b.Knots[span+1]; span-- {
		}
		return
	}
	if x <= b.Knots[lo] {
		for span = lo; span < hi && b.Knots[span] == b.Knots[span+1]; span++ {
		}
		return
	}
	for lo <= hi {
		mid := (lo + hi) / 2
		if x < b.Knots[mid] {
			hi = mid - 1
		} else if x >= b.Knots[mid+1] {
			lo = mid + 1
		} else {
			return mid
		}
	}
	return lo
}

// evalFuncs computes the p+1 degree-p functions nonzero on span at x
// (Cox-de Boor, NURBS book A2.2). Entry r corresponds to global basis
// index span-p+r.
func (b *BSpline1D) evalFuncs(span int, x float64, p int) (N []float64) {
	var (
		left  = make([]float64, p+1)
		right = make([]float64, p+1)
	)
	N = make([]float64, p+1)
	N[0] = 1.
	for j := 1; j <= p; j++ {
		left[j] = x - b.Knots[span+1-j]
		right[j] = b.Knots[span+j] - x
		var saved float64
		for r := 0; r < j; r++ {
			temp := N[r] / (right[r+1] + left[j-r])
			N[r] = saved + right[r+1]*temp
			saved = left[j-r]*temp
		}
		N[j] = saved
	}
	return
}

// EvalSpan returns the P+1 active basis values at x and the first active
// global index.
func (b *BSpline1D) EvalSpan(x float64) (N []float64, first int) {
	span := b.FindSpan(x)
	N = b.evalFuncs(span, x, b.P)
	first = span - b.P
	return
}

// DerivSpan returns active values and first derivatives at x. The
// derivative uses the lower-degree recurrence:
// N'_i,p = p*( N_i,p-1/(t_{i+p}-t_i) - N_{i+1},p-1/(t_{i+p+1}-t_{i+1}) ).
func (b *BSpline1D) DerivSpan(x float64) (N, dN []float64, first int) {
	var (
		span = b.FindSpan(x)
		p    = b.P
	)
	N = b.evalFuncs(span, x, p)
	dN = make([]float64, p+1)
	first = span - p
	if p == 0 {
		return
	}
	Nlow := b.evalFuncs(span, x, p-1) // active indices span-p+1 .. span
	for r := 0; r <= p; r++ {
		i := first + r
		var dl, dr float64
		if r >= 1 {
			if den := b.Knots[i+p] - b.Knots[i]; den > 0 {
				dl = Nlow[r-1] / den
			}
		}
		if r <= p-1 {
			if den := b.Knots[i+p+1] - b.Knots[i+1]; den > 0 {
				dr = Nlow[r] / den
			}
		}
		dN[r] = float64(p) * (dl - dr)
	}
	return
}

// Breaks returns the distinct knots spanning nonempty elements.
func (b *BSpline1D) Breaks() (breaks []float64) {
	var (
		lo = b.P
		hi = len(b.Knots) - b.P - 1
	)
	breaks = append(breaks, b.Knots[lo])
	for i := lo + 1; i <= hi; i++ {
		if b.Knots[i] > breaks[len(breaks)-1] {
			breaks = append(breaks, b.Knots[i])
		}
	}
	return
}

// NumElements is the count of nonempty knot spans.
func (b *BSpline1D) NumElements() int { return len(b.Breaks()) - 1 }

// Greville returns the Greville abscissae, one per basis function.
func (b *BSpline1D) Greville() (g []float64) {
	g = make([]float64, b.NumBasis())
	for i := range g {
		var sum float64
		for j := 1; j <= b.P; j++ {
			sum += b.Knots[i+j]
		}
		if b.P > 0 {
			g[i] = sum / float64(b.P)
		} else {
			g[i] = 0.5 * (b.Knots[i] + b.Knots[i+1])
		}
	}
	return
}
