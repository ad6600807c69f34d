package basis

import (
	"fmt"

	"github.com/notargets/galerkin/utils"
)

// Basis is the capability interface every concrete basis kind
// implements. All assembler queries go through it; no runtime type
// inspection is needed anywhere downstream.
type Basis interface {
	Dim() int
	NumBasis() int
	Degree(dir int) int
	Degrees() []int
	// EvalActive evaluates the basis functions active on the element
	// containing the given points (dim x N, all within one element).
	// values is nActive x N; actives holds the global basis indices.
	EvalActive(points utils.Matrix) (values utils.Matrix, actives utils.Index)
	// DerivActive additionally returns first derivatives, one nActive x N
	// matrix per parametric direction.
	DerivActive(points utils.Matrix) (values utils.Matrix, derivs []utils.Matrix, actives utils.Index)
	// Boundary lists the basis functions supported on a side.
	Boundary(s Side) utils.Index
	// Support is the parametric domain box.
	Support() (lower, upper utils.Vector)
	// Greville returns one collocation point per basis function
	// (NumBasis x dim).
	Greville() utils.Matrix
	Elements() *ElementIterator
	BoundaryElements(s Side) *ElementIterator
}

// TensorBasis is the tensor product of univariate B-spline bases, one
// per parametric direction. Flattened numbering runs first direction
// fastest: i = i0 + n0*(i1 + n1*i2).
type TensorBasis struct {
	B []*BSpline1D
}

func NewTensorBasis(bs ...*BSpline1D) (tb *TensorBasis) {
	if len(bs) == 0 {
		panic("tensor basis needs at least one direction")
	}
	return &TensorBasis{B: bs}
}

func (tb *TensorBasis) Dim() int { return len(tb.B) }

func (tb *TensorBasis) NumBasis() (n int) {
	n = 1
	for _, b := range tb.B {
		n *= b.NumBasis()
	}
	return
}

func (tb *TensorBasis) Degree(dir int) int { return tb.B[dir].Degree() }

func (tb *TensorBasis) Degrees() (degs []int) {
	degs = make([]int, len(tb.B))
	for d, b := range tb.B {
		degs[d] = b.Degree()
	}
	return
}

func (tb *TensorBasis) Support() (lower, upper utils.Vector) {
	var (
		dim = tb.Dim()
	)
	lower, upper = utils.NewVector(dim), utils.NewVector(dim)
	for d, b := range tb.B {
		x0, x1 := b.Domain()
		lower.Set(d, x0)
		upper.Set(d, x1)
	}
	return
}

// flatten converts per-direction indices to the global basis index.
func (tb *TensorBasis) flatten(di []int) (i int) {
	for d := len(tb.B) - 1; d >= 0; d-- {
		i = i*tb.B[d].NumBasis() + di[d]
	}
	return
}

func (tb *TensorBasis) numActive() (n int) {
	n = 1
	for _, b := range tb.B {
		n *= b.Degree() + 1
	}
	return
}

func (tb *TensorBasis) EvalActive(points utils.Matrix) (values utils.Matrix, actives utils.Index) {
	values, _, actives = tb.eval(points, false)
	return
}

func (tb *TensorBasis) DerivActive(points utils.Matrix) (values utils.Matrix, derivs []utils.Matrix, actives utils.Index) {
	return tb.eval(points, true)
}

func (tb *TensorBasis) eval(points utils.Matrix, withDerivs bool) (values utils.Matrix, derivs []utils.Matrix, actives utils.Index) {
	var (
		dim     = tb.Dim()
		nActive = tb.numActive()
		_, npts = points.Dims()
	)
	if pr, _ := points.Dims(); pr != dim {
		panic(fmt.Errorf("point dimension %d does not match basis dimension %d", pr, dim))
	}
	values = utils.NewMatrix(nActive, npts)
	if withDerivs {
		derivs = make([]utils.Matrix, dim)
		for d := range derivs {
			derivs[d] = utils.NewMatrix(nActive, npts)
		}
	}

	// Actives are identical for every point of one element; use the
	// first point to locate the span windows.
	firsts := make([]int, dim)
	if npts > 0 {
		for d, b := range tb.B {
			span := b.FindSpan(points.At(d, 0))
			firsts[d] = span - b.Degree()
		}
	}
	actives = utils.NewIndex(nActive)
	di := make([]int, dim)
	for a := 0; a < nActive; a++ {
		gi := make([]int, dim)
		for d := range gi {
			gi[d] = firsts[d] + di[d]
		}
		actives[a] = tb.flatten(gi)
		incrOdometer(di, tb.activeCounts())
	}

	for k := 0; k < npts; k++ {
		var (
			vals1d = make([][]float64, dim)
			ders1d = make([][]float64, dim)
		)
		for d, b := range tb.B {
			x := points.At(d, k)
			if withDerivs {
				vals1d[d], ders1d[d], _ = b.DerivSpan(x)
			} else {
				vals1d[d], _ = b.EvalSpan(x)
			}
		}
		for d2 := range di {
			di[d2] = 0
		}
		for a := 0; a < nActive; a++ {
			v := 1.
			for d := 0; d < dim; d++ {
				v *= vals1d[d][di[d]]
			}
			values.Set(a, k, v)
			if withDerivs {
				for gd := 0; gd < dim; gd++ {
					dv := 1.
					for d := 0; d < dim; d++ {
						if d == gd {
							dv *= ders1d[d][di[d]]
						} else {
							dv *= vals1d[d][di[d]]
						}
					}
					derivs[gd].Set(a, k, dv)
				}
			}
			incrOdometer(di, tb.activeCounts())
		}
	}
	return
}

func (tb *TensorBasis) activeCounts() (counts []int) {
	counts = make([]int, len(tb.B))
	for d, b := range tb.B {
		counts[d] = b.Degree() + 1
	}
	return
}

func incrOdometer(di, counts []int) {
	for d := 0; d < len(di); d++ {
		di[d]++
		if di[d] < counts[d] {
			return
		}
		di[d] = 0
	}
}

// Boundary returns the flattened indices of all basis functions whose
// univariate factor in the side direction is the end function on that
// side.
func (tb *TensorBasis) Boundary(s Side) (I utils.Index) {
	var (
		dim  = tb.Dim()
		sdir = s.Direction()
	)
	if sdir >= dim {
		panic(fmt.Errorf("side %v out of range for dimension %d", s, dim))
	}
	fixed := 0
	if s.IsUpper() {
		fixed = tb.B[sdir].NumBasis() - 1
	}
	counts := make([]int, dim)
	total := 1
	for d, b := range tb.B {
		counts[d] = b.NumBasis()
		if d != sdir {
			total *= b.NumBasis()
		}
	}
	I = make(utils.Index, 0, total)
	di := make([]int, dim)
	di[sdir] = fixed
	for {
		I = append(I, tb.flatten(di))
		// advance over the non-fixed directions
		d := 0
		for ; d < dim; d++ {
			if d == sdir {
				continue
			}
			di[d]++
			if di[d] < counts[d] {
				break
			}
			di[d] = 0
		}
		if d == dim {
			return
		}
	}
}

// Greville returns the tensor Greville abscissae (NumBasis x dim).
func (tb *TensorBasis) Greville() (G utils.Matrix) {
	var (
		dim = tb.Dim()
		n   = tb.NumBasis()
	)
	g1d := make([][]float64, dim)
	counts := make([]int, dim)
	for d, b := range tb.B {
		g1d[d] = b.Greville()
		counts[d] = b.NumBasis()
	}
	G = utils.NewMatrix(n, dim)
	di := make([]int, dim)
	for i := 0; i < n; i++ {
		for d := 0; d < dim; d++ {
			G.Set(tb.flatten(di), d, g1d[d][di[d]])
		}
		incrOdometer(di, counts)
	}
	return
}
