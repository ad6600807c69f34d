package basis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/galerkin/utils"
)

func TestBSpline1D(t *testing.T) {
	b := NewUniformBSpline1D(2, 4, 0, 1)
	// Clamped degree 2 over 4 elements: n = 4 + p = 6 basis functions
	require.Equal(t, 6, b.NumBasis())
	require.Equal(t, 4, b.NumElements())
	x0, x1 := b.Domain()
	assert.Equal(t, 0., x0)
	assert.Equal(t, 1., x1)

	// Partition of unity everywhere in the domain
	for _, x := range []float64{0, 0.1, 0.25, 0.5, 0.624, 0.99, 1} {
		N, _ := b.EvalSpan(x)
		var sum float64
		for _, v := range N {
			sum += v
		}
		assert.True(t, near(sum, 1.))
	}

	// Derivatives of a partition of unity sum to zero
	for _, x := range []float64{0.05, 0.3, 0.77} {
		_, dN, _ := b.DerivSpan(x)
		var sum float64
		for _, v := range dN {
			sum += v
		}
		assert.True(t, near(sum, 0., 1.e-10))
	}

	// Endpoint interpolation of a clamped basis
	N, first := b.EvalSpan(0)
	assert.Equal(t, 0, first)
	assert.True(t, near(N[0], 1.))
	N, first = b.EvalSpan(1)
	assert.Equal(t, b.NumBasis()-1, first+len(N)-1)
	assert.True(t, near(N[len(N)-1], 1.))
}

func TestBSplineDerivative(t *testing.T) {
	// Degree 1 on one element is linear interpolation: constant slope
	b := NewUniformBSpline1D(1, 1, 0, 2)
	_, dN, first := b.DerivSpan(1.0)
	require.Equal(t, 0, first)
	require.Equal(t, 2, len(dN))
	assert.True(t, near(dN[0], -0.5))
	assert.True(t, near(dN[1], 0.5))

	// Finite difference check at an interior point of a quadratic
	b = NewUniformBSpline1D(2, 3, 0, 1)
	var (
		x = 0.4
		h = 1.e-6
	)
	_, dN, first = b.DerivSpan(x)
	Np, fp := b.EvalSpan(x + h)
	Nm, fm := b.EvalSpan(x - h)
	require.Equal(t, first, fp)
	require.Equal(t, first, fm)
	for i := range dN {
		fd := (Np[i] - Nm[i]) / (2 * h)
		assert.True(t, near(dN[i], fd, 1.e-5))
	}
}

func TestFindSpan(t *testing.T) {
	b := NewUniformBSpline1D(2, 4, 0, 1)
	// A point inside element e lies in span e+p
	assert.Equal(t, 2, b.FindSpan(0.1))
	assert.Equal(t, 3, b.FindSpan(0.3))
	assert.Equal(t, 5, b.FindSpan(0.9))
	// Domain ends clamp to valid spans
	assert.Equal(t, 2, b.FindSpan(0))
	assert.Equal(t, 5, b.FindSpan(1))
}

func TestGreville(t *testing.T) {
	b := NewUniformBSpline1D(1, 2, 0, 2)
	// Degree 1 Greville points are the interior knots
	g := b.Greville()
	require.Equal(t, 3, len(g))
	assert.True(t, near(g[0], 0))
	assert.True(t, near(g[1], 1))
	assert.True(t, near(g[2], 2))
}

func TestTensorBasis(t *testing.T) {
	tb := NewTensorBasis(
		NewUniformBSpline1D(2, 2, 0, 1),
		NewUniformBSpline1D(1, 3, 0, 1),
	)
	require.Equal(t, 2, tb.Dim())
	require.Equal(t, 16, tb.NumBasis()) // 4 * 4
	assert.Equal(t, []int{2, 1}, tb.Degrees())

	// Tensor values at one point: partition of unity, correct active count
	pts := utils.NewMatrix(2, 1)
	pts.Set(0, 0, 0.3)
	pts.Set(1, 0, 0.6)
	values, actives := tb.EvalActive(pts)
	nb, np := values.Dims()
	require.Equal(t, (2+1)*(1+1), nb)
	require.Equal(t, 1, np)
	require.Equal(t, nb, len(actives))
	var sum float64
	for i := 0; i < nb; i++ {
		sum += values.At(i, 0)
	}
	assert.True(t, near(sum, 1.))
	// Active indices are valid and strictly increasing in the first
	// direction within a row
	for _, a := range actives {
		assert.True(t, a >= 0 && a < tb.NumBasis())
	}

	// Directional derivative check against finite differences
	_, derivs, _ := tb.DerivActive(pts)
	require.Equal(t, 2, len(derivs))
	var (
		h  = 1.e-6
		pp = utils.NewMatrix(2, 1).Set(0, 0, 0.3+h).Set(1, 0, 0.6)
		pm = utils.NewMatrix(2, 1).Set(0, 0, 0.3-h).Set(1, 0, 0.6)
	)
	vp, _ := tb.EvalActive(pp)
	vm, _ := tb.EvalActive(pm)
	for i := 0; i < nb; i++ {
		fd := (vp.At(i, 0) - vm.At(i, 0)) / (2 * h)
		assert.True(t, near(derivs[0].At(i, 0), fd, 1.e-5))
	}
}

func TestBoundaryIndices(t *testing.T) {
	tb := NewTensorBasis(
		NewUniformBSpline1D(1, 2, 0, 1), // 3 basis functions
		NewUniformBSpline1D(1, 3, 0, 1), // 4 basis functions
	)
	// First direction fastest: index = i + 3*j
	assert.Equal(t, utils.Index{0, 3, 6, 9}, tb.Boundary(West))
	assert.Equal(t, utils.Index{2, 5, 8, 11}, tb.Boundary(East))
	assert.Equal(t, utils.Index{0, 1, 2}, tb.Boundary(South))
	assert.Equal(t, utils.Index{9, 10, 11}, tb.Boundary(North))
}

func TestElementIterator(t *testing.T) {
	tb := NewTensorBasis(
		NewUniformBSpline1D(2, 3, 0, 1),
		NewUniformBSpline1D(2, 2, 0, 1),
	)
	var count int
	for it := tb.Elements(); it.Good(); it.Next() {
		lo, hi := it.Lower(), it.Upper()
		assert.True(t, hi.AtVec(0) > lo.AtVec(0))
		assert.True(t, hi.AtVec(1) > lo.AtVec(1))
		count++
	}
	assert.Equal(t, 6, count)
	assert.Equal(t, 6, tb.Elements().NumElements())

	// Boundary iterator pins the side coordinate
	count = 0
	for it := tb.BoundaryElements(East); it.Good(); it.Next() {
		assert.True(t, near(it.Lower().AtVec(0), 1.))
		assert.True(t, near(it.Upper().AtVec(0), 1.))
		count++
	}
	assert.Equal(t, 2, count)

	// Seek skips ahead
	it := tb.Elements()
	it.Seek(4)
	count = 0
	for ; it.Good(); it.Next() {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestMultiBasis(t *testing.T) {
	topo := &Topology{}
	topo.AddInterface(0, East, 1, West)
	mb := NewMultiBasis(topo,
		NewTensorBasis(NewUniformBSpline1D(2, 2, 0, 1), NewUniformBSpline1D(1, 2, 0, 1)),
		NewTensorBasis(NewUniformBSpline1D(2, 2, 1, 2), NewUniformBSpline1D(1, 2, 0, 1)),
	)
	assert.Equal(t, 2, mb.NumPatches())
	assert.Equal(t, 2, mb.Dim())
	assert.Equal(t, 1, mb.TargetDim())
	assert.Equal(t, 2, mb.MaxDegree(0))
	assert.Equal(t, 1, mb.MaxDegree(1))
	assert.Equal(t, 24, mb.NumBasisTotal()) // 2 * (4*3)
	require.Equal(t, 1, len(mb.Topology().Interfaces))

	// Mixed dimensions are rejected
	assert.Panics(t, func() {
		NewMultiBasis(&Topology{},
			NewTensorBasis(NewUniformBSpline1D(1, 1, 0, 1)),
			NewTensorBasis(NewUniformBSpline1D(1, 1, 0, 1), NewUniformBSpline1D(1, 1, 0, 1)),
		)
	})
}

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol float64
	)
	if len(tolI) == 0 {
		tol = 1.e-08
	} else {
		tol = tolI[0]
	}
	bound := math.Max(tol, tol*math.Abs(a))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
