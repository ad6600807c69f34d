package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/geometry"
	"github.com/notargets/galerkin/utils"
)

func TestBlockLayout(t *testing.T) {
	var (
		a   = New(2, 2)
		mb0 = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1)) // 2 dofs
		mb1 = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1)) // 3 dofs
	)
	a.SetIntegrationElements(mb0)
	a.GetSpace(mb0, 1, 0)
	a.GetSpace(mb1, 1, 1)
	a.InitSystem()

	assert.Equal(t, 5, a.NumDofs())
	assert.Equal(t, 5, a.NumTestDofs())
	assert.Equal(t, 2, a.NumBlocks())
	assert.Equal(t, 0, a.TrialSpace(0).Mapper().FirstIndex())
	assert.Equal(t, 2, a.TrialSpace(1).Mapper().FirstIndex())

	assert.Panics(t, func() { a.GetSpace(mb0, 1, 2) })
}

func TestBlockGapPanics(t *testing.T) {
	// Block ids must be contiguous: a hole in the layout is reported,
	// not dereferenced
	var (
		a  = New(3, 3)
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	)
	a.SetIntegrationElements(mb)
	a.GetSpace(mb, 1, 0)
	a.GetSpace(mb, 1, 2)
	assert.PanicsWithError(t, "trial space 1 is not set", func() { a.InitSystem() })
}

func TestNumDofsBeforeInit(t *testing.T) {
	a := New()
	mb := basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	assert.Panics(t, func() { a.NumDofs() })
	assert.Panics(t, func() { a.Assemble(Mass(v, v)) })
}

func TestMassMatrix1D(t *testing.T) {
	// Single linear element on [0,1]: M = [1/3 1/6; 1/6 1/3]
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	)
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()
	require.Equal(t, 2, a.NumDofs())

	a.Assemble(Mass(v, v))
	M := a.Matrix()
	assert.True(t, near(M.At(0, 0), 1./3.))
	assert.True(t, near(M.At(0, 1), 1./6.))
	assert.True(t, near(M.At(1, 0), 1./6.))
	assert.True(t, near(M.At(1, 1), 1./3.))
	require.NotNil(t, a.MatrixCSR())
	assert.True(t, near(a.MatrixCSR().At(0, 1), 1./6.))
}

func TestLoadVector1D(t *testing.T) {
	// Three hat functions on [0,1], h = 1/2: integrals are h/2, h, h/2
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1))
	)
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()

	a.Assemble(Load(v, Const(1)))
	r := a.Rhs()
	assert.True(t, near(r.At(0, 0), 0.25))
	assert.True(t, near(r.At(1, 0), 0.5))
	assert.True(t, near(r.At(2, 0), 0.25))
}

func TestDirichletElimination(t *testing.T) {
	// -u'' on [0,1], two linear elements, u(0) = 2 eliminated
	// symmetrically: free system K = [4 -2; -2 2], rhs = [4, 0]
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1))
		bc = &geometry.BoundaryConditions{}
	)
	bc.AddDirichlet(0, basis.West, geometry.ConstantBC(2))
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	v.Setup(bc)
	a.InitSystem()
	require.Equal(t, 2, a.NumDofs())
	require.Equal(t, 1, v.Mapper().BoundarySize())
	assert.True(t, near(v.FixedPart().AtVec(0), 2.))

	a.Assemble(Stiffness(v, v))
	var (
		K = a.Matrix()
		r = a.Rhs()
	)
	assert.True(t, near(K.At(0, 0), 4.))
	assert.True(t, near(K.At(0, 1), -2.))
	assert.True(t, near(K.At(1, 0), -2.))
	assert.True(t, near(K.At(1, 1), 2.))
	assert.True(t, near(r.At(0, 0), 4.))
	assert.True(t, near(r.At(1, 0), 0.))
}

func TestDirichletUserValues(t *testing.T) {
	// Same elimination with user supplied fixed values
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1))
		bc = &geometry.BoundaryConditions{}
	)
	bc.AddDirichlet(0, basis.West, nil)
	a.Options().DirichletValues = DirichletUser
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	v.Setup(bc)
	a.InitSystem()

	assert.Panics(t, func() { a.SetFixedDofVector(utils.NewVector(3), 0) })
	a.SetFixedDofVector(utils.NewVector(1, []float64{2}), 0)

	a.Assemble(Stiffness(v, v))
	assert.True(t, near(a.Rhs().At(0, 0), 4.))
	assert.True(t, near(a.Matrix().At(0, 0), 4.))
}

func TestZeroSizedSystem(t *testing.T) {
	// Single linear element with both ends eliminated leaves no free
	// dofs: initialization warns, assembly runs on the empty system
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
		bc = &geometry.BoundaryConditions{}
	)
	bc.AddDirichlet(0, basis.West, geometry.ConstantBC(1))
	bc.AddDirichlet(0, basis.East, geometry.ConstantBC(1))
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	v.Setup(bc)

	require.NotPanics(t, func() { a.InitSystem() })
	assert.Equal(t, 0, a.NumDofs())
	assert.Equal(t, 2, v.Mapper().BoundarySize())
	assert.True(t, a.Rhs().IsEmpty())
	require.NotPanics(t, func() { a.InitVector(1) })
	assert.True(t, a.Rhs().IsEmpty())

	require.NotPanics(t, func() { a.Assemble(Mass(v, v), Load(v, Const(1))) })
	assert.Equal(t, 0, a.Matrix().NNZ())
}

func TestBoundaryAssembly(t *testing.T) {
	// Neumann load on the east end adds f at the endpoint dof
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1))
		bc = &geometry.BoundaryConditions{}
	)
	bc.AddNeumann(0, basis.East, geometry.ConstantBC(3))
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()

	a.AssembleBoundary(bc.NeumannConds(0), Load(v, a.GetBdrFunction()))
	r := a.Rhs()
	assert.True(t, near(r.At(0, 0), 0.))
	assert.True(t, near(r.At(1, 0), 0.))
	assert.True(t, near(r.At(2, 0), 3.))
}

func TestInterfaceCoupling(t *testing.T) {
	// Two linear patches sharing one endpoint: 2+2 local dofs couple to
	// 3 globals, and the total mass equals the parametric length
	var (
		a    = New()
		topo = &basis.Topology{}
	)
	topo.AddInterface(0, basis.East, 1, basis.West)
	mb := basis.NewMultiBasis(topo, line(1, 1, 0, 1), line(1, 1, 1, 2))
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()
	require.Equal(t, 3, a.NumDofs())

	a.Assemble(Mass(v, v))
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += a.Matrix().At(i, j)
		}
	}
	assert.True(t, near(sum, 2.))
	// The shared dof accumulates mass from both patches
	shared := v.Mapper().Index(1, 0, 0)
	assert.Equal(t, shared, v.Mapper().Index(0, 1, 0))
	assert.True(t, near(a.Matrix().At(shared, shared), 2./3.))
}

func TestStiffness2DRowSums(t *testing.T) {
	// Gradients of a partition of unity sum to zero, so every row of a
	// pure Neumann stiffness matrix sums to zero
	var (
		a  = New()
		tb = basis.NewTensorBasis(
			basis.NewUniformBSpline1D(2, 2, 0, 1),
			basis.NewUniformBSpline1D(2, 2, 0, 1),
		)
		mb = basis.NewMultiBasis(&basis.Topology{}, tb)
	)
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()
	a.Assemble(Stiffness(v, v))

	n := a.NumDofs()
	require.Equal(t, 16, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += a.Matrix().At(i, j)
		}
		assert.True(t, near(sum, 0., 1.e-10))
	}
	// Symmetry
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			assert.True(t, near(a.Matrix().At(i, j), a.Matrix().At(j, i), 1.e-12))
		}
	}
}

func TestStiffnessWithGeometryMap(t *testing.T) {
	// Stretching the domain by 2 scales a 1D stiffness matrix by 1/2
	// once gradients and measure are physical
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
		mp = geometry.NewMultiPatch(geometry.NewAffinePatch(
			mb.Basis(0), utils.NewVector(1), utils.NewVector(1, []float64{2})))
	)
	a.SetIntegrationElements(mb)
	var (
		G = a.GetMap(mp)
		v = a.GetSpace(mb, 1)
	)
	a.InitSystem()
	a.Assemble(Mul(Meas(G), Stiffness(v, v, G)))

	// Parametric value would be 1; physical is (1/2)^2 * 2 = 1/2
	assert.True(t, near(a.Matrix().At(0, 0), 0.5))
	assert.True(t, near(a.Matrix().At(0, 1), -0.5))
}

func TestSolutionInExpression(t *testing.T) {
	// A discrete function with unit coefficients is the constant 1
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	)
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()
	sol := a.GetSolution(v, utils.NewVector(2, []float64{1, 1}))

	a.Assemble(Load(v, sol))
	assert.True(t, near(a.Rhs().At(0, 0), 0.5))
	assert.True(t, near(a.Rhs().At(1, 0), 0.5))
}

func TestCoefficientLoad(t *testing.T) {
	// rhs_i = int N_i(x) * x over [0,1], one linear element: 1/6, 1/3
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	)
	a.SetIntegrationElements(mb)
	var (
		v = a.GetSpace(mb, 1)
		f = a.GetCoeff(func(x utils.Vector) float64 { return x.AtVec(0) })
	)
	a.InitSystem()
	a.Assemble(Load(v, f))
	assert.True(t, near(a.Rhs().At(0, 0), 1./6.))
	assert.True(t, near(a.Rhs().At(1, 0), 1./3.))
}

func TestParallelMatchesSequential(t *testing.T) {
	build := func(workers int) *ExprAssembler {
		a := New()
		a.Options().Parallel = workers
		tb := basis.NewTensorBasis(
			basis.NewUniformBSpline1D(2, 3, 0, 1),
			basis.NewUniformBSpline1D(2, 3, 0, 1),
		)
		mb := basis.NewMultiBasis(&basis.Topology{}, tb)
		a.SetIntegrationElements(mb)
		v := a.GetSpace(mb, 1)
		a.InitSystem()
		a.Assemble(Add(Mass(v, v), Stiffness(v, v)), Load(v, Const(1)))
		return a
	}
	var (
		seq = build(1)
		par = build(4)
		n   = seq.NumDofs()
	)
	require.Equal(t, n, par.NumDofs())
	for i := 0; i < n; i++ {
		assert.True(t, near(seq.Rhs().At(i, 0), par.Rhs().At(i, 0), 1.e-12))
		for j := 0; j < n; j++ {
			assert.True(t, near(seq.Matrix().At(i, j), par.Matrix().At(i, j), 1.e-12))
		}
	}
}

func TestTakeSystem(t *testing.T) {
	var (
		a  = New()
		mb = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
	)
	a.SetIntegrationElements(mb)
	v := a.GetSpace(mb, 1)
	a.InitSystem()
	a.Assemble(Mass(v, v))

	M := a.TakeMatrix()
	assert.False(t, M.IsEmpty())
	assert.True(t, a.Matrix().IsEmpty())
	r := a.TakeRhs()
	assert.False(t, r.IsEmpty())
	assert.True(t, a.Rhs().IsEmpty())
}

func TestExprValidation(t *testing.T) {
	var (
		a   = New(2, 2)
		mb0 = basis.NewMultiBasis(&basis.Topology{}, line(1, 1, 0, 1))
		mb1 = basis.NewMultiBasis(&basis.Topology{}, line(1, 2, 0, 1))
	)
	a.SetIntegrationElements(mb0)
	var (
		v = a.GetSpace(mb0, 1, 0)
		w = a.GetSpace(mb1, 1, 1)
	)
	assert.Panics(t, func() { Load(v, Mass(v, v)) })
	assert.Panics(t, func() { Add(Mass(v, v), Load(v, Const(1))) })
	assert.Panics(t, func() { Add(Mass(v, v), Mass(w, w)) })
	assert.Panics(t, func() { Mul(Mass(v, v), Mass(v, v)) })
	assert.Panics(t, func() { Mass(v, Space{}) })
}
