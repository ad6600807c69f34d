package assembler

import (
	"fmt"

	"github.com/notargets/galerkin/utils"
)

// Expr is the closed evaluation interface for symbolic variational
// expressions. Eval returns the expression value at one quadrature point
// of the current element: a (rowSize x colSize) matrix for bilinear
// forms, a (rowSize x 1) column for linear forms, and 1x1 for scalar
// factors. Composite expressions delegate recursively.
type Expr interface {
	Eval(c *EvalCtx, k int) utils.Matrix
	IsMatrix() bool
	IsVector() bool
	RowSpace() *SpaceData
	ColSpace() *SpaceData
	parse(h *ExprHelper)
}

// scalarBase provides the no-space, no-classification answers shared by
// scalar-valued nodes.
type scalarBase struct{}

func (scalarBase) IsMatrix() bool       { return false }
func (scalarBase) IsVector() bool       { return false }
func (scalarBase) RowSpace() *SpaceData { return nil }
func (scalarBase) ColSpace() *SpaceData { return nil }

type constExpr struct {
	scalarBase
	v float64
}

// Const is a constant scalar factor.
func Const(v float64) Expr { return constExpr{v: v} }

func (e constExpr) Eval(c *EvalCtx, k int) utils.Matrix {
	return utils.NewMatrix(1, 1, []float64{e.v})
}
func (e constExpr) parse(h *ExprHelper) {}

// Coeff handles evaluate to their sampled value, so a registered
// coefficient is directly usable inside expressions.
func (cf *Coeff) Eval(c *EvalCtx, k int) utils.Matrix {
	return utils.NewMatrix(1, 1, []float64{c.coeffVals[cf].AtVec(k)})
}
func (cf *Coeff) IsMatrix() bool       { return false }
func (cf *Coeff) IsVector() bool       { return false }
func (cf *Coeff) RowSpace() *SpaceData { return nil }
func (cf *Coeff) ColSpace() *SpaceData { return nil }
func (cf *Coeff) parse(h *ExprHelper) {
	cf.need = true
	if cf.g != nil {
		cf.g.needVals = true
	}
}

// Solution handles evaluate to the discrete function value (component 0).
func (s *Solution) Eval(c *EvalCtx, k int) utils.Matrix {
	return utils.NewMatrix(1, 1, []float64{c.SolutionValue(s, 0, k)})
}
func (s *Solution) IsMatrix() bool       { return false }
func (s *Solution) IsVector() bool       { return false }
func (s *Solution) RowSpace() *SpaceData { return nil }
func (s *Solution) ColSpace() *SpaceData { return nil }
func (s *Solution) parse(h *ExprHelper)  { s.space.needVals = true }

type measExpr struct {
	scalarBase
	g *GeoMap
}

// Meas is the integration measure of a geometry map: |det J| inside the
// domain, the surface Gram measure on an active side.
func Meas(g *GeoMap) Expr { return measExpr{g: g} }

func (e measExpr) Eval(c *EvalCtx, k int) utils.Matrix {
	return utils.NewMatrix(1, 1, []float64{c.measures[e.g].AtVec(k)})
}
func (e measExpr) parse(h *ExprHelper) { e.g.needJac = true }

type massExpr struct {
	v, u *SpaceData
}

// Mass is the bilinear form N_i * N_j, componentwise block diagonal for
// vector-valued spaces.
func Mass(v, u Space) Expr {
	if !v.IsValid() || !u.IsValid() {
		panic("mass form needs valid row and column spaces")
	}
	if v.Dim() != u.Dim() {
		panic(fmt.Errorf("mass form dimension mismatch: %d != %d", v.Dim(), u.Dim()))
	}
	return massExpr{v: v.data, u: u.data}
}

func (e massExpr) IsMatrix() bool       { return true }
func (e massExpr) IsVector() bool       { return false }
func (e massExpr) RowSpace() *SpaceData { return e.v }
func (e massExpr) ColSpace() *SpaceData { return e.u }
func (e massExpr) parse(h *ExprHelper) {
	e.v.needVals = true
	e.u.needVals = true
}

func (e massExpr) Eval(c *EvalCtx, k int) (R utils.Matrix) {
	var (
		nv    = c.spaceVals[e.v]
		nu    = c.spaceVals[e.u]
		nr, _ = nv.Dims()
		nc, _ = nu.Dims()
		d     = e.v.dim
	)
	R = utils.NewMatrix(nr*d, nc*d)
	for r := 0; r < d; r++ {
		for i := 0; i < nr; i++ {
			vi := nv.At(i, k)
			if vi == 0 {
				continue
			}
			for j := 0; j < nc; j++ {
				R.Set(r*nr+i, r*nc+j, vi*nu.At(j, k))
			}
		}
	}
	return
}

type stiffExpr struct {
	v, u *SpaceData
	g    *GeoMap
}

// Stiffness is the bilinear form grad N_i . grad N_j, with physical
// gradients through the geometry map when one is given, parametric
// gradients otherwise. Componentwise block diagonal for vector spaces.
func Stiffness(v, u Space, g ...*GeoMap) Expr {
	if !v.IsValid() || !u.IsValid() {
		panic("stiffness form needs valid row and column spaces")
	}
	if v.Dim() != u.Dim() {
		panic(fmt.Errorf("stiffness form dimension mismatch: %d != %d", v.Dim(), u.Dim()))
	}
	e := stiffExpr{v: v.data, u: u.data}
	if len(g) > 0 {
		e.g = g[0]
	}
	return e
}

func (e stiffExpr) IsMatrix() bool       { return true }
func (e stiffExpr) IsVector() bool       { return false }
func (e stiffExpr) RowSpace() *SpaceData { return e.v }
func (e stiffExpr) ColSpace() *SpaceData { return e.u }
func (e stiffExpr) parse(h *ExprHelper) {
	e.v.needDerivs = true
	e.u.needDerivs = true
	if e.g != nil {
		e.g.needJac = true
	}
}

func (e stiffExpr) Eval(c *EvalCtx, k int) (R utils.Matrix) {
	var (
		dv    = c.spaceDerivs[e.v]
		du    = c.spaceDerivs[e.u]
		dim   = len(dv)
		nr, _ = dv[0].Dims()
		nc, _ = du[0].Dims()
		d     = e.v.dim
	)
	gv := physGrads(dv, c, e.g, k, nr, dim)
	var gu [][]float64
	if e.u == e.v {
		gu = gv
	} else {
		gu = physGrads(du, c, e.g, k, nc, dim)
	}
	R = utils.NewMatrix(nr*d, nc*d)
	for r := 0; r < d; r++ {
		for i := 0; i < nr; i++ {
			for j := 0; j < nc; j++ {
				var dot float64
				for t := 0; t < dim; t++ {
					dot += gv[i][t] * gu[j][t]
				}
				R.Set(r*nr+i, r*nc+j, dot)
			}
		}
	}
	return
}

// physGrads pulls parametric gradients back to physical space via
// J^{-T} when a map is present.
func physGrads(derivs []utils.Matrix, c *EvalCtx, g *GeoMap, k, n, dim int) (grads [][]float64) {
	grads = make([][]float64, n)
	var Jinv utils.Matrix
	if g != nil {
		Jinv = c.mapJacs[g][k].Inverse()
	}
	for i := 0; i < n; i++ {
		gp := make([]float64, dim)
		for t := 0; t < dim; t++ {
			gp[t] = derivs[t].At(i, k)
		}
		if g == nil {
			grads[i] = gp
			continue
		}
		gx := make([]float64, dim)
		for t := 0; t < dim; t++ {
			for s := 0; s < dim; s++ {
				gx[t] += Jinv.At(s, t) * gp[s]
			}
		}
		grads[i] = gx
	}
	return
}

type loadExpr struct {
	v *SpaceData
	f Expr
}

// Load is the linear form N_i * f with a scalar source expression f,
// broadcast over components for vector spaces.
func Load(v Space, f Expr) Expr {
	if !v.IsValid() {
		panic("load form needs a valid row space")
	}
	if f.IsMatrix() || f.IsVector() {
		panic("load form source must be scalar valued")
	}
	return loadExpr{v: v.data, f: f}
}

func (e loadExpr) IsMatrix() bool       { return false }
func (e loadExpr) IsVector() bool       { return true }
func (e loadExpr) RowSpace() *SpaceData { return e.v }
func (e loadExpr) ColSpace() *SpaceData { return nil }
func (e loadExpr) parse(h *ExprHelper) {
	e.v.needVals = true
	e.f.parse(h)
}

func (e loadExpr) Eval(c *EvalCtx, k int) (R utils.Matrix) {
	var (
		nv    = c.spaceVals[e.v]
		nr, _ = nv.Dims()
		d     = e.v.dim
		fval  = e.f.Eval(c, k).At(0, 0)
	)
	R = utils.NewMatrix(nr*d, 1)
	for r := 0; r < d; r++ {
		for i := 0; i < nr; i++ {
			R.Set(r*nr+i, 0, nv.At(i, k)*fval)
		}
	}
	return
}

type scaleExpr struct {
	a float64
	e Expr
}

// Scale multiplies an expression by a constant.
func Scale(a float64, e Expr) Expr { return scaleExpr{a: a, e: e} }

func (e scaleExpr) IsMatrix() bool       { return e.e.IsMatrix() }
func (e scaleExpr) IsVector() bool       { return e.e.IsVector() }
func (e scaleExpr) RowSpace() *SpaceData { return e.e.RowSpace() }
func (e scaleExpr) ColSpace() *SpaceData { return e.e.ColSpace() }
func (e scaleExpr) parse(h *ExprHelper)  { e.e.parse(h) }
func (e scaleExpr) Eval(c *EvalCtx, k int) utils.Matrix {
	return e.e.Eval(c, k).Scale(e.a)
}

type addExpr struct {
	a, b Expr
}

// Add sums two expressions of the same classification over the same
// row/column spaces.
func Add(a, b Expr) Expr {
	if a.IsMatrix() != b.IsMatrix() || a.IsVector() != b.IsVector() {
		panic("cannot add expressions of different kinds")
	}
	if a.RowSpace() != b.RowSpace() || a.ColSpace() != b.ColSpace() {
		panic("cannot add expressions over different spaces")
	}
	return addExpr{a: a, b: b}
}

func (e addExpr) IsMatrix() bool       { return e.a.IsMatrix() }
func (e addExpr) IsVector() bool       { return e.a.IsVector() }
func (e addExpr) RowSpace() *SpaceData { return e.a.RowSpace() }
func (e addExpr) ColSpace() *SpaceData { return e.a.ColSpace() }
func (e addExpr) parse(h *ExprHelper) {
	e.a.parse(h)
	e.b.parse(h)
}
func (e addExpr) Eval(c *EvalCtx, k int) utils.Matrix {
	return e.a.Eval(c, k).Add(e.b.Eval(c, k))
}

type mulExpr struct {
	s Expr // scalar factor
	e Expr
}

// Mul multiplies an expression by a scalar-valued expression, e.g. a
// coefficient or the integration measure.
func Mul(s, e Expr) Expr {
	if s.IsMatrix() || s.IsVector() {
		panic("first factor of Mul must be scalar valued")
	}
	return mulExpr{s: s, e: e}
}

func (e mulExpr) IsMatrix() bool       { return e.e.IsMatrix() }
func (e mulExpr) IsVector() bool       { return e.e.IsVector() }
func (e mulExpr) RowSpace() *SpaceData { return e.e.RowSpace() }
func (e mulExpr) ColSpace() *SpaceData { return e.e.ColSpace() }
func (e mulExpr) parse(h *ExprHelper) {
	e.s.parse(h)
	e.e.parse(h)
}
func (e mulExpr) Eval(c *EvalCtx, k int) utils.Matrix {
	return e.e.Eval(c, k).Scale(e.s.Eval(c, k).At(0, 0))
}
