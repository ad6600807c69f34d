package assembler

import (
	"fmt"
	"math"

	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/geometry"
	"github.com/notargets/galerkin/utils"
)

// CoeffFunction samples a scalar coefficient at a point (parametric or
// physical, depending on registration).
type CoeffFunction = geometry.BCFunction

// GeoMap is the handle for a registered geometry map. It owns no
// per-element data; the evaluation contexts cache Jacobians and values
// per element as flagged by Parse.
type GeoMap struct {
	mp *geometry.MultiPatch

	needJac  bool
	needVals bool
}

func (g *GeoMap) MultiPatch() *geometry.MultiPatch { return g.mp }

// Coeff is the handle for a registered coefficient function, optionally
// composed with a geometry map (evaluated at physical points).
type Coeff struct {
	f       CoeffFunction
	g       *GeoMap
	mutable bool // boundary function source, swapped per bc record

	need bool
}

// Solution represents a discrete function: a space plus a coefficient
// vector with the column structure of the system matrix.
type Solution struct {
	space *SpaceData
	coefs utils.Vector
}

// ExprHelper is the expression evaluation context registry: geometry
// maps, spaces, coefficients and the mutable boundary source live here.
// Parse records which of them need per-element precomputation; the
// per-worker EvalCtx instances do the actual caching.
type ExprHelper struct {
	mb     *basis.MultiBasis
	maps   []*GeoMap
	coeffs []*Coeff
	spaces []*SpaceData
	mut    *Coeff
}

func newExprHelper() (h *ExprHelper) {
	h = &ExprHelper{}
	h.mut = &Coeff{mutable: true}
	h.coeffs = append(h.coeffs, h.mut)
	return
}

func (h *ExprHelper) MultiBasis() *basis.MultiBasis { return h.mb }

func (h *ExprHelper) getMap(mp *geometry.MultiPatch) (g *GeoMap) {
	for _, g = range h.maps {
		if g.mp == mp {
			return
		}
	}
	g = &GeoMap{mp: mp}
	h.maps = append(h.maps, g)
	return
}

func (h *ExprHelper) getCoeff(f CoeffFunction, g *GeoMap) (c *Coeff) {
	c = &Coeff{f: f, g: g}
	h.coeffs = append(h.coeffs, c)
	return
}

// setMutSource updates the boundary function source before a boundary
// element loop.
func (h *ExprHelper) setMutSource(f CoeffFunction, parametric bool, g *GeoMap) {
	h.mut.f = f
	if parametric {
		h.mut.g = nil
	} else {
		h.mut.g = g
	}
}

// Parse inspects the expressions to assemble and records which handles
// need per-element precomputation. Runs once per assembly call, strictly
// before the parallel element loop; it is not safe against concurrent
// mutation.
func (h *ExprHelper) Parse(exprs ...Expr) {
	for _, sd := range h.spaces {
		sd.needVals, sd.needDerivs = false, false
	}
	for _, g := range h.maps {
		g.needJac, g.needVals = false, false
	}
	for _, c := range h.coeffs {
		c.need = false
	}
	for _, e := range exprs {
		if e != nil {
			e.parse(h)
		}
	}
}

// EvalCtx holds the per-worker cached element data: quadrature points
// and everything Parse flagged. One context per worker goroutine;
// nothing here is shared.
type EvalCtx struct {
	h     *ExprHelper
	patch int
	side  basis.Side // -1 outside boundary/interface assembly

	points  utils.Matrix
	weights utils.Vector

	spaceVals    map[*SpaceData]utils.Matrix
	spaceDerivs  map[*SpaceData][]utils.Matrix
	spaceActives map[*SpaceData]utils.Index
	mapJacs      map[*GeoMap][]utils.Matrix
	mapVals      map[*GeoMap]utils.Matrix
	measures     map[*GeoMap]utils.Vector
	coeffVals    map[*Coeff]utils.Vector

	iface *EvalCtx // mirror context for the second patch of an interface
}

func (h *ExprHelper) NewEvalCtx() (c *EvalCtx) {
	c = &EvalCtx{
		h:            h,
		side:         -1,
		spaceVals:    make(map[*SpaceData]utils.Matrix),
		spaceDerivs:  make(map[*SpaceData][]utils.Matrix),
		spaceActives: make(map[*SpaceData]utils.Index),
		mapJacs:      make(map[*GeoMap][]utils.Matrix),
		mapVals:      make(map[*GeoMap]utils.Matrix),
		measures:     make(map[*GeoMap]utils.Vector),
		coeffVals:    make(map[*Coeff]utils.Vector),
	}
	return
}

func (c *EvalCtx) SetPoints(points utils.Matrix, weights utils.Vector) {
	c.points, c.weights = points, weights
}

func (c *EvalCtx) SetSide(s basis.Side) { c.side = s }

func (c *EvalCtx) Iface() (m *EvalCtx) {
	if c.iface == nil {
		c.iface = c.h.NewEvalCtx()
	}
	return c.iface
}

func (c *EvalCtx) NumPoints() (n int) {
	if c.points.IsEmpty() {
		return 0
	}
	_, n = c.points.Dims()
	return
}

// Precompute evaluates and caches everything Parse flagged, for the
// current quadrature point set, on the given patch. Must run after the
// points are mapped to the element and before any expression is
// evaluated.
func (c *EvalCtx) Precompute(patch int) {
	c.patch = patch
	for _, sd := range c.h.spaces {
		switch {
		case sd.needDerivs:
			vals, derivs, act := sd.fs.Basis(patch).DerivActive(c.points)
			c.spaceVals[sd] = vals
			c.spaceDerivs[sd] = derivs
			c.spaceActives[sd] = act
		case sd.needVals:
			vals, act := sd.fs.Basis(patch).EvalActive(c.points)
			c.spaceVals[sd] = vals
			c.spaceActives[sd] = act
		}
	}
	for _, g := range c.h.maps {
		if g.needJac {
			jacs := g.mp.Patch(patch).Jacobians(c.points)
			c.mapJacs[g] = jacs
			c.measures[g] = c.computeMeasures(jacs)
		}
		if g.needVals {
			c.mapVals[g] = g.mp.Patch(patch).Eval(c.points)
		}
	}
	for _, cf := range c.h.coeffs {
		if !cf.need || cf.f == nil {
			continue
		}
		c.coeffVals[cf] = c.evalCoeff(cf)
	}
}

func (c *EvalCtx) computeMeasures(jacs []utils.Matrix) (meas utils.Vector) {
	meas = utils.NewVector(len(jacs))
	for k, J := range jacs {
		if c.side < 0 {
			meas.Set(k, math.Abs(J.Det()))
			continue
		}
		// Surface measure: Gram determinant over the tangential columns
		var (
			gd, dim = J.Dims()
			sdir    = c.side.Direction()
		)
		if dim == 1 {
			meas.Set(k, 1.)
			continue
		}
		Jt := utils.NewMatrix(gd, dim-1)
		col := 0
		for d := 0; d < dim; d++ {
			if d == sdir {
				continue
			}
			for i := 0; i < gd; i++ {
				Jt.Set(i, col, J.At(i, d))
			}
			col++
		}
		G := Jt.Transpose().Mul(Jt)
		meas.Set(k, math.Sqrt(G.Det()))
	}
	return
}

func (c *EvalCtx) evalCoeff(cf *Coeff) (vals utils.Vector) {
	var (
		n = c.NumPoints()
	)
	vals = utils.NewVector(n)
	for k := 0; k < n; k++ {
		x := c.evalPoint(cf.g, k)
		vals.Set(k, cf.f(x))
	}
	return
}

func (c *EvalCtx) evalPoint(g *GeoMap, k int) (x utils.Vector) {
	if g == nil {
		return c.points.Col(k)
	}
	mv, ok := c.mapVals[g]
	if !ok {
		mv = g.mp.Patch(c.patch).Eval(c.points)
		c.mapVals[g] = mv
	}
	return mv.Col(k)
}

// SolutionValue evaluates a discrete function at quadrature point k,
// reading free coefficients from the solution vector and eliminated
// ones from the space's fixed dofs.
func (c *EvalCtx) SolutionValue(sol *Solution, comp, k int) (val float64) {
	var (
		sd   = sol.space
		dm   = sd.mapper
		vals = c.spaceVals[sd]
		act  = c.spaceActives[sd]
	)
	if dm == nil || !dm.IsFinalized() {
		panic("solution evaluation requires a finalized space numbering")
	}
	for a, i := range act {
		gl := dm.Index(i, c.patch, comp)
		var cf float64
		if dm.IsFree(gl) {
			cf = sol.coefs.AtVec(gl)
		} else {
			cf = sd.fixedDofs.AtVec(dm.GlobalToBindex(gl))
		}
		val += cf * vals.At(a, k)
	}
	return
}

// mapInterfacePoints carries quadrature points from one side of a
// conforming interface to the matching side of the second patch. The
// tangential coordinates transfer by an affine range map in direction
// order; the normal coordinate pins to the second side's face.
func mapInterfacePoints(points utils.Matrix, s1, s2 basis.Side,
	b1, b2 basis.Basis) (out utils.Matrix) {
	var (
		dim, npts = points.Dims()
		lo1, up1  = b1.Support()
		lo2, up2  = b2.Support()
		d1s, d2s  []int
	)
	for d := 0; d < dim; d++ {
		if d != s1.Direction() {
			d1s = append(d1s, d)
		}
		if d != s2.Direction() {
			d2s = append(d2s, d)
		}
	}
	if len(d1s) != len(d2s) {
		panic(fmt.Errorf("interface sides %v and %v are not compatible", s1, s2))
	}
	out = utils.NewMatrix(dim, npts)
	var pin float64
	if s2.IsUpper() {
		pin = up2.AtVec(s2.Direction())
	} else {
		pin = lo2.AtVec(s2.Direction())
	}
	for k := 0; k < npts; k++ {
		out.Set(s2.Direction(), k, pin)
		for t := range d1s {
			var (
				a1, w1 = lo1.AtVec(d1s[t]), up1.AtVec(d1s[t]) - lo1.AtVec(d1s[t])
				a2, w2 = lo2.AtVec(d2s[t]), up2.AtVec(d2s[t]) - lo2.AtVec(d2s[t])
				rel    = (points.At(d1s[t], k) - a1) / w1
			)
			out.Set(d2s[t], k, a2+rel*w2)
		}
	}
	return
}
