package geometry

import (
	"fmt"

	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/utils"
)

// Patch is one geometry piece: a tensor basis plus control points
// (NumBasis x geoDim). Physical positions and Jacobians come from the
// basis values and derivatives contracted with the control points.
type Patch struct {
	Basis  basis.Basis
	Coefs  utils.Matrix
	geoDim int
}

func NewPatch(b basis.Basis, coefs utils.Matrix) (g *Patch) {
	var (
		nr, nc = coefs.Dims()
	)
	if nr != b.NumBasis() {
		panic(fmt.Errorf("control net has %d rows, basis has %d functions", nr, b.NumBasis()))
	}
	return &Patch{Basis: b, Coefs: coefs, geoDim: nc}
}

// NewIdentityPatch builds the geometry whose image equals the parameter
// box, using Greville abscissae as control points.
func NewIdentityPatch(b basis.Basis) (g *Patch) {
	return NewPatch(b, b.Greville())
}

// NewAffinePatch maps the parameter box linearly: x = origin + scale.*xi
// componentwise.
func NewAffinePatch(b basis.Basis, origin, scale utils.Vector) (g *Patch) {
	var (
		grev   = b.Greville()
		n, dim = grev.Dims()
	)
	coefs := utils.NewMatrix(n, dim)
	for i := 0; i < n; i++ {
		for d := 0; d < dim; d++ {
			coefs.Set(i, d, origin.AtVec(d)+scale.AtVec(d)*grev.At(i, d))
		}
	}
	return NewPatch(b, coefs)
}

func (g *Patch) GeoDim() int { return g.geoDim }

// Eval maps parametric points (dim x N) to physical space (geoDim x N).
func (g *Patch) Eval(points utils.Matrix) (X utils.Matrix) {
	var (
		_, npts         = points.Dims()
		values, actives = g.Basis.EvalActive(points)
	)
	X = utils.NewMatrix(g.geoDim, npts)
	for k := 0; k < npts; k++ {
		for a, i := range actives {
			v := values.At(a, k)
			for d := 0; d < g.geoDim; d++ {
				X.AddAt(d, k, v*g.Coefs.At(i, d))
			}
		}
	}
	return
}

// Jacobians returns one geoDim x dim Jacobian per point.
func (g *Patch) Jacobians(points utils.Matrix) (J []utils.Matrix) {
	var (
		dim                = g.Basis.Dim()
		_, npts            = points.Dims()
		_, derivs, actives = g.Basis.DerivActive(points)
	)
	J = make([]utils.Matrix, npts)
	for k := 0; k < npts; k++ {
		Jk := utils.NewMatrix(g.geoDim, dim)
		for a, i := range actives {
			for pd := 0; pd < dim; pd++ {
				dv := derivs[pd].At(a, k)
				for d := 0; d < g.geoDim; d++ {
					Jk.AddAt(d, pd, dv*g.Coefs.At(i, d))
				}
			}
		}
		J[k] = Jk
	}
	return
}

// MultiPatch is a collection of geometry patches over the same
// parametric dimension.
type MultiPatch struct {
	Patches []*Patch
}

func NewMultiPatch(patches ...*Patch) (mp *MultiPatch) {
	if len(patches) == 0 {
		panic("multipatch needs at least one patch")
	}
	gd := patches[0].GeoDim()
	for p, g := range patches {
		if g.GeoDim() != gd {
			panic(fmt.Errorf("patch %d has geoDim %d, expected %d", p, g.GeoDim(), gd))
		}
	}
	return &MultiPatch{Patches: patches}
}

func (mp *MultiPatch) NumPatches() int    { return len(mp.Patches) }
func (mp *MultiPatch) Patch(p int) *Patch { return mp.Patches[p] }
func (mp *MultiPatch) GeoDim() int        { return mp.Patches[0].GeoDim() }
