package geometry

import (
	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/utils"
)

type BCKind int

const (
	Dirichlet BCKind = iota
	Neumann
)

// BCFunction samples a prescribed boundary value at a point.
type BCFunction func(x utils.Vector) float64

// ConstantBC wraps a constant prescribed value.
func ConstantBC(val float64) BCFunction {
	return func(utils.Vector) float64 { return val }
}

// BoundaryCondition ties a prescribed function to one side of one patch
// for one unknown/component.
type BoundaryCondition struct {
	Patch      int
	Side       basis.Side
	Kind       BCKind
	Unknown    int
	Component  int
	F          BCFunction
	Parametric bool // F takes parametric rather than physical coordinates
}

// BoundaryConditions is the container handed to space setup (Dirichlet
// elimination) and to boundary assembly (Neumann terms).
type BoundaryConditions struct {
	conds []BoundaryCondition
}

func (bc *BoundaryConditions) Add(c BoundaryCondition) {
	bc.conds = append(bc.conds, c)
}

func (bc *BoundaryConditions) AddDirichlet(patch int, s basis.Side, f BCFunction, unk ...int) {
	c := BoundaryCondition{Patch: patch, Side: s, Kind: Dirichlet, F: f}
	if len(unk) > 0 {
		c.Unknown = unk[0]
	}
	bc.conds = append(bc.conds, c)
}

func (bc *BoundaryConditions) AddNeumann(patch int, s basis.Side, f BCFunction, unk ...int) {
	c := BoundaryCondition{Patch: patch, Side: s, Kind: Neumann, F: f}
	if len(unk) > 0 {
		c.Unknown = unk[0]
	}
	bc.conds = append(bc.conds, c)
}

func (bc *BoundaryConditions) All() []BoundaryCondition {
	if bc == nil {
		return nil
	}
	return bc.conds
}

func (bc *BoundaryConditions) DirichletConds(unk int) (out []BoundaryCondition) {
	for _, c := range bc.All() {
		if c.Kind == Dirichlet && c.Unknown == unk {
			out = append(out, c)
		}
	}
	return
}

func (bc *BoundaryConditions) NeumannConds(unk int) (out []BoundaryCondition) {
	for _, c := range bc.All() {
		if c.Kind == Neumann && c.Unknown == unk {
			out = append(out, c)
		}
	}
	return
}
