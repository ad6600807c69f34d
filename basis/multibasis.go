package basis

import "fmt"

// MultiBasis is the per-patch basis container for a multi-patch domain.
// It owns one Basis per patch plus the box topology connecting them, and
// answers the patch-wide queries (max degree) the assembler needs for
// quadrature sizing and sparsity estimates.
type MultiBasis struct {
	bases []Basis
	topo  *Topology
}

func NewMultiBasis(topo *Topology, bases ...Basis) (mb *MultiBasis) {
	if len(bases) == 0 {
		panic("multibasis needs at least one patch")
	}
	dim := bases[0].Dim()
	for p, b := range bases {
		if b.Dim() != dim {
			panic(fmt.Errorf("patch %d has dimension %d, expected %d", p, b.Dim(), dim))
		}
	}
	if topo == nil {
		topo = &Topology{}
	}
	return &MultiBasis{bases: bases, topo: topo}
}

func (mb *MultiBasis) NumPatches() int     { return len(mb.bases) }
func (mb *MultiBasis) Basis(p int) Basis   { return mb.bases[p] }
func (mb *MultiBasis) Dim() int            { return mb.bases[0].Dim() }
func (mb *MultiBasis) Topology() *Topology { return mb.topo }

// TargetDim is 1: the container holds scalar-valued bases. Vector
// unknowns are built by the assembler as components over a scalar basis.
func (mb *MultiBasis) TargetDim() int { return 1 }

func (mb *MultiBasis) MaxDegree(dir int) (deg int) {
	for _, b := range mb.bases {
		if b.Degree(dir) > deg {
			deg = b.Degree(dir)
		}
	}
	return
}

// NumBasisTotal sums basis counts over all patches.
func (mb *MultiBasis) NumBasisTotal() (n int) {
	for _, b := range mb.bases {
		n += b.NumBasis()
	}
	return
}
