package assembler

import (
	"fmt"

	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/utils"
)

// DofMapper numbers the scalar degrees of freedom of one space over a
// multi-patch basis. Local dofs may be coupled across patch interfaces
// (they share one global index) or eliminated (Dirichlet). After
// Finalize, free scalar indices occupy [0,freeSize) and eliminated ones
// follow. Vector-valued spaces stride the scalar numbering per
// component, and a shift lays multiple spaces out contiguously in one
// global vector.
type DofMapper struct {
	offsets    []int // per patch offset into the flat local numbering
	total      int
	dim        int
	parent     []int // union-find over flat local dofs
	groupSize  []int
	eliminated []bool
	mapping    []int // flat local -> scalar index; boundary stored as freeSize+bindex
	freeSize   int
	bndSize    int
	coupled    int
	shift      int
	finalized  bool
}

func NewDofMapper(mb *basis.MultiBasis, dim int) (dm *DofMapper) {
	if dim < 1 {
		panic("space dimension must be at least 1")
	}
	dm = &DofMapper{
		offsets: make([]int, mb.NumPatches()),
		dim:     dim,
	}
	for p := 0; p < mb.NumPatches(); p++ {
		dm.offsets[p] = dm.total
		dm.total += mb.Basis(p).NumBasis()
	}
	dm.parent = make([]int, dm.total)
	dm.groupSize = make([]int, dm.total)
	for i := range dm.parent {
		dm.parent[i] = i
		dm.groupSize[i] = 1
	}
	dm.eliminated = make([]bool, dm.total)
	return
}

func (dm *DofMapper) find(x int) int {
	for dm.parent[x] != x {
		dm.parent[x] = dm.parent[dm.parent[x]]
		x = dm.parent[x]
	}
	return x
}

func (dm *DofMapper) union(a, b int) {
	ra, rb := dm.find(a), dm.find(b)
	if ra == rb {
		return
	}
	if dm.groupSize[ra] < dm.groupSize[rb] {
		ra, rb = rb, ra
	}
	dm.parent[rb] = ra
	dm.groupSize[ra] += dm.groupSize[rb]
	dm.eliminated[ra] = dm.eliminated[ra] || dm.eliminated[rb]
}

func (dm *DofMapper) local(i, patch int) int {
	return dm.offsets[patch] + i
}

// MatchDofs couples the dofs listed in I1 on patch p1 with those in I2
// on patch p2, pairwise in order.
func (dm *DofMapper) MatchDofs(p1 int, I1 utils.Index, p2 int, I2 utils.Index) {
	dm.checkMutable()
	if len(I1) != len(I2) {
		panic(fmt.Errorf("cannot match %d dofs against %d", len(I1), len(I2)))
	}
	for k := range I1 {
		dm.union(dm.local(I1[k], p1), dm.local(I2[k], p2))
	}
}

// MarkBoundary eliminates the listed dofs of a patch. An eliminated dof
// drags its whole coupled group out of the solved system.
func (dm *DofMapper) MarkBoundary(patch int, I utils.Index) {
	dm.checkMutable()
	for _, i := range I {
		r := dm.find(dm.local(i, patch))
		dm.eliminated[r] = true
	}
}

func (dm *DofMapper) checkMutable() {
	if dm.finalized {
		panic("mapper numbering is already finalized")
	}
}

// Finalize computes the scalar numbering. Idempotent.
func (dm *DofMapper) Finalize() {
	if dm.finalized {
		return
	}
	var (
		groupIdx = make(map[int]int, dm.total)
		isBnd    = make(map[int]bool, dm.total)
		nFree    int
		nBnd     int
	)
	for l := 0; l < dm.total; l++ {
		r := dm.find(l)
		if _, done := groupIdx[r]; done {
			continue
		}
		if dm.eliminated[r] {
			groupIdx[r] = nBnd
			isBnd[r] = true
			nBnd++
		} else {
			groupIdx[r] = nFree
			if dm.groupSize[r] > 1 {
				dm.coupled++
			}
			nFree++
		}
	}
	dm.freeSize, dm.bndSize = nFree, nBnd
	dm.mapping = make([]int, dm.total)
	for l := 0; l < dm.total; l++ {
		r := dm.find(l)
		if isBnd[r] {
			dm.mapping[l] = nFree + groupIdx[r]
		} else {
			dm.mapping[l] = groupIdx[r]
		}
	}
	dm.finalized = true
}

func (dm *DofMapper) IsFinalized() bool { return dm.finalized }

func (dm *DofMapper) checkFinalized() {
	if !dm.finalized {
		panic("mapper numbering has not been finalized")
	}
}

func (dm *DofMapper) SetShift(s int) { dm.shift = s }

func (dm *DofMapper) FirstIndex() int { return dm.shift }

func (dm *DofMapper) FreeSize() int     { dm.checkFinalized(); return dm.freeSize }
func (dm *DofMapper) BoundarySize() int { dm.checkFinalized(); return dm.bndSize }
func (dm *DofMapper) CoupledSize() int  { dm.checkFinalized(); return dm.coupled }
func (dm *DofMapper) Dim() int          { return dm.dim }

// Index maps (local basis index, patch, component) to the global index.
// Free indices land in [shift, shift+dim*freeSize); eliminated ones
// after them.
func (dm *DofMapper) Index(i, patch, comp int) (gl int) {
	dm.checkFinalized()
	s := dm.mapping[dm.local(i, patch)]
	if s < dm.freeSize {
		return dm.shift + comp*dm.freeSize + s
	}
	return dm.shift + dm.dim*dm.freeSize + comp*dm.bndSize + (s - dm.freeSize)
}

// IsFree reports whether a global index produced by this mapper refers
// to a solved-for dof.
func (dm *DofMapper) IsFree(gl int) bool {
	dm.checkFinalized()
	return gl >= dm.shift && gl < dm.shift+dm.dim*dm.freeSize
}

// GlobalToBindex converts an eliminated global index to its position in
// the fixed-dof value vector.
func (dm *DofMapper) GlobalToBindex(gl int) (b int) {
	dm.checkFinalized()
	b = gl - dm.shift - dm.dim*dm.freeSize
	if b < 0 || b >= dm.dim*dm.bndSize {
		panic(fmt.Errorf("global index %d is not an eliminated dof of this mapper", gl))
	}
	return
}

// Bindex is the fixed-dof vector position of an eliminated local dof.
func (dm *DofMapper) Bindex(i, patch, comp int) (b int) {
	dm.checkFinalized()
	s := dm.mapping[dm.local(i, patch)]
	if s < dm.freeSize {
		panic(fmt.Errorf("local dof %d on patch %d is free, not eliminated", i, patch))
	}
	return comp*dm.bndSize + (s - dm.freeSize)
}
