package assembler

import (
	"fmt"
	"sync"

	"github.com/james-bowman/sparse"

	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/geometry"
	"github.com/notargets/galerkin/quadrature"
	"github.com/notargets/galerkin/utils"
)

// ExprAssembler generates the global sparse matrix and right-hand side
// from symbolic variational-form expressions integrated over a
// multi-patch domain, its boundary sides, or its patch interfaces.
//
// Lifecycle: register maps/spaces/coefficients, InitSystem (finalizes
// the dof numbering and sizes the system), then one or more Assemble
// calls. The matrix and rhs are owned here and can be read by reference
// or moved out.
type ExprAssembler struct {
	h    *ExprHelper
	opts *Options

	matrix utils.DOK
	csr    *sparse.CSR
	rhs    utils.Matrix

	sdata []*SpaceData
	vrow  []*SpaceData
	vcol  []*SpaceData
}

// New creates an assembler for rBlocks test-space blocks and cBlocks
// trial-space blocks (both default to 1).
func New(blocks ...int) (a *ExprAssembler) {
	rB, cB := 1, 1
	if len(blocks) > 0 {
		rB = blocks[0]
	}
	if len(blocks) > 1 {
		cB = blocks[1]
	}
	a = &ExprAssembler{
		h:    newExprHelper(),
		opts: DefaultOptions(),
		vrow: make([]*SpaceData, rB),
		vcol: make([]*SpaceData, cB),
	}
	return
}

func (a *ExprAssembler) Options() *Options     { return a.opts }
func (a *ExprAssembler) SetOptions(o *Options) { a.opts = o }
func (a *ExprAssembler) ExprData() *ExprHelper { return a.h }

// SetIntegrationElements sets the discretization the element loops run
// over. Must be called before any computation is requested.
func (a *ExprAssembler) SetIntegrationElements(mb *basis.MultiBasis) {
	a.h.mb = mb
}

func (a *ExprAssembler) IntegrationElements() *basis.MultiBasis { return a.h.mb }

// GetMap registers a geometry map and returns a handle for use inside
// expressions.
func (a *ExprAssembler) GetMap(mp *geometry.MultiPatch) *GeoMap {
	return a.h.getMap(mp)
}

// GetSpace registers fs as a trial and test space with vector dimension
// dim under block id and returns its handle.
func (a *ExprAssembler) GetSpace(fs *basis.MultiBasis, dim int, id ...int) (s Space) {
	blockID := 0
	if len(id) > 0 {
		blockID = id[0]
	}
	if fs.TargetDim() != 1 {
		panic("expecting scalar source space")
	}
	if blockID < 0 || blockID >= len(a.vrow) || blockID >= len(a.vcol) {
		panic(fmt.Errorf("given id %d exceeds the block count", blockID))
	}
	sd := &SpaceData{fs: fs, dim: dim, id: blockID}
	a.sdata = append(a.sdata, sd)
	a.h.spaces = append(a.h.spaces, sd)
	a.vrow[blockID] = sd
	a.vcol[blockID] = sd
	return Space{data: sd}
}

// GetTestSpace registers a distinct test space for the trial space u
// (Petrov-Galerkin). The dimension defaults to u's.
func (a *ExprAssembler) GetTestSpace(u Space, fs *basis.MultiBasis, dim ...int) (s Space) {
	d := u.Dim()
	if len(dim) > 0 && dim[0] > 0 {
		d = dim[0]
	}
	if fs.TargetDim() != 1 {
		panic("expecting scalar source space")
	}
	sd := &SpaceData{fs: fs, dim: d, id: u.ID()}
	a.sdata = append(a.sdata, sd)
	a.h.spaces = append(a.h.spaces, sd)
	a.vrow[u.ID()] = sd
	return Space{data: sd}
}

// TrialSpace returns the registered trial space handle for unknown id.
func (a *ExprAssembler) TrialSpace(id int) Space {
	if a.vcol[id] == nil {
		panic(fmt.Errorf("trial space %d is not set", id))
	}
	return Space{data: a.vcol[id]}
}

// TestSpace returns the registered test space handle for unknown id.
func (a *ExprAssembler) TestSpace(id int) Space {
	if a.vrow[id] == nil {
		panic(fmt.Errorf("test space %d is not set", id))
	}
	return Space{data: a.vrow[id]}
}

// GetCoeff registers a coefficient function, optionally composed with a
// geometry map (then f takes physical coordinates).
func (a *ExprAssembler) GetCoeff(f CoeffFunction, g ...*GeoMap) *Coeff {
	var gm *GeoMap
	if len(g) > 0 {
		gm = g[0]
	}
	return a.h.getCoeff(f, gm)
}

// GetSolution wraps a coefficient vector with the column structure of
// the system matrix as a discrete function over space s.
func (a *ExprAssembler) GetSolution(s Space, coefs utils.Vector) *Solution {
	return &Solution{space: s.data, coefs: coefs}
}

// GetBdrFunction returns the mutable boundary function source, updated
// per record during boundary assembly.
func (a *ExprAssembler) GetBdrFunction() *Coeff { return a.h.mut }

// NumDofs is the trial-side total after initialization.
func (a *ExprAssembler) NumDofs() int {
	last := a.vcol[len(a.vcol)-1]
	if last == nil || last.mapper == nil || !last.mapper.IsFinalized() {
		panic("NumDofs: initSystem() has not been called")
	}
	return last.mapper.FirstIndex() + last.dim*last.mapper.FreeSize()
}

// NumTestDofs is the test-side total after initialization.
func (a *ExprAssembler) NumTestDofs() int {
	last := a.vrow[len(a.vrow)-1]
	if last == nil || last.mapper == nil || !last.mapper.IsFinalized() {
		panic("NumTestDofs: initSystem() has not been called")
	}
	return last.mapper.FirstIndex() + last.dim*last.mapper.FreeSize()
}

// NumBlocks sums the vector dimensions over all row blocks.
func (a *ExprAssembler) NumBlocks() (nb int) {
	for _, sd := range a.vrow {
		if sd != nil {
			nb += sd.dim
		}
	}
	return
}

// InitSystem initializes the sparse matrix and a single-column rhs.
// A zero-sized system keeps the rhs empty; assembly still proceeds.
func (a *ExprAssembler) InitSystem() {
	a.InitMatrix()
	if n := a.NumDofs(); n > 0 {
		a.rhs = utils.NewMatrix(n, 1)
	} else {
		a.rhs = utils.Matrix{}
	}
}

// InitMatrix finalizes the dof numbering and sizes the matrix only.
func (a *ExprAssembler) InitMatrix() {
	a.resetDimensions()
	rows, cols := a.NumTestDofs(), a.NumDofs()
	a.matrix = utils.NewDOK(rows, cols)
	a.csr = nil

	if rows == 0 || cols == 0 {
		fmt.Printf(" No internal DOFs, zero sized system.\n")
		return
	}
	nz := 1.
	dim := a.h.mb.Dim()
	for d := 0; d < dim; d++ {
		nz *= a.opts.BdA*float64(a.h.mb.MaxDegree(d)) + float64(a.opts.BdB)
	}
	a.matrix.Reserve(a.NumBlocks() * int(nz*(1.+a.opts.BdO)))
}

// InitVector finalizes the dof numbering and sizes the rhs only.
func (a *ExprAssembler) InitVector(numRhs int) {
	a.resetDimensions()
	if numRhs < 1 {
		numRhs = 1
	}
	if n := a.NumDofs(); n > 0 {
		a.rhs = utils.NewMatrix(n, numRhs)
	} else {
		a.rhs = utils.Matrix{}
	}
}

// Matrix returns the global matrix accumulator by reference.
func (a *ExprAssembler) Matrix() utils.DOK { return a.matrix }

// MatrixCSR returns the compressed matrix from the last Assemble call.
func (a *ExprAssembler) MatrixCSR() *sparse.CSR { return a.csr }

// Rhs returns the right-hand side by reference.
func (a *ExprAssembler) Rhs() utils.Matrix { return a.rhs }

// TakeMatrix moves the matrix out, leaving the internal copy empty.
func (a *ExprAssembler) TakeMatrix() (M utils.DOK) {
	M = a.matrix
	a.matrix = utils.DOK{}
	a.csr = nil
	return
}

// TakeRhs moves the rhs out, leaving the internal copy empty.
func (a *ExprAssembler) TakeRhs() (R utils.Matrix) {
	R = a.rhs
	a.rhs = utils.Matrix{}
	return
}

// resetDimensions builds any missing space mappers and lays the blocks
// out contiguously: block i starts at the previous block's first index
// plus dim*freeSize. Row and column blocks shift independently when
// they differ. Idempotent.
func (a *ExprAssembler) resetDimensions() {
	for _, sd := range a.sdata {
		if sd.mapper == nil {
			a.setupMapper(sd)
		}
	}
	for i := 1; i < len(a.vcol); i++ {
		if a.vcol[i] == nil {
			continue
		}
		prev := a.vcol[i-1]
		if prev == nil {
			panic(fmt.Errorf("trial space %d is not set", i-1))
		}
		a.vcol[i].mapper.SetShift(prev.mapper.FirstIndex() +
			prev.dim*prev.mapper.FreeSize())
		if i < len(a.vrow) && a.vrow[i] != nil && a.vrow[i] != a.vcol[i] {
			rprev := a.vrow[i-1]
			if rprev == nil {
				panic(fmt.Errorf("test space %d is not set", i-1))
			}
			a.vrow[i].mapper.SetShift(rprev.mapper.FirstIndex() +
				rprev.dim*rprev.mapper.FreeSize())
		}
	}
}

// setupMapper couples interface dofs, eliminates Dirichlet sides and
// finalizes the numbering for one space, then fills its fixed-dof
// values according to the DirichletValues option.
func (a *ExprAssembler) setupMapper(sd *SpaceData) {
	dm := NewDofMapper(sd.fs, sd.dim)
	topo := sd.fs.Topology()
	for _, ifc := range topo.Interfaces {
		I1 := sd.fs.Basis(ifc.First.Patch).Boundary(ifc.First.S)
		I2 := sd.fs.Basis(ifc.Second.Patch).Boundary(ifc.Second.S)
		dm.MatchDofs(ifc.First.Patch, I1, ifc.Second.Patch, I2)
	}
	for _, c := range sd.bc.DirichletConds(sd.id) {
		dm.MarkBoundary(c.Patch, sd.fs.Basis(c.Patch).Boundary(c.Side))
	}
	dm.Finalize()
	sd.mapper = dm
	a.computeFixedDofs(sd)
}

func (a *ExprAssembler) computeFixedDofs(sd *SpaceData) {
	var (
		dm = sd.mapper
		n  = sd.dim * dm.BoundarySize()
	)
	sd.fixedDofs = utils.NewVector(n)
	if n == 0 {
		return
	}
	switch a.opts.DirichletValues {
	case DirichletHomogeneous, DirichletUser:
		// zeros; user values arrive via SetFixedDofVector/SetFixedDofs
	case DirichletInterpolation, DirichletL2Projection:
		for _, c := range sd.bc.DirichletConds(sd.id) {
			if c.F == nil {
				continue
			}
			var (
				b    = sd.fs.Basis(c.Patch)
				bnd  = b.Boundary(c.Side)
				grev = b.Greville()
				dim  = b.Dim()
			)
			for _, i := range bnd {
				pt := utils.NewMatrix(dim, 1)
				for d := 0; d < dim; d++ {
					pt.Set(d, 0, grev.At(i, d))
				}
				x := pt.Col(0)
				if !c.Parametric && len(a.h.maps) > 0 {
					x = a.h.maps[0].mp.Patch(c.Patch).Eval(pt).Col(0)
				}
				sd.fixedDofs.Set(dm.Bindex(i, c.Patch, c.Component), c.F(x))
			}
		}
	default:
		panic(fmt.Errorf("unknown DirichletValues method %d", a.opts.DirichletValues))
	}
}

// SetFixedDofVector injects prescribed values for the eliminated dofs
// of unknown unk. The length must match dim*boundarySize.
func (a *ExprAssembler) SetFixedDofVector(vals utils.Vector, unk int) {
	sd := a.vcol[unk]
	if sd == nil || sd.mapper == nil || !sd.mapper.IsFinalized() {
		panic("SetFixedDofVector: initSystem() has not been called")
	}
	if vals.Len() != sd.dim*sd.mapper.BoundarySize() {
		panic("the Dirichlet DoFs were not provided correctly")
	}
	sd.fixedDofs = vals
}

// SetFixedDofs samples a geometry coefficient matrix at the boundary
// control points matching the Dirichlet records of unknown unk on one
// patch. Requires the user Dirichlet method.
func (a *ExprAssembler) SetFixedDofs(coefMatrix utils.Matrix, unk, patch int) {
	if a.opts.DirichletValues != DirichletUser {
		panic("SetFixedDofs requires DirichletValues = user")
	}
	sd := a.vcol[unk]
	if sd == nil || sd.mapper == nil || !sd.mapper.IsFinalized() {
		panic("SetFixedDofs: initSystem() has not been called")
	}
	if sd.fixedDofs.Len() != sd.dim*sd.mapper.BoundarySize() {
		panic("fixed DoFs were not initialized")
	}
	for _, c := range sd.bc.DirichletConds(unk) {
		if c.Patch != patch {
			continue
		}
		bnd := sd.fs.Basis(patch).Boundary(c.Side)
		for _, i := range bnd {
			bidx := sd.mapper.Bindex(i, patch, c.Component)
			sd.fixedDofs.Set(bidx, coefMatrix.At(i, c.Component))
		}
	}
}

func (a *ExprAssembler) checkInitialized() {
	if a.matrix.IsEmpty() || a.matrix.Cols() != a.NumDofs() {
		panic("system not initialized")
	}
}

func (a *ExprAssembler) firstMap() *GeoMap {
	if len(a.h.maps) > 0 {
		return a.h.maps[0]
	}
	return nil
}

// Assemble adds the expressions to the system as integrals over the
// whole domain. Within each patch the elements are divided across
// workers by interleaved striding; each worker scatters into private
// accumulators that are merged in a reduction pass, so no cell-level
// locking is needed.
func (a *ExprAssembler) Assemble(exprs ...Expr) {
	a.checkInitialized()
	a.h.Parse(exprs...)

	var (
		nw         = a.opts.Workers()
		rows, cols = a.matrix.Dims()
	)
	for p := 0; p < a.h.mb.NumPatches(); p++ {
		var (
			b       = a.h.mb.Basis(p)
			degs    = b.Degrees()
			workers = make([]*evaluator, nw)
			wg      sync.WaitGroup
		)
		for n := 0; n < nw; n++ {
			wg.Add(1)
			go func(tid int) {
				defer wg.Done()
				var (
					rule = quadrature.NewRuleForDegrees(degs, a.opts.QuA, a.opts.QuB)
					ctx  = a.h.NewEvalCtx()
					wrhs utils.Matrix
				)
				if !a.rhs.IsEmpty() {
					rr, rc := a.rhs.Dims()
					wrhs = utils.NewMatrix(rr, rc)
				}
				ee := newEvaluator(utils.NewDOK(rows, cols), wrhs, ctx)
				workers[tid] = ee

				cnt := 0
				for it := b.Elements(); it.Good(); it.Next() {
					if cnt%nw != tid {
						cnt++
						continue
					}
					cnt++
					points, weights := rule.MapTo(it.Lower(), it.Upper())
					if _, np := points.Dims(); np == 0 {
						continue
					}
					ctx.SetPoints(points, weights)
					ctx.Precompute(p)
					for _, e := range exprs {
						ee.accumulate(e)
					}
				}
			}(n)
		}
		wg.Wait()
		a.mergeWorkers(workers)
	}
	a.csr = a.matrix.ToCSR()
}

// mergeWorkers reduces the per-worker accumulators into the global
// system: matrix entries sequentially, rhs rows in parallel over
// disjoint row buckets.
func (a *ExprAssembler) mergeWorkers(workers []*evaluator) {
	for _, ee := range workers {
		if ee == nil {
			continue
		}
		a.matrix.Merge(ee.matrix)
	}
	if a.rhs.IsEmpty() {
		return
	}
	var (
		rr, rc = a.rhs.Dims()
		nw     = len(workers)
		pm     = utils.NewPartitionMap(nw, rr)
		wg     sync.WaitGroup
	)
	for n := 0; n < nw; n++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			rmin, rmax := pm.GetBucketRange(tid)
			for _, ee := range workers {
				if ee == nil || ee.rhs.IsEmpty() {
					continue
				}
				for i := rmin; i < rmax; i++ {
					for j := 0; j < rc; j++ {
						if v := ee.rhs.At(i, j); v != 0 {
							a.rhs.AddAt(i, j, v)
						}
					}
				}
			}
		}(n)
	}
	wg.Wait()
}

// AssembleBoundary adds the expressions as integrals over the boundary
// sides listed in conds, sequentially per record. The record's function
// becomes the boundary function source.
func (a *ExprAssembler) AssembleBoundary(conds []geometry.BoundaryCondition, exprs ...Expr) {
	a.checkInitialized()
	a.h.Parse(exprs...)

	var (
		ctx = a.h.NewEvalCtx()
		ee  = newEvaluator(a.matrix, a.rhs, ctx)
	)
	for _, c := range conds {
		var (
			b         = a.h.mb.Basis(c.Patch)
			sideCoord = -1.
		)
		if c.Side.IsUpper() {
			sideCoord = 1.
		}
		rule := quadrature.NewSideRuleForDegrees(b.Degrees(), a.opts.QuA,
			a.opts.QuB, c.Side.Direction(), sideCoord)
		a.h.setMutSource(c.F, c.Parametric, a.firstMap())
		ctx.SetSide(c.Side)

		for it := b.BoundaryElements(c.Side); it.Good(); it.Next() {
			points, weights := rule.MapTo(it.Lower(), it.Upper())
			if _, n := points.Dims(); n == 0 {
				continue
			}
			ctx.SetPoints(points, weights)
			ctx.Precompute(c.Patch)
			for _, e := range exprs {
				ee.accumulate(e)
			}
		}
		ctx.SetSide(-1)
	}
	a.csr = a.matrix.ToCSR()
}

// AssembleInterface adds the expressions as integrals over the listed
// patch interfaces, sequentially. Quadrature runs on the first side; the
// mirror context precomputes the matching points on the second patch.
func (a *ExprAssembler) AssembleInterface(ifaces []basis.Interface, exprs ...Expr) {
	a.checkInitialized()
	a.h.Parse(exprs...)

	var (
		ctx = a.h.NewEvalCtx()
		ee  = newEvaluator(a.matrix, a.rhs, ctx)
	)
	for _, fc := range ifaces {
		var (
			b1        = a.h.mb.Basis(fc.First.Patch)
			b2        = a.h.mb.Basis(fc.Second.Patch)
			sideCoord = -1.
		)
		if fc.First.S.IsUpper() {
			sideCoord = 1.
		}
		rule := quadrature.NewSideRuleForDegrees(b1.Degrees(), a.opts.QuA,
			a.opts.QuB, fc.First.S.Direction(), sideCoord)
		ctx.SetSide(fc.First.S)
		ctx.Iface().SetSide(fc.Second.S)

		for it := b1.BoundaryElements(fc.First.S); it.Good(); it.Next() {
			points, weights := rule.MapTo(it.Lower(), it.Upper())
			if _, n := points.Dims(); n == 0 {
				continue
			}
			ctx.SetPoints(points, weights)
			ctx.Precompute(fc.First.Patch)
			m := ctx.Iface()
			m.SetPoints(mapInterfacePoints(points, fc.First.S, fc.Second.S, b1, b2), weights)
			m.Precompute(fc.Second.Patch)
			for _, e := range exprs {
				ee.accumulate(e)
			}
		}
		ctx.SetSide(-1)
	}
	a.csr = a.matrix.ToCSR()
}
