package assembler

import (
	"fmt"

	"github.com/notargets/galerkin/utils"
)

// evaluator computes the quadrature-weighted local contribution of one
// expression on the current element and scatters it into its matrix/rhs
// targets. During parallel domain assembly each worker owns a private
// evaluator with private targets, merged afterwards; boundary and
// interface assembly aim one evaluator straight at the global system.
type evaluator struct {
	matrix   utils.DOK
	rhs      utils.Matrix
	ctx      *EvalCtx
	localMat utils.Matrix
}

func newEvaluator(matrix utils.DOK, rhs utils.Matrix, ctx *EvalCtx) (ee *evaluator) {
	return &evaluator{matrix: matrix, rhs: rhs, ctx: ctx}
}

// accumulate computes localMat = sum_k w_k * expr.Eval(k) over all
// quadrature points of the current element, classifies the expression
// and pushes the contribution.
func (ee *evaluator) accumulate(e Expr) {
	var (
		w = ee.ctx.weights
	)
	ee.localMat = e.Eval(ee.ctx, 0).Scale(w.AtVec(0))
	for k := 1; k < w.Len(); k++ {
		ee.localMat.AddScaled(e.Eval(ee.ctx, k), w.AtVec(k))
	}

	switch {
	case e.IsMatrix():
		ee.push(true, e.RowSpace(), e.ColSpace())
	case e.IsVector():
		ee.push(false, e.RowSpace(), e.RowSpace())
	default:
		panic("expression is neither matrix nor vector valued")
	}
}

// push scatters the local contribution. Eliminated test rows are
// skipped; eliminated trial columns move to the right-hand side with
// their prescribed values (symmetric Dirichlet treatment).
func (ee *evaluator) push(isMatrix bool, v, u *SpaceData) {
	if v == nil {
		panic("the row space is not valid")
	}
	if isMatrix && u == nil {
		panic("the column space is not valid")
	}
	if !isMatrix && ee.rhs.IsEmpty() && v.mapper.FreeSize() > 0 {
		panic("the right-hand side vector is not initialized")
	}

	var (
		rd        = v.dim
		rowMap    = v.mapper
		rowInd    = ee.ctx.spaceActives[v]
		patch     = ee.ctx.patch
		colMap    *DofMapper
		colInd    utils.Index
		cd        int
		fixedDofs utils.Vector
	)
	if isMatrix {
		cd = u.dim
		colMap = u.mapper
		colInd = ee.ctx.spaceActives[u]
		fixedDofs = u.fixedDofs

		lr, lc := ee.localMat.Dims()
		if lr != len(rowInd)*rd || lc != len(colInd)*cd {
			panic(fmt.Errorf("invalid local matrix: expected %dx%d, got %dx%d",
				len(rowInd)*rd, len(colInd)*cd, lr, lc))
		}
		if colMap.BoundarySize() > 0 {
			if fixedDofs.Len() != cd*colMap.BoundarySize() {
				panic("invalid values for fixed part")
			}
			if ee.rhs.IsEmpty() && rowMap.FreeSize() > 0 {
				panic("the right-hand side vector is not initialized")
			}
		}
	}

	for r := 0; r < rd; r++ {
		rls := r * len(rowInd) // local stride
		for i := 0; i < len(rowInd); i++ {
			ii := rowMap.Index(rowInd[i], patch, r)
			if !rowMap.IsFree(ii) {
				continue
			}
			if !isMatrix {
				ee.rhs.AddAt(ii, 0, ee.localMat.At(rls+i, 0))
				continue
			}
			for c := 0; c < cd; c++ {
				cls := c * len(colInd) // local stride
				for j := 0; j < len(colInd); j++ {
					val := ee.localMat.At(rls+i, cls+j)
					if val == 0 {
						continue
					}
					jj := colMap.Index(colInd[j], patch, c)
					if colMap.IsFree(jj) {
						ee.matrix.Add(ii, jj, val)
					} else {
						// Symmetric treatment of eliminated BCs
						ee.rhs.AddAt(ii, 0, -val*fixedDofs.AtVec(colMap.GlobalToBindex(jj)))
					}
				}
			}
		}
	}
}
