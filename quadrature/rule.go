package quadrature

import (
	"fmt"

	"github.com/notargets/galerkin/utils"
)

// Rule is a tensor product Gauss-Legendre rule over the reference cube
// [-1,1]^d. A direction may be pinned to a single fixed coordinate, which
// is how boundary and interface rules collapse the side-normal direction.
type Rule struct {
	Dim     int
	nodes   []utils.Vector // per direction reference nodes
	weights []utils.Vector // per direction reference weights
	pinned  []bool         // pinned directions carry no measure factor
}

// NewRule builds a tensor rule with npts[d] points in direction d.
func NewRule(npts []int) (q *Rule) {
	q = &Rule{
		Dim:     len(npts),
		nodes:   make([]utils.Vector, len(npts)),
		weights: make([]utils.Vector, len(npts)),
		pinned:  make([]bool, len(npts)),
	}
	for d, n := range npts {
		q.nodes[d], q.weights[d] = GaussLegendre(n)
	}
	return
}

// NewRuleForDegrees sizes each direction by the quA*degree+quB rule.
func NewRuleForDegrees(degrees []int, quA float64, quB int) (q *Rule) {
	npts := make([]int, len(degrees))
	for d, deg := range degrees {
		npts[d] = PointCount(deg, quA, quB)
	}
	return NewRule(npts)
}

// NewSideRuleForDegrees is the boundary variant: the side-normal
// direction fixedDir is pinned to the single reference coordinate
// sideCoord (-1 or +1).
func NewSideRuleForDegrees(degrees []int, quA float64, quB int,
	fixedDir int, sideCoord float64) (q *Rule) {
	if fixedDir < 0 || fixedDir >= len(degrees) {
		panic(fmt.Errorf("side rule: fixed direction %d out of range for dim %d", fixedDir, len(degrees)))
	}
	npts := make([]int, len(degrees))
	for d, deg := range degrees {
		npts[d] = PointCount(deg, quA, quB)
	}
	npts[fixedDir] = 1
	q = NewRule(npts)
	q.pinned[fixedDir] = true
	q.nodes[fixedDir].Set(0, sideCoord)
	q.weights[fixedDir].Set(0, 1.)
	return
}

// NumPoints is the total tensor point count.
func (q *Rule) NumPoints() (n int) {
	n = 1
	for _, nd := range q.nodes {
		n *= nd.Len()
	}
	return
}

// MapTo maps the reference rule to the element box [lower,upper],
// producing physical-parameter points (Dim x N, column per point) and
// weights scaled by the box measure over the unpinned directions. A box
// with nonpositive width in any unpinned direction yields an empty point
// set: degenerate elements contribute nothing and are skipped by the
// caller.
func (q *Rule) MapTo(lower, upper utils.Vector) (points utils.Matrix, weights utils.Vector) {
	var (
		n     = q.NumPoints()
		scale = 1.
	)
	for d := 0; d < q.Dim; d++ {
		if q.pinned[d] {
			continue
		}
		width := upper.AtVec(d) - lower.AtVec(d)
		if width <= 0 {
			return utils.NewMatrix(q.Dim, 0), utils.NewVector(0)
		}
		scale *= 0.5 * width
	}

	points = utils.NewMatrix(q.Dim, n)
	weights = utils.NewVector(n)
	// Odometer walk over the tensor grid, first direction fastest
	idx := make([]int, q.Dim)
	for k := 0; k < n; k++ {
		w := scale
		for d := 0; d < q.Dim; d++ {
			var x float64
			if q.pinned[d] {
				// Pinned coordinate maps to the matching box face
				if q.nodes[d].AtVec(0) > 0 {
					x = upper.AtVec(d)
				} else {
					x = lower.AtVec(d)
				}
			} else {
				x = lower.AtVec(d) + 0.5*(q.nodes[d].AtVec(idx[d])+1.)*
					(upper.AtVec(d)-lower.AtVec(d))
			}
			points.Set(d, k, x)
			w *= q.weights[d].AtVec(idx[d])
		}
		weights.Set(k, w)
		for d := 0; d < q.Dim; d++ {
			idx[d]++
			if idx[d] < q.nodes[d].Len() {
				break
			}
			idx[d] = 0
		}
	}
	return
}
