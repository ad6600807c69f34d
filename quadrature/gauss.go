package quadrature

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/galerkin/utils"
)

// GaussLegendre computes the N point Gauss-Legendre quadrature nodes and
// weights on [-1,1] using the Golub-Welsch algorithm: the nodes are the
// eigenvalues of the symmetric tridiagonal Jacobi matrix of the Legendre
// recurrence, the weights come from the first components of the
// eigenvectors.
func GaussLegendre(N int) (X, W utils.Vector) {
	var (
		x, w []float64
		d1   []float64
	)
	if N < 1 {
		panic("GaussLegendre: need at least one point")
	}
	if N == 1 {
		x = []float64{0.}
		w = []float64{2.}
		return utils.NewVector(len(x), x), utils.NewVector(len(w), w)
	}

	// Legendre (alpha=beta=0): main diagonal is zero, 1st upper diagonal:
	// d1(i) = (i+1) / sqrt((2i+1)(2i+3))
	d1 = make([]float64, N-1)
	for i := 0; i < N-1; i++ {
		ip1 := float64(i + 1)
		d1[i] = ip1 / math.Sqrt((2.*ip1-1.)*(2.*ip1+1.))
	}

	JJ := newSymTriDiagonal(make([]float64, N), d1)

	var eig mat.EigenSym
	ok := eig.Factorize(JJ, true)
	if !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(x)
	X = utils.NewVector(N, x)

	VVr := mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(VVr)
	// gamma0 for the unit weight on [-1,1] is 2
	W = utils.NewVector(N, VVr.RawRowView(0)).POW(2).Scale(2.)
	return X, W
}

func newSymTriDiagonal(d0, d1 []float64) (JJ *mat.SymBandDense) {
	var (
		n    = len(d0)
		data = make([]float64, 2*n)
	)
	for i := 0; i < n; i++ {
		data[2*i] = d0[i]
		if i < n-1 {
			data[2*i+1] = d1[i]
		}
	}
	JJ = mat.NewSymBandDense(n, 1, data)
	return
}

// PointCount applies the quA*degree+quB sizing rule for one direction.
func PointCount(degree int, quA float64, quB int) (n int) {
	n = int(math.Ceil(quA*float64(degree))) + quB
	if n < 1 {
		n = 1
	}
	return
}
