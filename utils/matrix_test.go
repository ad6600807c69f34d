package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix(t *testing.T) {
	// Row major data layout
	{
		A := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, A.Data())
		assert.Equal(t, 6., A.At(1, 2))
		nr, nc := A.Dims()
		assert.Equal(t, 2, nr)
		assert.Equal(t, 3, nc)
	}
	// Chained mutation
	{
		A := NewMatrix(2, 2).Set(0, 0, 1).Set(1, 1, 2).AddAt(1, 1, 1)
		assert.Equal(t, 1., A.At(0, 0))
		assert.Equal(t, 3., A.At(1, 1))
		B := A.Copy().Scale(2)
		assert.Equal(t, 6., B.At(1, 1))
		assert.Equal(t, 3., A.At(1, 1)) // Copy detaches storage
		A.AddScaled(B, 0.5)
		assert.Equal(t, 2., A.At(0, 0))
	}
	// Mul, Transpose, Inverse, Det
	{
		A := NewMatrix(2, 2, []float64{2, 0, 0, 4})
		Ainv := A.Inverse()
		I := A.Mul(Ainv)
		assert.True(t, near(I.At(0, 0), 1))
		assert.True(t, near(I.At(0, 1), 0))
		assert.True(t, near(A.Det(), 8))
		B := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
		Bt := B.Transpose()
		nr, nc := Bt.Dims()
		require.Equal(t, 3, nr)
		require.Equal(t, 2, nc)
		assert.Equal(t, B.At(0, 2), Bt.At(2, 0))
	}
	// Read only protection
	{
		A := NewMatrix(1, 1)
		A.SetReadOnly("A")
		assert.Panics(t, func() { A.Set(0, 0, 1) })
		A.SetWritable()
		assert.NotPanics(t, func() { A.Set(0, 0, 1) })
	}
	// Col/Row extraction and sums
	{
		A := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
		c := A.Col(1)
		assert.Equal(t, []float64{2, 5}, c.DataP)
		r := A.Row(0)
		assert.Equal(t, []float64{1, 2, 3}, r.DataP)
		sc := A.SumCols()
		assert.True(t, near(sc.AtVec(0), 6))
		sr := A.SumRows()
		assert.True(t, near(sr.AtVec(2), 9))
	}
}

func TestVectorOps(t *testing.T) {
	v := NewVector(3, []float64{1, 2, 3})
	assert.Equal(t, 3, v.Len())
	assert.True(t, near(v.Sum(), 6))
	assert.True(t, near(v.Dot(v), 14))
	assert.True(t, near(v.Min(), 1))
	assert.True(t, near(v.Max(), 3))
	w := v.Copy().Scale(2)
	assert.True(t, near(w.AtVec(2), 6))
	assert.True(t, near(v.AtVec(2), 3))
	w.Apply(func(x float64) float64 { return x * x })
	assert.True(t, near(w.AtVec(0), 4))
	u := NewVector(3, []float64{1, 2, 3}).POW(2)
	assert.True(t, near(u.Sum(), 14))
}

func TestIndex(t *testing.T) {
	I := NewRange(2, 5)
	assert.Equal(t, Index{2, 3, 4, 5}, I)
	assert.True(t, I.Contains(4))
	assert.False(t, I.Contains(1))
	J := I.Copy()
	J[0] = 99
	assert.Equal(t, 2, I[0])
}

func TestDOK(t *testing.T) {
	A := NewDOK(3, 3)
	A.Add(0, 0, 1)
	A.Add(0, 0, 2) // accumulates, does not overwrite
	assert.True(t, near(A.At(0, 0), 3))
	A.Set(1, 2, 5)
	assert.Equal(t, 2, A.NNZ())

	B := NewDOK(3, 3)
	B.Add(0, 0, 1)
	B.Add(2, 1, 4)
	A.Merge(B)
	assert.True(t, near(A.At(0, 0), 4))
	assert.True(t, near(A.At(2, 1), 4))
	assert.Equal(t, 3, A.NNZ())

	csr := A.ToCSR()
	assert.True(t, near(csr.At(0, 0), 4))
	assert.True(t, near(csr.At(1, 2), 5))

	var empty DOK
	assert.True(t, empty.IsEmpty())
	assert.False(t, A.IsEmpty())
}

func TestPartitionMap(t *testing.T) {
	// Buckets are contiguous, disjoint, cover the range, imbalance <= 1
	for _, tc := range [][2]int{{4, 10}, {3, 9}, {5, 7}, {1, 100}} {
		nw, max := tc[0], tc[1]
		pm := NewPartitionMap(nw, max)
		total, prev := 0, 0
		for n := 0; n < nw; n++ {
			kMin, kMax := pm.GetBucketRange(n)
			assert.Equal(t, prev, kMin)
			assert.True(t, kMax >= kMin)
			total += pm.GetBucketDimension(n)
			prev = kMax
		}
		assert.Equal(t, max, total)
		assert.Equal(t, max, prev)
	}
}

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol float64
	)
	if len(tolI) == 0 {
		tol = 1.e-08
	} else {
		tol = tolI[0]
	}
	bound := math.Max(tol, tol*math.Abs(a))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
