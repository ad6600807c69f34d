package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)              { return m.M.Dims() }
func (m DOK) At(i, j int) float64           { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix                 { return m.M.T() }
func (m DOK) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m DOK) IsEmpty() bool                 { return m.M == nil }

func (m DOK) Rows() (nr int) { nr, _ = m.Dims(); return }
func (m DOK) Cols() (nc int) { _, nc = m.Dims(); return }

func (m *DOK) SetReadOnly(name ...string) DOK {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only sparse matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) Set(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, val)
}

// Add accumulates val into entry (i,j). Repeated contributions from
// adjacent elements must sum, not overwrite.
func (m DOK) Add(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
}

// Merge accumulates every stored entry of A into the receiver.
func (m DOK) Merge(A DOK) {
	m.checkWritable()
	A.M.DoNonZero(func(i, j int, val float64) {
		m.Add(i, j, val)
	})
}

func (m DOK) NNZ() int { return m.M.NNZ() }

// ToCSR compresses the accumulator into canonical compressed sparse
// row layout.
func (m DOK) ToCSR() *sparse.CSR { return m.M.ToCSR() }

// Reserve is a sizing hint. The DOK storage grows on demand, so the
// estimate only pre-sizes the hash map.
func (m DOK) Reserve(nnzEstimate int) {
	_ = nnzEstimate
}
