package assembler

import (
	"fmt"
	"runtime"

	"github.com/ghodss/yaml"
)

// Dirichlet value computation methods, option "DirichletValues".
const (
	DirichletHomogeneous   = 100 // eliminated dofs are zero
	DirichletInterpolation = 101 // sample the bc function at boundary Greville points
	DirichletL2Projection  = 102 // accepted, currently delegates to interpolation
	DirichletUser          = 103 // values supplied via SetFixedDofVector/SetFixedDofs
)

// Options controls quadrature sizing, the sparse reservation estimate
// and Dirichlet handling. Loadable from a YAML parameter file.
type Options struct {
	// Method for computation of Dirichlet DoF values [100..103]
	DirichletValues int `yaml:"DirichletValues"`
	// Number of quadrature points per direction: quA*deg + quB
	QuA float64 `yaml:"quA"`
	QuB int     `yaml:"quB"`
	// Estimated nonzeros per column of the matrix: bdA*deg + bdB
	BdA float64 `yaml:"bdA"`
	BdB int     `yaml:"bdB"`
	// Overhead of sparse memory allocation: (1+bdO)(bdA*deg + bdB) [0..1]
	BdO float64 `yaml:"bdO"`
	// Worker count for the domain element loop; 0 means NumCPU
	Parallel int `yaml:"Parallel"`
}

func DefaultOptions() (o *Options) {
	return &Options{
		DirichletValues: DirichletInterpolation,
		QuA:             1.0,
		QuB:             1,
		BdA:             2.0,
		BdB:             1,
		BdO:             0.333,
		Parallel:        0,
	}
}

func (o *Options) Parse(data []byte) error {
	return yaml.Unmarshal(data, o)
}

func (o *Options) Workers() (n int) {
	n = o.Parallel
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return
}

func (o *Options) Validate() error {
	if o.DirichletValues < DirichletHomogeneous || o.DirichletValues > DirichletUser {
		return fmt.Errorf("DirichletValues = %d outside [100..103]", o.DirichletValues)
	}
	return nil
}

func (o *Options) Print() {
	fmt.Printf("%8.5f\t\t= quA\n", o.QuA)
	fmt.Printf("[%d]\t\t\t= quB\n", o.QuB)
	fmt.Printf("%8.5f\t\t= bdA\n", o.BdA)
	fmt.Printf("[%d]\t\t\t= bdB\n", o.BdB)
	fmt.Printf("%8.5f\t\t= bdO\n", o.BdO)
	fmt.Printf("[%d]\t\t\t= DirichletValues\n", o.DirichletValues)
}
