/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ghodss/yaml"

	"github.com/notargets/galerkin/assembler"
	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/geometry"
	"github.com/notargets/galerkin/utils"
)

type ModelPoisson struct {
	Dim       int
	Degree    int
	Elements  int
	Parallel  int
	ParamFile string
}

type PoissonParameters struct {
	Title           string            `yaml:"Title"`
	Dim             int               `yaml:"Dim"`
	PolynomialOrder int               `yaml:"PolynomialOrder"`
	Elements        int               `yaml:"Elements"`
	DirichletValue  float64           `yaml:"DirichletValue"`
	SourceValue     float64           `yaml:"SourceValue"`
	Options         assembler.Options `yaml:"Options"`
}

func (pp *PoissonParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, pp)
}

func (pp *PoissonParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", pp.Title)
	fmt.Printf("[%d]\t\t\t= Dim\n", pp.Dim)
	fmt.Printf("[%d]\t\t\t= Polynomial Order\n", pp.PolynomialOrder)
	fmt.Printf("[%d]\t\t\t= Elements per direction\n", pp.Elements)
	fmt.Printf("%8.5f\t\t= DirichletValue\n", pp.DirichletValue)
	fmt.Printf("%8.5f\t\t= SourceValue\n", pp.SourceValue)
	pp.Options.Print()
}

// PoissonCmd represents the poisson command
var PoissonCmd = &cobra.Command{
	Use:   "poisson",
	Short: "Assemble and solve the Poisson model problem on the unit domain",
	Long: `Assembles the stiffness matrix and source load for -laplace(u) = f
with Dirichlet boundary values on the unit interval or unit square,
then solves the eliminated system directly for verification`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("poisson called")
		defer startProfile(cmd)()
		mp := &ModelPoisson{}
		if mp.ParamFile, err = cmd.Flags().GetString("paramFile"); err != nil {
			panic(err)
		}
		mp.Dim, _ = cmd.Flags().GetInt("dim")
		mp.Degree, _ = cmd.Flags().GetInt("n")
		mp.Elements, _ = cmd.Flags().GetInt("k")
		mp.Parallel, _ = cmd.Flags().GetInt("parallel")
		pp := processPoissonInput(mp)
		RunPoisson(pp)
	},
}

func processPoissonInput(mp *ModelPoisson) (pp *PoissonParameters) {
	pp = &PoissonParameters{
		Title:           "Poisson Model Problem",
		Dim:             mp.Dim,
		PolynomialOrder: mp.Degree,
		Elements:        mp.Elements,
		SourceValue:     1.,
		Options:         *assembler.DefaultOptions(),
	}
	if len(mp.ParamFile) != 0 {
		data, err := ioutil.ReadFile(mp.ParamFile)
		if err != nil {
			panic(err)
		}
		if err = pp.Parse(data); err != nil {
			panic(err)
		}
	}
	if mp.Parallel > 0 {
		pp.Options.Parallel = mp.Parallel
	}
	if err := pp.Options.Validate(); err != nil {
		panic(err)
	}
	pp.Print()
	return
}

func init() {
	rootCmd.AddCommand(PoissonCmd)
	PoissonCmd.Flags().StringP("paramFile", "I", "", "YAML file for problem and assembler parameters")
	PoissonCmd.Flags().IntP("dim", "d", 2, "parametric dimension, 1, 2 or 3")
	PoissonCmd.Flags().IntP("n", "n", 2, "polynomial degree")
	PoissonCmd.Flags().IntP("k", "k", 8, "number of elements per direction")
	PoissonCmd.Flags().IntP("parallel", "p", 0, "worker count for domain assembly, 0 = NumCPU")
}

func RunPoisson(pp *PoissonParameters) {
	var (
		splines = make([]*basis.BSpline1D, pp.Dim)
		start   = time.Now()
	)
	for d := 0; d < pp.Dim; d++ {
		splines[d] = basis.NewUniformBSpline1D(pp.PolynomialOrder, pp.Elements, 0, 1)
	}
	var (
		tb = basis.NewTensorBasis(splines...)
		mb = basis.NewMultiBasis(&basis.Topology{}, tb)
		gm = geometry.NewMultiPatch(geometry.NewIdentityPatch(tb))
		bc = &geometry.BoundaryConditions{}
	)
	for s := 0; s < 2*pp.Dim; s++ {
		bc.AddDirichlet(0, basis.Side(s), geometry.ConstantBC(pp.DirichletValue))
	}

	a := assembler.New()
	a.SetOptions(&pp.Options)
	a.SetIntegrationElements(mb)
	var (
		G = a.GetMap(gm)
		v = a.GetSpace(mb, 1)
	)
	v.Setup(bc)
	a.InitSystem()
	fmt.Printf("DOFs: %d free, %d eliminated\n",
		a.NumDofs(), v.Mapper().BoundarySize())

	a.Assemble(
		assembler.Mul(assembler.Meas(G), assembler.Stiffness(v, v, G)),
		assembler.Mul(assembler.Meas(G), assembler.Load(v, assembler.Const(pp.SourceValue))),
	)
	fmt.Printf("assembled %d nonzeros in %v\n",
		a.MatrixCSR().NNZ(), time.Since(start))

	u := solveDense(a.Matrix(), a.Rhs())
	fmt.Printf("max |u| = %v\n", u.Apply(func(x float64) float64 {
		if x < 0 {
			return -x
		}
		return x
	}).Max())
}

// solveDense is a direct LU solve of the eliminated system, fine for
// the model problem sizes this command targets.
func solveDense(K utils.DOK, rhs utils.Matrix) (u utils.Vector) {
	var (
		n, _ = K.Dims()
		Kd   = mat.NewDense(n, n, nil)
		b    = mat.NewVecDense(n, rhs.Col(0).DataP)
	)
	K.M.DoNonZero(func(i, j int, val float64) {
		Kd.Set(i, j, val)
	})
	var lu mat.LU
	lu.Factorize(Kd)
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		panic(err)
	}
	return utils.NewVector(n, x.RawVector().Data)
}
