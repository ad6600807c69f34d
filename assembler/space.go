package assembler

import (
	"github.com/notargets/galerkin/basis"
	"github.com/notargets/galerkin/geometry"
	"github.com/notargets/galerkin/utils"
)

// SpaceData is the registered record of one trial or test space: its
// function set, vector dimension, block id, dof mapper and prescribed
// boundary values. Spaces sharing an id form one block of the global
// system (test and trial sides may hold different records for
// Petrov-Galerkin setups).
type SpaceData struct {
	fs        *basis.MultiBasis
	dim       int
	id        int
	mapper    *DofMapper
	fixedDofs utils.Vector
	bc        *geometry.BoundaryConditions

	// precompute flags, written by Parse outside the element loop
	needVals   bool
	needDerivs bool
}

// Space is the lightweight handle used inside symbolic expressions. It
// owns no data; the assembler owns the underlying SpaceData.
type Space struct {
	data *SpaceData
}

func (s Space) IsValid() bool           { return s.data != nil }
func (s Space) ID() int                 { return s.data.id }
func (s Space) Dim() int                { return s.data.dim }
func (s Space) Mapper() *DofMapper      { return s.data.mapper }
func (s Space) FixedPart() utils.Vector { return s.data.fixedDofs }

// Setup attaches boundary conditions to the space. Dirichlet records
// for this space's unknown are eliminated when the system is
// initialized.
func (s Space) Setup(bc *geometry.BoundaryConditions) {
	s.data.bc = bc
}
