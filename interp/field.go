package interp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/notargets/gointerp/mesh"
)

// SourceField holds per-variable values at the nodes of one rank's mesh
// partition, Values[variable][localNode]. Its identity is fixed at creation:
// updating Values in place keeps it, building a new field does not.
type SourceField struct {
	id     uuid.UUID
	Mesh   *mesh.Mesh
	Values [][]float64
}

func NewSourceField(m *mesh.Mesh, values [][]float64) *SourceField {
	return &SourceField{id: uuid.New(), Mesh: m, Values: values}
}

// NewLinearField samples f_v(x) = c[0] + c[1]*x + c[2]*y + c[3]*z at the mesh
// nodes, one variable per coefficient set. Missing coefficients are zero.
func NewLinearField(m *mesh.Mesh, coeffs ...[]float64) *SourceField {
	values := make([][]float64, len(coeffs))
	for v, c := range coeffs {
		values[v] = make([]float64, m.NumVertices)
		for i, x := range m.Vertices {
			values[v][i] = EvalLinear(c, x)
		}
	}
	return NewSourceField(m, values)
}

// EvalLinear evaluates the affine function with coefficients c at x
func EvalLinear(c, x []float64) (f float64) {
	if len(c) > 0 {
		f = c[0]
	}
	for d, xd := range x {
		if d+1 < len(c) {
			f += c[d+1] * xd
		}
	}
	return
}

func (sf *SourceField) ID() uuid.UUID { return sf.id }

// Size is the number of local nodes the field is defined on
func (sf *SourceField) Size() int {
	if sf.Mesh == nil {
		return 0
	}
	return sf.Mesh.NumVertices
}

func (sf *SourceField) NumVars() int { return len(sf.Values) }

// Validate checks every variable covers every local node
func (sf *SourceField) Validate() error {
	if sf.Mesh == nil {
		return fmt.Errorf("%w: source field has no mesh", ErrInvalidStructure)
	}
	for v, vals := range sf.Values {
		if len(vals) != sf.Size() {
			return fmt.Errorf("%w: variable %d has %d values for %d nodes",
				ErrInvalidStructure, v, len(vals), sf.Size())
		}
	}
	return nil
}

// CoordinateTable is the list of target coordinates a rank asks for
type CoordinateTable struct {
	id     uuid.UUID
	Dim    int
	Coords [][]float64
}

func NewCoordinateTable(dim int, coords [][]float64) (ct *CoordinateTable, err error) {
	if dim < 1 || dim > 3 {
		err = fmt.Errorf("%w: coordinate dimension %d", ErrInvalidStructure, dim)
		return
	}
	for i, x := range coords {
		if len(x) != dim {
			err = fmt.Errorf("%w: coordinate %d has dimension %d, table has %d",
				ErrInvalidStructure, i, len(x), dim)
			return
		}
	}
	ct = &CoordinateTable{id: uuid.New(), Dim: dim, Coords: coords}
	return
}

func (ct *CoordinateTable) ID() uuid.UUID { return ct.id }

func (ct *CoordinateTable) Len() int { return len(ct.Coords) }

// NewOutput allocates a [nvars][Len] target array
func (ct *CoordinateTable) NewOutput(nvars int) (out [][]float64) {
	out = make([][]float64, nvars)
	for v := range out {
		out[v] = make([]float64, ct.Len())
	}
	return
}
