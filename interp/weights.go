package interp

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gointerp/mesh"
)

// degenerateTol scales the singularity test of the moment matrix
const degenerateTol = 1.e-12

type WeightKind int

const (
	ShapeFunction WeightKind = iota
	PseudoLaplacian
)

func (k WeightKind) String() string {
	switch k {
	case ShapeFunction:
		return "shape"
	case PseudoLaplacian:
		return "pseudolaplacian"
	default:
		return fmt.Sprintf("WeightKind(%d)", int(k))
	}
}

func ParseWeightKind(s string) (WeightKind, error) {
	switch strings.ToLower(s) {
	case "shape", "shapefunction", "":
		return ShapeFunction, nil
	case "pseudolaplacian", "pseudo_laplacian", "laplacian":
		return PseudoLaplacian, nil
	}
	return 0, fmt.Errorf("%w: unknown weight kind %q", ErrSetup, s)
}

func NewWeightFunction(kind WeightKind) (WeightFunction, error) {
	switch kind {
	case ShapeFunction:
		return ShapeFunctionWeights{}, nil
	case PseudoLaplacian:
		return PseudoLaplacianWeights{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSetup, kind)
}

// Weights pairs each contributing source node with its weight. Points are
// global node ids, Local the matching indices into the stencil's mesh.
type Weights struct {
	Points []int
	Local  []int
	W      []float64
}

// WeightFunction computes interpolation weights at a target from a stencil
type WeightFunction interface {
	Kind() WeightKind
	Weights(target []float64, s Stencil) (Weights, error)
}

// ShapeFunctionWeights evaluates the nodal basis of a single element
type ShapeFunctionWeights struct{}

func (ShapeFunctionWeights) Kind() WeightKind { return ShapeFunction }

func (ShapeFunctionWeights) Weights(target []float64, s Stencil) (w Weights, err error) {
	if len(s) != 1 {
		err = fmt.Errorf("%w: shape function weights need a single element stencil, have %d",
			ErrSetup, len(s))
		return
	}
	el := s[0]
	xi, err := el.LocalCoordinateOf(target)
	if err != nil {
		if errors.Is(err, mesh.ErrSingularMapping) {
			err = fmt.Errorf("%w: %w", ErrDegenerateStencil, err)
		}
		return
	}
	local := el.LocalNodes()
	w = Weights{
		Points: el.Nodes(),
		Local:  append([]int(nil), local...),
		W:      el.BasisValues(xi),
	}
	return
}

// PseudoLaplacianWeights blends the nodes of any stencil with weights that
// sum to one and reproduce linear fields exactly.
type PseudoLaplacianWeights struct{}

func (PseudoLaplacianWeights) Kind() WeightKind { return PseudoLaplacian }

func (PseudoLaplacianWeights) Weights(target []float64, s Stencil) (w Weights, err error) {
	if len(s) == 0 {
		err = fmt.Errorf("%w: empty stencil", ErrDegenerateStencil)
		return
	}
	m := s[0].Mesh
	dim := m.Dim
	if len(target) != dim {
		err = fmt.Errorf("%w: target has dimension %d, mesh has %d", ErrInvalidStructure, len(target), dim)
		return
	}
	// Distinct nodes in first seen order
	seen := make(map[int]bool)
	for _, el := range s {
		if el.Mesh != m {
			err = fmt.Errorf("%w: stencil spans meshes", ErrInvalidStructure)
			return
		}
		for _, v := range el.LocalNodes() {
			if !seen[v] {
				seen[v] = true
				w.Local = append(w.Local, v)
				w.Points = append(w.Points, m.GlobalNode(v))
			}
		}
	}
	var (
		n   = len(w.Local)
		off = make([][3]float64, n)
		I   [3][3]float64 // second moments
		R   [3]float64    // first moments of T - S
	)
	for i, v := range w.Local {
		for d := 0; d < dim; d++ {
			off[i][d] = m.Vertices[v][d] - target[d]
			R[d] -= off[i][d]
		}
		for a := 0; a < dim; a++ {
			for b := 0; b < dim; b++ {
				I[a][b] += off[i][a] * off[i][b]
			}
		}
	}
	L, ok := solveMoments(dim, I, R)
	if !ok {
		err = fmt.Errorf("%w: singular moment matrix for %d nodes", ErrDegenerateStencil, n)
		return
	}
	w.W = make([]float64, n)
	sum := 0.
	for i := range w.W {
		lambda := 1.
		for d := 0; d < dim; d++ {
			lambda += L[d] * off[i][d]
		}
		w.W[i] = lambda
		sum += lambda
	}
	if math.Abs(sum) <= degenerateTol*float64(n) {
		err = fmt.Errorf("%w: pseudo-Laplacian weights sum to zero", ErrDegenerateStencil)
		return
	}
	for i := range w.W {
		w.W[i] /= sum
	}
	return
}

// solveMoments solves I L = R by Cramer's rule, reporting false when
// |det I| <= tol (trace/dim)^dim
func solveMoments(dim int, I [3][3]float64, R [3]float64) (L [3]float64, ok bool) {
	trace := 0.
	for d := 0; d < dim; d++ {
		trace += I[d][d]
	}
	scale := math.Pow(trace/float64(dim), float64(dim))
	switch dim {
	case 1:
		det := I[0][0]
		if math.Abs(det) <= degenerateTol*scale {
			return
		}
		L[0] = R[0] / det
	case 2:
		det := I[0][0]*I[1][1] - I[0][1]*I[1][0]
		if math.Abs(det) <= degenerateTol*scale {
			return
		}
		L[0] = (R[0]*I[1][1] - I[0][1]*R[1]) / det
		L[1] = (I[0][0]*R[1] - R[0]*I[1][0]) / det
	case 3:
		det := det3(I)
		if math.Abs(det) <= degenerateTol*scale {
			return
		}
		for c := 0; c < 3; c++ {
			Ic := I
			for r := 0; r < 3; r++ {
				Ic[r][c] = R[r]
			}
			L[c] = det3(Ic) / det
		}
	default:
		return
	}
	ok = true
	return
}

func det3(a [3][3]float64) float64 {
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}
