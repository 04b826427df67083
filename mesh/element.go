package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	newtonMaxIter = 25
	newtonTol     = 1.e-12
)

// ElementRef is a non-owning reference to one element of a mesh partition.
type ElementRef struct {
	Mesh  *Mesh
	Index int
}

// ElementID is the serialisable identity of an ElementRef: which partition
// holds it, its index there, and its index in the unpartitioned mesh.
type ElementID struct {
	Partition, Local, Global int
}

func (id ElementID) Ints() []int { return []int{id.Partition, id.Local, id.Global} }

func ElementIDFromInts(v []int) (id ElementID, err error) {
	if len(v) != 3 {
		err = fmt.Errorf("element identity needs 3 integers, have %d", len(v))
		return
	}
	id = ElementID{Partition: v[0], Local: v[1], Global: v[2]}
	return
}

func (er ElementRef) Valid() bool {
	return er.Mesh != nil && er.Index >= 0 && er.Index < len(er.Mesh.Elements)
}

func (er ElementRef) Type() ElementType { return er.Mesh.ElementTypes[er.Index] }

func (er ElementRef) ID() ElementID {
	return ElementID{
		Partition: er.Mesh.Partition,
		Local:     er.Index,
		Global:    er.Mesh.GlobalElement(er.Index),
	}
}

// LocalNodes returns the partition-local vertex indices of the element
func (er ElementRef) LocalNodes() []int { return er.Mesh.Elements[er.Index] }

// Nodes returns the global vertex indices of the element
func (er ElementRef) Nodes() (nodes []int) {
	local := er.LocalNodes()
	nodes = make([]int, len(local))
	for i, v := range local {
		nodes[i] = er.Mesh.GlobalNode(v)
	}
	return
}

func (er ElementRef) NodeCoords() (X [][]float64) {
	local := er.LocalNodes()
	X = make([][]float64, len(local))
	for i, v := range local {
		X[i] = er.Mesh.Vertices[v]
	}
	return
}

// Bounds returns the axis aligned box of the element nodes
func (er ElementRef) Bounds() (min, max []float64) {
	dim := er.Mesh.Dim
	min, max = make([]float64, dim), make([]float64, dim)
	for i, x := range er.NodeCoords() {
		for d := 0; d < dim; d++ {
			if i == 0 || x[d] < min[d] {
				min[d] = x[d]
			}
			if i == 0 || x[d] > max[d] {
				max[d] = x[d]
			}
		}
	}
	return
}

func (er ElementRef) checkSupported() error {
	et := er.Type()
	switch et {
	case Line, Triangle, Tet, Quad, Hex:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedElement, et)
	}
	if et.Dimension() != er.Mesh.Dim {
		return fmt.Errorf("%w: %s in a %dD mesh", ErrUnsupportedElement, et, er.Mesh.Dim)
	}
	return nil
}

func isSimplex(et ElementType) bool { return et == Line || et == Triangle || et == Tet }

// LocalCoordinateOf maps x into the reference coordinates of the element.
// Simplices use barycentric coordinates on the unit simplex, Quad and Hex
// use [-1,1]^D with the tensor product node ordering of GetElementFaces.
func (er ElementRef) LocalCoordinateOf(x []float64) (xi []float64, err error) {
	if err = er.checkSupported(); err != nil {
		return
	}
	if len(x) != er.Mesh.Dim {
		err = fmt.Errorf("coordinate has dimension %d, mesh has %d", len(x), er.Mesh.Dim)
		return
	}
	if isSimplex(er.Type()) {
		return er.simplexLocal(x)
	}
	return er.tensorLocal(x)
}

func (er ElementRef) simplexLocal(x []float64) (xi []float64, err error) {
	var (
		X   = er.NodeCoords()
		dim = er.Mesh.Dim
		J   = mat.NewDense(dim, dim, nil)
		rhs = mat.NewVecDense(dim, nil)
		sol mat.VecDense
	)
	for d := 0; d < dim; d++ {
		for j := 0; j < dim; j++ {
			J.Set(d, j, X[j+1][d]-X[0][d])
		}
		rhs.SetVec(d, x[d]-X[0][d])
	}
	if err = solveJacobian(J, rhs, &sol); err != nil {
		return
	}
	xi = make([]float64, dim)
	for d := range xi {
		xi[d] = sol.AtVec(d)
	}
	return
}

func (er ElementRef) tensorLocal(x []float64) (xi []float64, err error) {
	var (
		X     = er.NodeCoords()
		dim   = er.Mesh.Dim
		J     = mat.NewDense(dim, dim, nil)
		resid = mat.NewVecDense(dim, nil)
		step  mat.VecDense
		scale = er.size()
	)
	for _, v := range x {
		scale = math.Max(scale, math.Abs(v))
	}
	xi = make([]float64, dim)
	for iter := 0; iter < newtonMaxIter; iter++ {
		N := er.BasisValues(xi)
		dN := tensorBasisDerivatives(er.Type(), xi)
		J.Zero()
		for d := 0; d < dim; d++ {
			xd := 0.
			for a := range X {
				xd += N[a] * X[a][d]
				for j := 0; j < dim; j++ {
					J.Set(d, j, J.At(d, j)+dN[a][j]*X[a][d])
				}
			}
			resid.SetVec(d, x[d]-xd)
		}
		if mat.Norm(resid, 2) <= newtonTol*scale {
			return
		}
		if err = solveJacobian(J, resid, &step); err != nil {
			return
		}
		for d := range xi {
			xi[d] += step.AtVec(d)
		}
		// Far outside the element the bilinear map folds; stop early
		for d := range xi {
			if math.Abs(xi[d]) > 1.e3 {
				err = fmt.Errorf("%w: reference coordinate diverged", ErrOutsideElement)
				return
			}
		}
	}
	err = fmt.Errorf("%w: inverse mapping did not converge", ErrOutsideElement)
	return
}

func solveJacobian(J *mat.Dense, rhs *mat.VecDense, sol *mat.VecDense) error {
	var lu mat.LU
	lu.Factorize(J)
	if lu.Det() == 0 {
		return ErrSingularMapping
	}
	if err := lu.SolveVecTo(sol, false, rhs); err != nil {
		// mat.Condition is returned for ill-conditioned but solvable systems
		if _, ok := err.(mat.Condition); !ok {
			return fmt.Errorf("%w: %v", ErrSingularMapping, err)
		}
	}
	return nil
}

// size is the length of the element bounding box diagonal
func (er ElementRef) size() float64 {
	min, max := er.Bounds()
	s := 0.
	for d := range min {
		s += (max[d] - min[d]) * (max[d] - min[d])
	}
	return math.Sqrt(s)
}

// BasisValues evaluates the nodal basis at reference coordinate xi
func (er ElementRef) BasisValues(xi []float64) (N []float64) {
	et := er.Type()
	if isSimplex(et) {
		N = make([]float64, len(xi)+1)
		N[0] = 1.
		for d, v := range xi {
			N[0] -= v
			N[d+1] = v
		}
		return
	}
	ref := tensorNodes(et)
	N = make([]float64, len(ref))
	for a, r := range ref {
		N[a] = 1.
		for d, v := range xi {
			N[a] *= 0.5 * (1. + r[d]*v)
		}
	}
	return
}

// Contains tests x against the reference element with tolerance tol on the
// reference coordinates
func (er ElementRef) Contains(x []float64, tol float64) bool {
	xi, err := er.LocalCoordinateOf(x)
	if err != nil {
		return false
	}
	if isSimplex(er.Type()) {
		sum := 0.
		for _, v := range xi {
			if v < -tol {
				return false
			}
			sum += v
		}
		return sum <= 1.+tol
	}
	for _, v := range xi {
		if math.Abs(v) > 1.+tol {
			return false
		}
	}
	return true
}

var (
	quadNodes = [][]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	hexNodes  = [][]float64{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
)

func tensorNodes(et ElementType) [][]float64 {
	if et == Quad {
		return quadNodes
	}
	return hexNodes
}

// tensorBasisDerivatives returns dN[a][j] = dN_a / dxi_j
func tensorBasisDerivatives(et ElementType, xi []float64) (dN [][]float64) {
	ref := tensorNodes(et)
	dN = make([][]float64, len(ref))
	for a, r := range ref {
		dN[a] = make([]float64, len(xi))
		for j := range xi {
			v := 0.5 * r[j]
			for k := range xi {
				if k != j {
					v *= 0.5 * (1. + r[k]*xi[k])
				}
			}
			dN[a][j] = v
		}
	}
	return
}
