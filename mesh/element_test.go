package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapToPhysical evaluates x(xi) through the element basis
func mapToPhysical(er ElementRef, xi []float64) (x []float64) {
	N := er.BasisValues(xi)
	x = make([]float64, er.Mesh.Dim)
	for a, X := range er.NodeCoords() {
		for d := range x {
			x[d] += N[a] * X[d]
		}
	}
	return
}

func TestLocalCoordinateRoundTrip(t *testing.T) {
	type tcase struct {
		name string
		el   ElementRef
		xi   [][]float64
	}
	skewQuad := NewMesh(2)
	skewQuad.AddVertex(0, 0)
	skewQuad.AddVertex(2, 0.2)
	skewQuad.AddVertex(2.5, 1.7)
	skewQuad.AddVertex(-0.3, 1.2)
	skewQuad.AddElement(Quad, 0, 1, 2, 3)

	tri := NewMesh(2)
	tri.AddVertex(1, 1)
	tri.AddVertex(3, 1.5)
	tri.AddVertex(1.5, 4)
	tri.AddElement(Triangle, 0, 1, 2)

	cases := []tcase{
		{"line", ElementRef{NewLineMesh([]float64{2, 5}), 0},
			[][]float64{{0}, {0.25}, {1}}},
		{"triangle", ElementRef{tri, 0},
			[][]float64{{0, 0}, {0.2, 0.3}, {0.5, 0.5}}},
		{"quad", ElementRef{skewQuad, 0},
			[][]float64{{0, 0}, {-0.5, 0.7}, {1, -1}}},
		{"tet", ElementRef{NewBoxMesh(1, 1, 1, [3]float64{0, 0, 0}, [3]float64{1, 2, 3}, false), 3},
			[][]float64{{0.1, 0.2, 0.3}, {0.25, 0.25, 0.25}}},
		{"hex", ElementRef{NewBoxMesh(1, 1, 1, [3]float64{0, 0, 0}, [3]float64{1, 2, 3}, true), 0},
			[][]float64{{0, 0, 0}, {0.3, -0.4, 0.9}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, xi := range tc.xi {
				x := mapToPhysical(tc.el, xi)
				got, err := tc.el.LocalCoordinateOf(x)
				require.NoError(t, err)
				assert.InDeltaSlice(t, xi, got, 1.e-10)
				assert.True(t, tc.el.Contains(x, DefaultContainsTol))
			}
		})
	}
}

func TestBasisValues(t *testing.T) {
	hex := ElementRef{NewBoxMesh(1, 1, 1, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, true), 0}
	tet := ElementRef{NewBoxMesh(1, 1, 1, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false), 0}
	for _, el := range []ElementRef{hex, tet} {
		// Partition of unity
		N := el.BasisValues([]float64{0.1, 0.2, 0.3})
		sum := 0.
		for _, v := range N {
			sum += v
		}
		assert.InDelta(t, 1., sum, 1.e-14)
		// Kronecker property at the nodes
		for a, X := range el.NodeCoords() {
			xi, err := el.LocalCoordinateOf(X)
			require.NoError(t, err)
			N = el.BasisValues(xi)
			for b := range N {
				want := 0.
				if a == b {
					want = 1.
				}
				assert.InDelta(t, want, N[b], 1.e-10)
			}
		}
	}
}

func TestContains(t *testing.T) {
	m := NewRectMesh(1, 1, [2]float64{0, 0}, [2]float64{1, 1}, false)
	lower, upper := ElementRef{m, 0}, ElementRef{m, 1}
	assert.True(t, lower.Contains([]float64{0.7, 0.2}, DefaultContainsTol))
	assert.False(t, upper.Contains([]float64{0.7, 0.2}, DefaultContainsTol))
	// The shared diagonal belongs to both
	assert.True(t, lower.Contains([]float64{0.5, 0.5}, DefaultContainsTol))
	assert.True(t, upper.Contains([]float64{0.5, 0.5}, DefaultContainsTol))
	assert.False(t, lower.Contains([]float64{1.5, 0.2}, DefaultContainsTol))

	hex := ElementRef{NewBoxMesh(1, 1, 1, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, true), 0}
	assert.True(t, hex.Contains([]float64{1, 1, 1}, DefaultContainsTol))
	assert.False(t, hex.Contains([]float64{1.01, 0.5, 0.5}, DefaultContainsTol))
}

func TestElementErrors(t *testing.T) {
	m := NewMesh(3)
	for i := 0; i < 6; i++ {
		m.AddVertex(float64(i&1), float64(i>>1&1), float64(i>>2))
	}
	m.AddElement(Prism, 0, 1, 2, 3, 4, 5)
	_, err := ElementRef{m, 0}.LocalCoordinateOf([]float64{0, 0, 0})
	assert.True(t, errors.Is(err, ErrUnsupportedElement))

	// Degenerate triangle, all nodes on a line
	flat := NewMesh(2)
	flat.AddVertex(0, 0)
	flat.AddVertex(1, 1)
	flat.AddVertex(2, 2)
	flat.AddElement(Triangle, 0, 1, 2)
	_, err = ElementRef{flat, 0}.LocalCoordinateOf([]float64{0.5, 0.5})
	assert.True(t, errors.Is(err, ErrSingularMapping))

	line := ElementRef{NewLineMesh([]float64{0, 1}), 0}
	_, err = line.LocalCoordinateOf([]float64{0.5, 0.5})
	assert.Error(t, err)
	assert.False(t, line.Contains([]float64{math.NaN()}, DefaultContainsTol))
}

func TestElementID(t *testing.T) {
	m := NewLineMesh([]float64{0, 1, 2, 3})
	parts, err := Split(m, []int{0, 1, 1}, 2)
	require.NoError(t, err)
	el := ElementRef{parts[1], 1}
	id := el.ID()
	assert.Equal(t, ElementID{Partition: 1, Local: 1, Global: 2}, id)
	back, err := ElementIDFromInts(id.Ints())
	require.NoError(t, err)
	assert.Equal(t, id, back)
	assert.Equal(t, []int{2, 3}, el.Nodes())
	_, err = ElementIDFromInts([]int{1, 2})
	assert.Error(t, err)
}
