package mesh

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinLocatorFindsContainingElement(t *testing.T) {
	meshes := map[string]*Mesh{
		"line": NewLineMesh([]float64{0, 0.1, 0.35, 0.5, 0.9, 1}),
		"tri":  NewRectMesh(5, 4, [2]float64{-1, -1}, [2]float64{1, 1}, false),
		"quad": NewRectMesh(5, 4, [2]float64{-1, -1}, [2]float64{1, 1}, true),
		"tet":  NewBoxMesh(3, 2, 2, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false),
		"hex":  NewBoxMesh(3, 2, 2, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, true),
	}
	rng := rand.New(rand.NewSource(42))
	for name, m := range meshes {
		t.Run(name, func(t *testing.T) {
			bl, err := NewBinLocator(m)
			require.NoError(t, err)
			min, max := m.BoundingBox()
			for i := 0; i < 200; i++ {
				x := make([]float64, m.Dim)
				for d := range x {
					x[d] = min[d] + rng.Float64()*(max[d]-min[d])
				}
				el, found := bl.Find(x)
				require.True(t, found, "point %v", x)
				assert.True(t, el.Contains(x, DefaultContainsTol))
				// Lowest index wins
				for k := 0; k < el.Index; k++ {
					assert.False(t, ElementRef{m, k}.Contains(x, DefaultContainsTol))
				}
			}
		})
	}
}

func TestBinLocatorOutside(t *testing.T) {
	m := NewRectMesh(2, 2, [2]float64{0, 0}, [2]float64{1, 1}, false)
	bl, err := NewBinLocator(m)
	require.NoError(t, err)
	_, found := bl.Find([]float64{1.5, 0.5})
	assert.False(t, found)
	_, found = bl.Find([]float64{0.5})
	assert.False(t, found)
	// Shared vertex resolves to the lowest element index
	el, found := bl.Find([]float64{0.5, 0.5})
	require.True(t, found)
	assert.Equal(t, 0, el.Index)

	// Empty mesh finds nothing
	bl, err = NewBinLocator(NewMesh(2))
	require.NoError(t, err)
	_, found = bl.Find([]float64{0, 0})
	assert.False(t, found)
}

func TestBinLocatorUnsupported(t *testing.T) {
	m := NewMesh(2)
	m.AddVertex(0, 0)
	m.AddVertex(1, 0)
	m.AddElement(Line, 0, 1)
	_, err := NewBinLocator(m)
	assert.ErrorIs(t, err, ErrUnsupportedElement)
}
