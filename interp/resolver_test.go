package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gointerp/mesh"
)

func TestResolveLocal(t *testing.T) {
	m := mesh.NewRectMesh(2, 2, [2]float64{0, 0}, [2]float64{1, 1}, false)
	pr := newResolver(t, m, OneCellStencil{}, ShapeFunctionWeights{})

	res, found, err := pr.Resolve([]float64{0.3, 0.1})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, -1, res.Owner)
	assert.Equal(t, 0, res.Element.Index)
	assert.Len(t, res.Stencil, 1)
	assert.InDelta(t, 1., sum(res.Weights), 1.e-12)
	// Exact for linear data on the element
	f := NewLinearField(m, []float64{1, 2, 3})
	assert.InDelta(t, 1+2*0.3+3*0.1, res.Evaluate(f.Values[0]), 1.e-12)

	res, found, err = pr.Resolve([]float64{3, 3})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, res)
}

func TestNewPointResolverSetup(t *testing.T) {
	m := mesh.NewLineMesh([]float64{0, 1, 2})
	loc, err := mesh.NewBinLocator(m)
	require.NoError(t, err)

	_, err = NewPointResolver(loc, RingStencil{Rings: 1}, ShapeFunctionWeights{})
	assert.ErrorIs(t, err, ErrSetup)
	_, err = NewPointResolver(loc, &RingStencil{Rings: 2}, ShapeFunctionWeights{})
	assert.ErrorIs(t, err, ErrSetup)
	_, err = NewPointResolver(loc, RingStencil{Rings: -1}, PseudoLaplacianWeights{})
	assert.ErrorIs(t, err, ErrSetup)
	_, err = NewPointResolver(nil, OneCellStencil{}, ShapeFunctionWeights{})
	assert.ErrorIs(t, err, ErrSetup)

	pr, err := NewPointResolver(loc, RingStencil{Rings: 0}, ShapeFunctionWeights{})
	require.NoError(t, err)
	assert.Equal(t, Ring, pr.StencilKind())
	pr, err = NewPointResolver(loc, RingStencil{Rings: 1}, PseudoLaplacianWeights{})
	require.NoError(t, err)
	assert.Equal(t, PseudoLaplacian, pr.WeightKind())

	res, found, err := pr.Resolve([]float64{0.5})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int{0, 1, 2}, res.Points)
}

func TestResolveStencilFailure(t *testing.T) {
	m := mesh.NewRectMesh(1, 1, [2]float64{0, 0}, [2]float64{1, 1}, false)
	pr := newResolver(t, m, RingStencil{Rings: 0, MinSize: 2, FailBelowMin: true}, PseudoLaplacianWeights{})
	res, found, err := pr.Resolve([]float64{0.6, 0.2})
	assert.False(t, found)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrDegenerateStencil)

	pr = newResolver(t, m, RingStencil{Rings: 1, MinSize: 2, FailBelowMin: true}, PseudoLaplacianWeights{})
	_, found, err = pr.Resolve([]float64{0.6, 0.2})
	require.NoError(t, err)
	assert.True(t, found)
}
