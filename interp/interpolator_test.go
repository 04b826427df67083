package interp

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gointerp/comm"
	"github.com/notargets/gointerp/mesh"
)

// Rank 1 owns [0,1] carrying 10 and 20, rank 0 owns [2,3]. Both ask for 0.1.
func TestTwoRankLineEndToEnd(t *testing.T) {
	meshes := []*mesh.Mesh{
		mesh.NewLineMesh([]float64{2, 3}),
		mesh.NewLineMesh([]float64{0, 1}),
	}
	sources := []*SourceField{
		NewSourceField(meshes[0], [][]float64{{-5, -6}}),
		NewSourceField(meshes[1], [][]float64{{10, 20}}),
	}
	for _, wf := range []WeightFunction{ShapeFunctionWeights{}, PseudoLaplacianWeights{}} {
		for _, store := range []bool{false, true} {
			resolvers := []*PointResolver{
				newResolver(t, meshes[0], OneCellStencil{}, wf),
				newResolver(t, meshes[1], OneCellStencil{}, wf),
			}
			targets := []*CoordinateTable{
				newTable(t, 1, [][]float64{{0.1}}),
				newTable(t, 1, [][]float64{{0.1}, {2.5}}),
			}
			outs := [][][]float64{targets[0].NewOutput(1), targets[1].NewOutput(1)}
			reports := make([]*Report, 2)
			err := comm.Run(2, func(c comm.Communicator) (err error) {
				r := c.Rank()
				di := New(c, resolvers[r], WithStore(store))
				reports[r], err = di.Interpolate(sources[r], targets[r], outs[r])
				return
			})
			require.NoError(t, err)
			assert.InDelta(t, 11., outs[0][0][0], 1.e-12, "%s store=%v", wf.Kind(), store)
			assert.Equal(t, []int{1}, reports[0].Owners)
			assert.InDelta(t, 11., outs[1][0][0], 1.e-12)
			assert.InDelta(t, -5.5, outs[1][0][1], 1.e-12)
			assert.Equal(t, []int{1, 0}, reports[1].Owners)
			assert.NoError(t, reports[0].Err())
			assert.False(t, reports[0].CacheHit)
		}
	}
}

func TestInterpolateLinearFieldAcrossRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	coeffs := [][]float64{{1, 2, -1}, {0.5, 0, 4}}
	cases := []struct {
		name string
		m    *mesh.Mesh
		sb   StencilBuilder
		wf   WeightFunction
	}{
		{"tri shape", mesh.NewRectMesh(5, 4, [2]float64{0, 0}, [2]float64{1, 1}, false),
			OneCellStencil{}, ShapeFunctionWeights{}},
		{"quad ring", mesh.NewRectMesh(5, 4, [2]float64{0, 0}, [2]float64{1, 1}, true),
			RingStencil{Rings: 1}, PseudoLaplacianWeights{}},
	}
	for _, tc := range cases {
		const size = 3
		parts, resolvers := partitionedResolvers(t, tc.m, size, tc.sb, tc.wf)
		min, max := tc.m.BoundingBox()
		targets := make([]*CoordinateTable, size)
		sources := make([]*SourceField, size)
		outs := make([][][]float64, size)
		for r := range targets {
			targets[r] = newTable(t, 2, randomTargets(rng, 20, min, max))
			sources[r] = NewLinearField(parts[r], coeffs...)
			outs[r] = targets[r].NewOutput(3)
		}
		for _, store := range []bool{false, true} {
			err := comm.Run(size, func(c comm.Communicator) error {
				r := c.Rank()
				di := New(c, resolvers[r], WithStore(store))
				// Swap the variables into slots 2 and 0
				rep, err := di.InterpolateVars(sources[r], targets[r], outs[r], []int{0, 1}, []int{2, 0})
				if err != nil {
					return err
				}
				return rep.Err()
			})
			require.NoError(t, err, tc.name)
			for r := range targets {
				for i, x := range targets[r].Coords {
					assert.InDelta(t, EvalLinear(coeffs[0], x), outs[r][2][i], 1.e-10, tc.name)
					assert.InDelta(t, EvalLinear(coeffs[1], x), outs[r][0][i], 1.e-10, tc.name)
					assert.Zero(t, outs[r][1][i])
				}
			}
		}
	}
}

func TestStoreCacheHitsAndMisses(t *testing.T) {
	m := mesh.NewRectMesh(4, 4, [2]float64{0, 0}, [2]float64{1, 1}, false)
	const size = 2
	parts, resolvers := partitionedResolvers(t, m, size, OneCellStencil{}, ShapeFunctionWeights{})
	type step struct {
		hit    bool
		builds int
	}
	steps := make([][]step, size)
	err := comm.Run(size, func(c comm.Communicator) error {
		r := c.Rank()
		di := New(c, resolvers[r], WithStore(true))
		src := NewLinearField(parts[r], []float64{0, 1, 1})
		targets, err := NewCoordinateTable(2, [][]float64{{0.25, 0.25}, {0.75, 0.6}})
		if err != nil {
			return err
		}
		out := targets.NewOutput(1)
		record := func(rep *Report, err error) error {
			if err != nil {
				return err
			}
			steps[r] = append(steps[r], step{rep.CacheHit, di.Cache().Builds()})
			return nil
		}
		// First call builds, the second reuses
		if err = record(di.Interpolate(src, targets, out)); err != nil {
			return err
		}
		src.Values[0][0] += 1 // in place update keeps the identity
		if err = record(di.Interpolate(src, targets, out)); err != nil {
			return err
		}
		// A new coordinate table is a new identity
		targets, _ = NewCoordinateTable(2, targets.Coords)
		if err = record(di.Interpolate(src, targets, out)); err != nil {
			return err
		}
		// Only rank 0 replaces its field, every rank rebuilds
		if r == 0 {
			src = NewLinearField(parts[r], []float64{0, 1, 1})
		}
		if err = record(di.Interpolate(src, targets, out)); err != nil {
			return err
		}
		di.Invalidate()
		return record(di.Interpolate(src, targets, out))
	})
	require.NoError(t, err)
	want := []step{{false, 1}, {true, 1}, {false, 2}, {false, 3}, {false, 4}}
	for r := range steps {
		assert.Equal(t, want, steps[r], "rank %d", r)
	}
}

func TestStoreRebuildsWhenCoordinatesAreAppended(t *testing.T) {
	m := mesh.NewRectMesh(4, 4, [2]float64{0, 0}, [2]float64{1, 1}, false)
	const size = 2
	coeffs := []float64{1, 2, -1}
	parts, resolvers := partitionedResolvers(t, m, size, OneCellStencil{}, ShapeFunctionWeights{})
	hits := make([][]bool, size)
	outs := make([][][]float64, size)
	err := comm.Run(size, func(c comm.Communicator) error {
		r := c.Rank()
		di := New(c, resolvers[r], WithStore(true))
		src := NewLinearField(parts[r], coeffs)
		targets, err := NewCoordinateTable(2, [][]float64{{0.1, 0.2}})
		if err != nil {
			return err
		}
		for it := 0; it < 2; it++ {
			// Rank 0 grows its table in place on the second pass, the
			// identity stays but the size changes
			if it == 1 && r == 0 {
				targets.Coords = append(targets.Coords, []float64{0.9, 0.7})
			}
			out := targets.NewOutput(1)
			rep, err := di.Interpolate(src, targets, out)
			if err != nil {
				return err
			}
			hits[r] = append(hits[r], rep.CacheHit)
			outs[r] = out
		}
		return nil
	})
	require.NoError(t, err)
	for r := range hits {
		assert.Equal(t, []bool{false, false}, hits[r], "rank %d", r)
	}
	require.Len(t, outs[0][0], 2)
	assert.InDelta(t, EvalLinear(coeffs, []float64{0.1, 0.2}), outs[0][0][0], 1.e-12)
	assert.InDelta(t, EvalLinear(coeffs, []float64{0.9, 0.7}), outs[0][0][1], 1.e-12)
	assert.InDelta(t, EvalLinear(coeffs, []float64{0.1, 0.2}), outs[1][0][0], 1.e-12)
}

func TestInterpolateUnresolvedReport(t *testing.T) {
	m := mesh.NewLineMesh([]float64{0, 1, 2, 3})
	const size = 2
	parts, resolvers := partitionedResolvers(t, m, size, OneCellStencil{}, ShapeFunctionWeights{})
	targets := newTable(t, 1, [][]float64{{-4}, {2.5}})
	reports := make([]*Report, size)
	outs := make([][][]float64, size)
	err := comm.Run(size, func(c comm.Communicator) (err error) {
		r := c.Rank()
		outs[r] = [][]float64{{42, 42}}
		src := NewLinearField(parts[r], []float64{0, 1})
		reports[r], err = New(c, resolvers[r]).Interpolate(src, targets, outs[r])
		return
	})
	require.NoError(t, err)
	for r, rep := range reports {
		assert.Equal(t, []int{-1, 1}, rep.Owners)
		require.Len(t, rep.Unresolved, 1)
		assert.True(t, errors.Is(rep.Err(), ErrUnresolvedPoint))
		// Unresolved outputs are left alone
		assert.Equal(t, 42., outs[r][0][0])
		assert.InDelta(t, 2.5, outs[r][0][1], 1.e-12)
	}
}

func TestInterpolateValidatesBeforeCommunicating(t *testing.T) {
	// Rank 1 never runs: any communication would block forever
	w := comm.NewWorld(2)
	m := mesh.NewLineMesh([]float64{0, 1})
	di := New(w.Comm(0), newResolver(t, m, OneCellStencil{}, ShapeFunctionWeights{}))
	src := NewLinearField(m, []float64{0, 1}, []float64{1, 0})
	targets := newTable(t, 1, [][]float64{{0.5}})

	for name, call := range map[string]func() (*Report, error){
		"var count": func() (*Report, error) {
			return di.InterpolateVars(src, targets, targets.NewOutput(2), []int{0, 1}, []int{0})
		},
		"source range": func() (*Report, error) {
			return di.InterpolateVars(src, targets, targets.NewOutput(2), []int{2}, []int{0})
		},
		"target range": func() (*Report, error) {
			return di.InterpolateVars(src, targets, targets.NewOutput(2), []int{0}, []int{2})
		},
		"output shape": func() (*Report, error) {
			return di.InterpolateVars(src, targets, [][]float64{{}, {}}, []int{0}, []int{1})
		},
		"dimension": func() (*Report, error) {
			return di.Interpolate(src, newTable(t, 2, [][]float64{{0, 0}}), [][]float64{{0}, {0}})
		},
		"short field": func() (*Report, error) {
			return di.Interpolate(NewSourceField(m, [][]float64{{1}}), targets, targets.NewOutput(1))
		},
		"nil source": func() (*Report, error) {
			return di.Interpolate(nil, targets, targets.NewOutput(1))
		},
	} {
		rep, err := call()
		assert.ErrorIs(t, err, ErrInvalidStructure, name)
		assert.Nil(t, rep, name)
	}
}
