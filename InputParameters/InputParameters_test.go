package InputParameters

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gointerp/interp"
)

var jobFile = []byte(`
Title: Ring test
Ranks: 3
Store: true
Iterations: 2
Stencil:
  Kind: ring
  Rings: 1
  MinSize: 4
Weights: pseudolaplacian
Mesh:
  Generate:
    Kind: rect
    Cells: [4, 3]
    Min: [0, 0]
    Max: [1, 1]
    Elements: quad
Variables:
  rho: [1, 0.5, -2]
  p: [3]
Probes:
  - [0.5, 0.5]
  - [2, 2]
Targets:
  Kind: grid
  Count: 5
`)

func TestParse(t *testing.T) {
	var ip InterpParameters
	require.NoError(t, ip.Parse(jobFile))
	assert.Equal(t, "Ring test", ip.Title)
	assert.Equal(t, 3, ip.Ranks)
	assert.True(t, ip.Store)
	assert.Equal(t, StencilParameters{Kind: "ring", Rings: 1, MinSize: 4}, ip.Stencil)
	assert.Equal(t, []int{4, 3}, ip.Mesh.Generate.Cells)
	assert.Equal(t, 5, ip.Targets.Count)
	assert.Equal(t, 2, ip.Dim())
	assert.Equal(t, []string{"p", "rho"}, ip.VariableNames())
	assert.Equal(t, []float64{1, 0.5, -2}, ip.Variables["rho"])
	assert.Equal(t, "index", ip.Partitioner)
	require.NoError(t, ip.Validate())

	var buf bytes.Buffer
	ip.Print(&buf)
	assert.Contains(t, buf.String(), "Variables[rho] = [1 0.5 -2]")
	assert.Contains(t, buf.String(), "\"Ring test\"")
}

func TestDefaults(t *testing.T) {
	var ip InterpParameters
	require.NoError(t, ip.Parse([]byte(`
Mesh:
  Generate: {Kind: box, Cells: [1, 1, 1], Min: [0, 0, 0], Max: [1, 1, 1]}
Variables: {u: [0, 1, 1, 1]}
`)))
	assert.Equal(t, 1, ip.Ranks)
	assert.Equal(t, 1, ip.Iterations)
	assert.Equal(t, "onecell", ip.Stencil.Kind)
	assert.Equal(t, "shape", ip.Weights)
	assert.Equal(t, "tet", ip.Mesh.Generate.Elements)
	assert.Equal(t, "random", ip.Targets.Kind)
	assert.NoError(t, ip.Validate())
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(ip *InterpParameters){
		"ranks":           func(ip *InterpParameters) { ip.Ranks = -1 },
		"shape with ring": func(ip *InterpParameters) { ip.Weights = "shape" },
		"stencil kind":    func(ip *InterpParameters) { ip.Stencil.Kind = "octree" },
		"weight kind":     func(ip *InterpParameters) { ip.Weights = "rbf" },
		"both meshes":     func(ip *InterpParameters) { ip.Mesh.File = "a.su2" },
		"no mesh":         func(ip *InterpParameters) { ip.Mesh.Generate = nil },
		"mesh kind":       func(ip *InterpParameters) { ip.Mesh.Generate.Kind = "sphere" },
		"extent":          func(ip *InterpParameters) { ip.Mesh.Generate.Max[0] = -1 },
		"cells":           func(ip *InterpParameters) { ip.Mesh.Generate.Cells = []int{4} },
		"zero cells":      func(ip *InterpParameters) { ip.Mesh.Generate.Cells[1] = 0 },
		"target count":    func(ip *InterpParameters) { ip.Targets.Count = -1 },
		"elements":        func(ip *InterpParameters) { ip.Mesh.Generate.Elements = "hex" },
		"no variables":    func(ip *InterpParameters) { ip.Variables = nil },
		"coefficients":    func(ip *InterpParameters) { ip.Variables["p"] = []float64{1, 2, 3, 4} },
		"probe dim":       func(ip *InterpParameters) { ip.Probes[1] = []float64{1} },
		"targets":         func(ip *InterpParameters) { ip.Targets.Kind = "sobol" },
		"partitioner":     func(ip *InterpParameters) { ip.Partitioner = "scotch" },
	} {
		ip := &InterpParameters{}
		require.NoError(t, ip.Parse(jobFile))
		mutate(ip)
		assert.ErrorIs(t, ip.Validate(), interp.ErrSetup, name)
	}
}

func TestSingleLetterKeyIsDropped(t *testing.T) {
	// YAML 1.1 reads a bare N as the boolean false, so the counts never arrive
	var ip InterpParameters
	require.NoError(t, ip.Parse([]byte(`
Mesh:
  Generate: {Kind: rect, N: [4, 3], Min: [0, 0], Max: [1, 1]}
Variables: {u: [1]}
`)))
	assert.Empty(t, ip.Mesh.Generate.Cells)
	assert.ErrorIs(t, ip.Validate(), interp.ErrSetup)
}
