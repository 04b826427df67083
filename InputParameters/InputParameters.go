package InputParameters

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/gointerp/interp"
)

// InterpParameters describes an interpolation job, obtained from the YAML
// input file
type InterpParameters struct {
	Title       string               `json:"Title"`
	Ranks       int                  `json:"Ranks"`
	Store       bool                 `json:"Store"`
	Iterations  int                  `json:"Iterations"`
	Stencil     StencilParameters    `json:"Stencil"`
	Weights     string               `json:"Weights"`
	Mesh        MeshParameters       `json:"Mesh"`
	Partitioner string               `json:"Partitioner"` // index or metis
	Variables   map[string][]float64 `json:"Variables"`   // Name -> linear coefficients c0 + c1 x + c2 y + c3 z
	Probes      [][]float64          `json:"Probes"`
	Targets     TargetParameters     `json:"Targets"`
}

type StencilParameters struct {
	Kind         string `json:"Kind"`
	Rings        int    `json:"Rings"`
	MinSize      int    `json:"MinSize"`
	FailBelowMin bool   `json:"FailBelowMin"`
}

type MeshParameters struct {
	File     string              `json:"File"`
	Generate *GenerateParameters `json:"Generate"`
}

// GenerateParameters describes a structured mesh: Kind is line, rect or box.
// Keys avoid single letters like N, which YAML 1.1 reads as booleans.
type GenerateParameters struct {
	Kind     string    `json:"Kind"`
	Cells    []int     `json:"Cells"` // Cells per direction
	Min      []float64 `json:"Min"`
	Max      []float64 `json:"Max"`
	Elements string    `json:"Elements"` // tri, quad, tet or hex
}

// TargetParameters describes the target cloud: Kind is random or grid
type TargetParameters struct {
	Kind  string `json:"Kind"`
	Count int    `json:"Count"`
	Seed  int64  `json:"Seed"`
}

func (ip *InterpParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	ip.applyDefaults()
	return nil
}

func (ip *InterpParameters) applyDefaults() {
	if ip.Ranks == 0 {
		ip.Ranks = 1
	}
	if ip.Iterations == 0 {
		ip.Iterations = 1
	}
	if ip.Stencil.Kind == "" {
		ip.Stencil.Kind = interp.OneCell.String()
	}
	if ip.Weights == "" {
		ip.Weights = interp.ShapeFunction.String()
	}
	if ip.Partitioner == "" {
		ip.Partitioner = "index"
	}
	if ip.Targets.Kind == "" {
		ip.Targets.Kind = "random"
	}
	if g := ip.Mesh.Generate; g != nil && g.Elements == "" {
		switch g.Kind {
		case "rect":
			g.Elements = "tri"
		case "box":
			g.Elements = "tet"
		}
	}
}

// Dim is the spatial dimension of a generated mesh, 0 when read from a file
func (ip *InterpParameters) Dim() int {
	if ip.Mesh.Generate == nil {
		return 0
	}
	switch ip.Mesh.Generate.Kind {
	case "line":
		return 1
	case "rect":
		return 2
	case "box":
		return 3
	}
	return 0
}

// VariableNames returns the variable names in sorted order, the order of the
// interpolated field's variables
func (ip *InterpParameters) VariableNames() (names []string) {
	for name := range ip.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Validate checks the job is runnable before any rank starts
func (ip *InterpParameters) Validate() error {
	setup := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", interp.ErrSetup, fmt.Sprintf(format, args...))
	}
	if ip.Ranks < 1 {
		return setup("Ranks must be positive, have %d", ip.Ranks)
	}
	if ip.Iterations < 1 {
		return setup("Iterations must be positive, have %d", ip.Iterations)
	}
	sk, err := interp.ParseStencilKind(ip.Stencil.Kind)
	if err != nil {
		return err
	}
	if ip.Stencil.Rings < 0 {
		return setup("Stencil.Rings must not be negative, have %d", ip.Stencil.Rings)
	}
	wk, err := interp.ParseWeightKind(ip.Weights)
	if err != nil {
		return err
	}
	if sk == interp.Ring && ip.Stencil.Rings > 0 && wk == interp.ShapeFunction {
		return setup("%s weights need a single element stencil, Stencil.Rings is %d",
			wk, ip.Stencil.Rings)
	}
	switch strings.ToLower(ip.Partitioner) {
	case "index", "metis":
	default:
		return setup("unknown Partitioner %q", ip.Partitioner)
	}
	if (ip.Mesh.File == "") == (ip.Mesh.Generate == nil) {
		return setup("exactly one of Mesh.File and Mesh.Generate is required")
	}
	if err = ip.validateGenerate(); err != nil {
		return err
	}
	if len(ip.Variables) == 0 {
		return setup("at least one variable is required")
	}
	dim := ip.Dim()
	for name, c := range ip.Variables {
		if len(c) == 0 || (dim > 0 && len(c) > dim+1) {
			return setup("variable %s has %d coefficients", name, len(c))
		}
	}
	for i, p := range ip.Probes {
		if len(p) < 1 || len(p) > 3 || (dim > 0 && len(p) != dim) || len(p) != len(ip.Probes[0]) {
			return setup("probe %d has dimension %d", i, len(p))
		}
	}
	switch ip.Targets.Kind {
	case "random", "grid":
	default:
		return setup("unknown Targets.Kind %q", ip.Targets.Kind)
	}
	if ip.Targets.Count < 0 {
		return setup("Targets.Count must not be negative, have %d", ip.Targets.Count)
	}
	return nil
}

func (ip *InterpParameters) validateGenerate() error {
	g := ip.Mesh.Generate
	if g == nil {
		return nil
	}
	dim := ip.Dim()
	if dim == 0 {
		return fmt.Errorf("%w: unknown Mesh.Generate.Kind %q", interp.ErrSetup, g.Kind)
	}
	if len(g.Cells) != dim || len(g.Min) != dim || len(g.Max) != dim {
		return fmt.Errorf("%w: %s mesh needs %d values for Cells, Min and Max", interp.ErrSetup, g.Kind, dim)
	}
	for d := 0; d < dim; d++ {
		if g.Cells[d] < 1 || g.Min[d] >= g.Max[d] {
			return fmt.Errorf("%w: bad extent in direction %d", interp.ErrSetup, d)
		}
	}
	allowed := map[string][]string{
		"line": {"", "line"},
		"rect": {"tri", "quad"},
		"box":  {"tet", "hex"},
	}[g.Kind]
	for _, e := range allowed {
		if g.Elements == e {
			return nil
		}
	}
	return fmt.Errorf("%w: %s mesh cannot use %q elements", interp.ErrSetup, g.Kind, g.Elements)
}

func (ip *InterpParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Ranks\n", ip.Ranks)
	fmt.Fprintf(w, "[%v]\t\t\t= Store\n", ip.Store)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Iterations\n", ip.Iterations)
	fmt.Fprintf(w, "[%s, rings=%d, min=%d]\t= Stencil\n", ip.Stencil.Kind, ip.Stencil.Rings, ip.Stencil.MinSize)
	fmt.Fprintf(w, "[%s]\t\t\t= Weights\n", ip.Weights)
	fmt.Fprintf(w, "[%s]\t\t\t= Partitioner\n", ip.Partitioner)
	if ip.Mesh.File != "" {
		fmt.Fprintf(w, "[%s]\t= Mesh File\n", ip.Mesh.File)
	} else if g := ip.Mesh.Generate; g != nil {
		fmt.Fprintf(w, "[%s %s %v]\t= Mesh\n", g.Kind, g.Elements, g.Cells)
	}
	for _, name := range ip.VariableNames() {
		fmt.Fprintf(w, "Variables[%s] = %v\n", name, ip.Variables[name])
	}
	for i, p := range ip.Probes {
		fmt.Fprintf(w, "Probes[%d] = %v\n", i, p)
	}
	fmt.Fprintf(w, "[%s, Count=%d]\t\t= Targets\n", ip.Targets.Kind, ip.Targets.Count)
}
