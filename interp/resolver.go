package interp

import (
	"fmt"

	"github.com/notargets/gointerp/mesh"
)

// Resolution is what the owning rank keeps for one resolved coordinate
type Resolution struct {
	Owner   int // rank holding Element, -1 until the protocol assigns it
	Element mesh.ElementRef
	Stencil Stencil
	Points  []int // global node ids
	Local   []int // node indices into Element.Mesh
	Weights []float64
}

// Evaluate applies the weights to values indexed by local node
func (res *Resolution) Evaluate(values []float64) (f float64) {
	for i, l := range res.Local {
		f += res.Weights[i] * values[l]
	}
	return
}

// PointResolver turns a coordinate into a Resolution against one rank's
// mesh partition: locate, build the stencil, compute the weights.
type PointResolver struct {
	locator mesh.Locator
	stencil StencilBuilder
	weights WeightFunction
}

// ringed is satisfied by builders whose stencil can extend past one element
type ringed interface{ ringCount() int }

func NewPointResolver(loc mesh.Locator, sb StencilBuilder, wf WeightFunction) (*PointResolver, error) {
	if loc == nil || sb == nil || wf == nil {
		return nil, fmt.Errorf("%w: locator, stencil builder and weight function are required", ErrSetup)
	}
	if rs, ok := sb.(ringed); ok {
		if rs.ringCount() < 0 {
			return nil, fmt.Errorf("%w: negative ring count %d", ErrSetup, rs.ringCount())
		}
		if wf.Kind() == ShapeFunction && rs.ringCount() > 0 {
			return nil, fmt.Errorf("%w: %s weights cannot use a %d ring stencil",
				ErrSetup, wf.Kind(), rs.ringCount())
		}
	}
	return &PointResolver{locator: loc, stencil: sb, weights: wf}, nil
}

func (pr *PointResolver) StencilKind() StencilKind { return pr.stencil.Kind() }
func (pr *PointResolver) WeightKind() WeightKind   { return pr.weights.Kind() }

// Resolve reports found=false when no local element contains coord. An error
// means an element was found but no usable weights could be built from it.
func (pr *PointResolver) Resolve(coord []float64) (res *Resolution, found bool, err error) {
	el, ok := pr.locator.Find(coord)
	if !ok {
		return
	}
	s, err := pr.stencil.Build(el)
	if err != nil {
		return
	}
	w, err := pr.weights.Weights(coord, s)
	if err != nil {
		return
	}
	res = &Resolution{
		Owner:   -1,
		Element: el,
		Stencil: s,
		Points:  w.Points,
		Local:   w.Local,
		Weights: w.W,
	}
	found = true
	return
}
