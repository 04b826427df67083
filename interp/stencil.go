package interp

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/notargets/gointerp/mesh"
)

// Stencil is an ordered set of distinct elements of one mesh, the owning
// element first.
type Stencil []mesh.ElementRef

type StencilKind int

const (
	OneCell StencilKind = iota
	Ring
)

func (k StencilKind) String() string {
	switch k {
	case OneCell:
		return "onecell"
	case Ring:
		return "ring"
	default:
		return fmt.Sprintf("StencilKind(%d)", int(k))
	}
}

func ParseStencilKind(s string) (StencilKind, error) {
	switch strings.ToLower(s) {
	case "onecell", "one_cell", "":
		return OneCell, nil
	case "ring":
		return Ring, nil
	}
	return 0, fmt.Errorf("%w: unknown stencil kind %q", ErrSetup, s)
}

// StencilBuilder grows the stencil around an owning element
type StencilBuilder interface {
	Kind() StencilKind
	Build(el mesh.ElementRef) (Stencil, error)
}

type OneCellStencil struct{}

func (OneCellStencil) Kind() StencilKind { return OneCell }

func (OneCellStencil) Build(el mesh.ElementRef) (Stencil, error) {
	if !el.Valid() {
		return nil, fmt.Errorf("%w: invalid element reference", ErrInvalidStructure)
	}
	return Stencil{el}, nil
}

// RingStencil collects the owning element and every element reachable within
// Rings steps of node sharing. A stencil smaller than MinSize is logged and
// used, or rejected with ErrDegenerateStencil when FailBelowMin is set.
type RingStencil struct {
	Rings        int
	MinSize      int
	FailBelowMin bool
	Logger       *zap.Logger
}

func (RingStencil) Kind() StencilKind { return Ring }

func (rs RingStencil) ringCount() int { return rs.Rings }

func (rs RingStencil) Build(el mesh.ElementRef) (s Stencil, err error) {
	if rs.Rings < 0 {
		err = fmt.Errorf("%w: negative ring count %d", ErrSetup, rs.Rings)
		return
	}
	if !el.Valid() {
		err = fmt.Errorf("%w: invalid element reference", ErrInvalidStructure)
		return
	}
	m := el.Mesh
	if len(m.VToE) != m.NumVertices {
		err = fmt.Errorf("%w: mesh has no node to element adjacency", ErrInvalidStructure)
		return
	}
	visited := map[int]bool{el.Index: true}
	s = Stencil{el}
	frontier := []int{el.Index}
	for ring := 0; ring < rs.Rings && len(frontier) > 0; ring++ {
		var next []int
		for _, k := range frontier {
			for _, node := range m.Elements[k] {
				for _, nbr := range m.VToE[node] {
					if visited[nbr] {
						continue
					}
					visited[nbr] = true
					next = append(next, nbr)
					s = append(s, mesh.ElementRef{Mesh: m, Index: nbr})
				}
			}
		}
		frontier = next
	}
	if len(s) < rs.MinSize {
		if rs.FailBelowMin {
			err = fmt.Errorf("%w: ring stencil of element %d has %d elements, minimum is %d",
				ErrDegenerateStencil, el.Index, len(s), rs.MinSize)
			return nil, err
		}
		logger := rs.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Warn("ring stencil below minimum size",
			zap.Int("element", el.Index),
			zap.Int("size", len(s)),
			zap.Int("minSize", rs.MinSize))
	}
	return
}
