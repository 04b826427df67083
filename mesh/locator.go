package mesh

import (
	"fmt"
	"math"
)

// Locator answers "which local element contains x". A false return means
// not found in this mesh only.
type Locator interface {
	Find(x []float64) (ElementRef, bool)
}

// DefaultContainsTol is the reference coordinate tolerance used by the
// BinLocator, points on shared faces resolve to the lowest element index.
const DefaultContainsTol = 1.e-10

// BinLocator buckets element bounding boxes into a uniform grid of bins
// covering the mesh extent.
type BinLocator struct {
	mesh     *Mesh
	tol      float64
	min, max []float64
	h        []float64
	nb       []int
	bins     [][]int // bin -> ascending element indices
}

type LocatorOption func(bl *BinLocator)

// WithTolerance sets the reference coordinate tolerance of the containment test
func WithTolerance(tol float64) LocatorOption {
	return func(bl *BinLocator) { bl.tol = tol }
}

func NewBinLocator(m *Mesh, opts ...LocatorOption) (bl *BinLocator, err error) {
	if m.Dim < 1 || m.Dim > 3 {
		err = fmt.Errorf("%w: locator needs a 1, 2 or 3D mesh, have %dD", ErrUnsupportedElement, m.Dim)
		return
	}
	bl = &BinLocator{mesh: m, tol: DefaultContainsTol}
	for _, opt := range opts {
		opt(bl)
	}
	if m.NumElements == 0 {
		return
	}
	bl.min, bl.max = m.BoundingBox()
	// Roughly one element per bin
	perDim := int(math.Ceil(math.Pow(float64(m.NumElements), 1./float64(m.Dim))))
	if perDim > 256 {
		perDim = 256
	}
	bl.nb = make([]int, m.Dim)
	bl.h = make([]float64, m.Dim)
	nbins := 1
	for d := 0; d < m.Dim; d++ {
		extent := bl.max[d] - bl.min[d]
		bl.nb[d] = perDim
		if extent <= 0 {
			bl.nb[d] = 1
			extent = 1
		}
		bl.h[d] = extent / float64(bl.nb[d])
		nbins *= bl.nb[d]
	}
	bl.bins = make([][]int, nbins)
	for k := 0; k < m.NumElements; k++ {
		el := ElementRef{Mesh: m, Index: k}
		if err = el.checkSupported(); err != nil {
			return nil, err
		}
		emin, emax := el.Bounds()
		for d := range emin {
			slack := bl.tol * (emax[d] - emin[d])
			emin[d] -= slack
			emax[d] += slack
		}
		lo, hi := bl.binRange(emin), bl.binRange(emax)
		bl.forEachBin(lo, hi, func(b int) {
			bl.bins[b] = append(bl.bins[b], k)
		})
	}
	return
}

func (bl *BinLocator) binRange(x []float64) (ijk []int) {
	ijk = make([]int, len(x))
	for d, v := range x {
		i := int(math.Floor((v - bl.min[d]) / bl.h[d]))
		if i < 0 {
			i = 0
		}
		if i >= bl.nb[d] {
			i = bl.nb[d] - 1
		}
		ijk[d] = i
	}
	return
}

func (bl *BinLocator) binIndex(ijk []int) (b int) {
	stride := 1
	for d, i := range ijk {
		b += i * stride
		stride *= bl.nb[d]
	}
	return
}

func (bl *BinLocator) forEachBin(lo, hi []int, fn func(b int)) {
	ijk := make([]int, len(lo))
	copy(ijk, lo)
	for {
		fn(bl.binIndex(ijk))
		d := 0
		for ; d < len(ijk); d++ {
			ijk[d]++
			if ijk[d] <= hi[d] {
				break
			}
			ijk[d] = lo[d]
		}
		if d == len(ijk) {
			return
		}
	}
}

func (bl *BinLocator) Find(x []float64) (el ElementRef, found bool) {
	if len(bl.bins) == 0 || len(x) != bl.mesh.Dim {
		return
	}
	for d, v := range x {
		slack := bl.tol * (bl.max[d] - bl.min[d])
		if v < bl.min[d]-slack || v > bl.max[d]+slack {
			return
		}
	}
	for _, k := range bl.bins[bl.binIndex(bl.binRange(x))] {
		cand := ElementRef{Mesh: bl.mesh, Index: k}
		if cand.Contains(x, bl.tol) {
			return cand, true
		}
	}
	return
}
