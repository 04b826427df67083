package mesh

import "fmt"

// NewLineMesh builds a 1D mesh of Line elements through the sorted points xs
func NewLineMesh(xs []float64) (m *Mesh) {
	if len(xs) < 2 {
		panic(fmt.Errorf("line mesh needs at least 2 points, have %d", len(xs)))
	}
	m = NewMesh(1)
	for _, x := range xs {
		m.AddVertex(x)
	}
	for i := 0; i < len(xs)-1; i++ {
		m.AddElement(Line, i, i+1)
	}
	m.BuildConnectivity()
	return
}

func lerp(a, b float64, i, n int) float64 {
	return a + (b-a)*float64(i)/float64(n)
}

// NewRectMesh builds an nx by ny grid over [min,max], as Quad elements or
// with each cell split into two Triangles along its rising diagonal.
func NewRectMesh(nx, ny int, min, max [2]float64, quads bool) (m *Mesh) {
	m = NewMesh(2)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.AddVertex(lerp(min[0], max[0], i, nx), lerp(min[1], max[1], j, ny))
		}
	}
	vid := func(i, j int) int { return i + j*(nx+1) }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)
			if quads {
				m.AddElement(Quad, v00, v10, v11, v01)
				continue
			}
			m.AddElement(Triangle, v00, v10, v11)
			m.AddElement(Triangle, v00, v11, v01)
		}
	}
	m.BuildConnectivity()
	return
}

// kuhnTets are the six tetrahedra of a cube sharing the c0-c7 diagonal, with
// corners numbered by bit (x=1, y=2, z=4). All cubes split the same way, so
// the tetrahedral faces conform across cells.
var kuhnTets = [6][4]int{
	{0, 1, 3, 7}, {0, 1, 5, 7}, {0, 2, 3, 7},
	{0, 2, 6, 7}, {0, 4, 5, 7}, {0, 4, 6, 7},
}

// NewBoxMesh builds an nx by ny by nz grid over [min,max], as Hex elements or
// with each cell split into six Tets.
func NewBoxMesh(nx, ny, nz int, min, max [3]float64, hexes bool) (m *Mesh) {
	m = NewMesh(3)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.AddVertex(
					lerp(min[0], max[0], i, nx),
					lerp(min[1], max[1], j, ny),
					lerp(min[2], max[2], k, nz))
			}
		}
	}
	vid := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var c [8]int
				for b := 0; b < 8; b++ {
					c[b] = vid(i+b&1, j+(b>>1)&1, k+(b>>2)&1)
				}
				if hexes {
					m.AddElement(Hex, c[0], c[1], c[3], c[2], c[4], c[5], c[7], c[6])
					continue
				}
				for _, tet := range kuhnTets {
					m.AddElement(Tet, c[tet[0]], c[tet[1]], c[tet[2]], c[tet[3]])
				}
			}
		}
	}
	m.BuildConnectivity()
	return
}
