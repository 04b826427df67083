package mesh

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedElement = errors.New("mesh: unsupported element type")
	ErrSingularMapping    = errors.New("mesh: singular element mapping")
	ErrOutsideElement     = errors.New("mesh: coordinate outside element")
)

// ElementType represents different element types
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

// Dimension is the topological dimension of the element
func (e ElementType) Dimension() int {
	switch e {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	default:
		return 3
	}
}

// NumNodes is the node count of the linear element
func (e ElementType) NumNodes() int {
	return [...]int{2, 3, 4, 4, 8, 6, 5}[e]
}

// Face represents a face of an element
type Face struct {
	Vertices []int // Sorted vertex indices
	Element  int   // Parent element
	LocalID  int   // Local face ID within element
}

// Mesh is an unstructured mesh, or one rank's partition of one. Vertex and
// element indices are local; GlobalNodeID and GlobalElementID translate them
// to the numbering of the mesh the partition was cut from.
type Mesh struct {
	id  uuid.UUID
	Dim int // Spatial dimension of the coordinates

	// Geometry
	Vertices [][]float64 // Vertex coordinates [nvertices][Dim]

	// Element data
	Elements     [][]int       // Element to vertex connectivity [nelems][nverts_per_elem]
	ElementTypes []ElementType // Element type for each element
	ElementTags  []int         // Physical group/tag for each element

	// Connectivity (built during initialization)
	EToE [][]int // Element to element connectivity [nelems][nfaces_per_elem]
	EToF [][]int // Element to face connectivity [nelems][nfaces_per_elem]
	EToP []int   // Element to partition mapping (set after partitioning)
	VToE [][]int // Vertex to element adjacency, ascending element order

	// Partition bookkeeping, identity maps when the mesh is not a partition
	Partition       int
	GlobalNodeID    []int
	GlobalElementID []int

	// Face data
	Faces        []Face         // All unique faces in mesh
	FaceMap      map[string]int // Map from sorted vertex string to face ID
	BoundaryTags map[int]string // Boundary condition tags

	// Mesh statistics
	NumElements int
	NumVertices int
	NumFaces    int
}

// NewMesh creates an empty mesh with a fresh identity
func NewMesh(dim int) *Mesh {
	return &Mesh{
		id:           uuid.New(),
		Dim:          dim,
		FaceMap:      make(map[string]int),
		BoundaryTags: make(map[int]string),
	}
}

// ID identifies this mesh instance; a re-read or re-partitioned mesh gets a
// new one.
func (m *Mesh) ID() uuid.UUID { return m.id }

// AddVertex appends a vertex and returns its local index
func (m *Mesh) AddVertex(coords ...float64) int {
	if len(coords) != m.Dim {
		panic(fmt.Errorf("vertex has %d coordinates, mesh dimension is %d", len(coords), m.Dim))
	}
	v := make([]float64, m.Dim)
	copy(v, coords)
	m.Vertices = append(m.Vertices, v)
	m.NumVertices = len(m.Vertices)
	return m.NumVertices - 1
}

// AddElement appends an element and returns its local index
func (m *Mesh) AddElement(etype ElementType, verts ...int) int {
	if len(verts) != etype.NumNodes() {
		panic(fmt.Errorf("%s needs %d vertices, have %d", etype, etype.NumNodes(), len(verts)))
	}
	el := make([]int, len(verts))
	copy(el, verts)
	m.Elements = append(m.Elements, el)
	m.ElementTypes = append(m.ElementTypes, etype)
	m.ElementTags = append(m.ElementTags, 0)
	m.NumElements = len(m.Elements)
	return m.NumElements - 1
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".su2":
		return ReadSU2(filename)
	case ".neu":
		return ReadGambit(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// GlobalNode translates a local vertex index
func (m *Mesh) GlobalNode(v int) int {
	if m.GlobalNodeID == nil {
		return v
	}
	return m.GlobalNodeID[v]
}

// GlobalElement translates a local element index
func (m *Mesh) GlobalElement(k int) int {
	if m.GlobalElementID == nil {
		return k
	}
	return m.GlobalElementID[k]
}

// BuildConnectivity builds element-to-element, face and vertex-to-element
// connectivity
func (m *Mesh) BuildConnectivity() {
	m.NumElements = len(m.Elements)
	m.NumVertices = len(m.Vertices)
	m.EToE = make([][]int, m.NumElements)
	m.EToF = make([][]int, m.NumElements)
	m.Faces = m.Faces[:0]
	m.FaceMap = make(map[string]int)

	// Build face connectivity
	for elemID := 0; elemID < m.NumElements; elemID++ {
		faceVertices := GetElementFaces(m.ElementTypes[elemID], m.Elements[elemID])

		m.EToE[elemID] = make([]int, len(faceVertices))
		m.EToF[elemID] = make([]int, len(faceVertices))

		// Initialize to -1 (boundary)
		for i := range m.EToE[elemID] {
			m.EToE[elemID][i] = -1
			m.EToF[elemID][i] = -1
		}

		for localFaceID, faceVerts := range faceVertices {
			sorted := make([]int, len(faceVerts))
			copy(sorted, faceVerts)
			sort.Ints(sorted)

			key := fmt.Sprintf("%v", sorted)

			if faceID, exists := m.FaceMap[key]; exists {
				// Face already exists - this is an interior face
				face := &m.Faces[faceID]
				neighborElem := face.Element
				neighborLocalID := face.LocalID

				m.EToE[elemID][localFaceID] = neighborElem
				m.EToE[neighborElem][neighborLocalID] = elemID

				m.EToF[elemID][localFaceID] = faceID
				m.EToF[neighborElem][neighborLocalID] = faceID
			} else {
				face := Face{
					Vertices: sorted,
					Element:  elemID,
					LocalID:  localFaceID,
				}

				faceID := len(m.Faces)
				m.Faces = append(m.Faces, face)
				m.FaceMap[key] = faceID
				m.EToF[elemID][localFaceID] = faceID
			}
		}
	}
	m.NumFaces = len(m.Faces)

	// Vertex to element, elements visited in ascending order so each list is sorted
	m.VToE = make([][]int, m.NumVertices)
	for elemID, verts := range m.Elements {
		for _, v := range verts {
			if n := len(m.VToE[v]); n == 0 || m.VToE[v][n-1] != elemID {
				m.VToE[v] = append(m.VToE[v], elemID)
			}
		}
	}
}

// GetElementFaces returns the face vertices for each element type
func GetElementFaces(elemType ElementType, vertices []int) [][]int {
	switch elemType {
	case Line:
		return [][]int{
			{vertices[0]}, // Face 0 (left end)
			{vertices[1]}, // Face 1 (right end)
		}
	case Triangle:
		return [][]int{
			{vertices[0], vertices[1]},
			{vertices[1], vertices[2]},
			{vertices[2], vertices[0]},
		}
	case Quad:
		return [][]int{
			{vertices[0], vertices[1]},
			{vertices[1], vertices[2]},
			{vertices[2], vertices[3]},
			{vertices[3], vertices[0]},
		}
	case Tet:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]}, // Face 0
			{vertices[0], vertices[1], vertices[3]}, // Face 1
			{vertices[1], vertices[2], vertices[3]}, // Face 2
			{vertices[0], vertices[3], vertices[2]}, // Face 3
		}
	case Hex:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (bottom)
			{vertices[4], vertices[5], vertices[6], vertices[7]}, // Face 1 (top)
			{vertices[0], vertices[1], vertices[5], vertices[4]}, // Face 2
			{vertices[1], vertices[2], vertices[6], vertices[5]}, // Face 3
			{vertices[2], vertices[3], vertices[7], vertices[6]}, // Face 4
			{vertices[3], vertices[0], vertices[4], vertices[7]}, // Face 5
		}
	case Prism:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]},              // Face 0 (bottom tri)
			{vertices[3], vertices[4], vertices[5]},              // Face 1 (top tri)
			{vertices[0], vertices[1], vertices[4], vertices[3]}, // Face 2 (quad)
			{vertices[1], vertices[2], vertices[5], vertices[4]}, // Face 3 (quad)
			{vertices[2], vertices[0], vertices[3], vertices[5]}, // Face 4 (quad)
		}
	case Pyramid:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (base quad)
			{vertices[0], vertices[1], vertices[4]},              // Face 1 (tri)
			{vertices[1], vertices[2], vertices[4]},              // Face 2 (tri)
			{vertices[2], vertices[3], vertices[4]},              // Face 3 (tri)
			{vertices[3], vertices[0], vertices[4]},              // Face 4 (tri)
		}
	default:
		return [][]int{}
	}
}

// BoundingBox returns the coordinate extent of the mesh
func (m *Mesh) BoundingBox() (min, max []float64) {
	min = make([]float64, m.Dim)
	max = make([]float64, m.Dim)
	for i, v := range m.Vertices {
		for d := 0; d < m.Dim; d++ {
			if i == 0 || v[d] < min[d] {
				min[d] = v[d]
			}
			if i == 0 || v[d] > max[d] {
				max[d] = v[d]
			}
		}
	}
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics(w io.Writer) {
	fmt.Fprintf(w, "Mesh Statistics (partition %d):\n", m.Partition)
	fmt.Fprintf(w, "  Dimension: %d\n", m.Dim)
	fmt.Fprintf(w, "  Vertices: %d\n", m.NumVertices)
	fmt.Fprintf(w, "  Elements: %d\n", m.NumElements)
	fmt.Fprintf(w, "  Faces: %d\n", m.NumFaces)

	typeCounts := make(map[ElementType]int)
	for _, t := range m.ElementTypes {
		typeCounts[t]++
	}
	types := make([]ElementType, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Fprintf(w, "  Element types:\n")
	for _, t := range types {
		fmt.Fprintf(w, "    %s: %d\n", t, typeCounts[t])
	}

	boundaryFaces := 0
	for i := 0; i < m.NumElements && i < len(m.EToE); i++ {
		for _, neighbor := range m.EToE[i] {
			if neighbor < 0 {
				boundaryFaces++
			}
		}
	}
	fmt.Fprintf(w, "  Boundary faces: %d\n", boundaryFaces)
}
