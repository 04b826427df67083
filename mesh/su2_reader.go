package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadSU2 reads an SU2 native format file
func ReadSU2(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseSU2(file)
}

// su2Types maps SU2 (VTK) element identifiers to element types
var su2Types = map[int]ElementType{
	3:  Line,
	5:  Triangle,
	9:  Quad,
	10: Tet,
	12: Hex,
	13: Prism,
	14: Pyramid,
}

// ParseSU2 reads the volume elements, points and marker names of an SU2 mesh
func ParseSU2(r io.Reader) (*Mesh, error) {
	var (
		mesh    *Mesh
		scanner = bufio.NewScanner(r)
		ndime   int
		points  [][]float64
	)
	next := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments
		if strings.HasPrefix(line, "%") || line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "NDIME="):
			fmt.Sscanf(line, "NDIME=%d", &ndime)
			if ndime < 1 || ndime > 3 {
				return nil, fmt.Errorf("unsupported SU2 dimension NDIME=%d", ndime)
			}
			mesh = NewMesh(ndime)

		case strings.HasPrefix(line, "NELEM="):
			if mesh == nil {
				return nil, fmt.Errorf("NELEM before NDIME in SU2 file")
			}
			var nelem int
			fmt.Sscanf(line, "NELEM=%d", &nelem)
			for i := 0; i < nelem; i++ {
				text, err := next()
				if err != nil {
					return nil, fmt.Errorf("reading element %d: %w", i, err)
				}
				fields := strings.Fields(text)
				if len(fields) < 2 {
					return nil, fmt.Errorf("malformed element line %q", text)
				}
				su2Type, _ := strconv.Atoi(fields[0])
				etype, ok := su2Types[su2Type]
				if !ok {
					return nil, fmt.Errorf("%w: SU2 type %d", ErrUnsupportedElement, su2Type)
				}
				numNodes := etype.NumNodes()
				if len(fields) < numNodes+1 {
					return nil, fmt.Errorf("element line %q has too few nodes for %s", text, etype)
				}
				verts := make([]int, numNodes)
				for j := 0; j < numNodes; j++ {
					if verts[j], err = strconv.Atoi(fields[1+j]); err != nil {
						return nil, fmt.Errorf("element line %q: %w", text, err)
					}
				}
				// SU2 stores quads and hexes in the same counter clockwise
				// order the tensor basis uses
				mesh.AddElement(etype, verts...)
			}

		case strings.HasPrefix(line, "NPOIN="):
			if mesh == nil {
				return nil, fmt.Errorf("NPOIN before NDIME in SU2 file")
			}
			var npoin int
			fmt.Sscanf(line, "NPOIN=%d", &npoin)
			points = make([][]float64, npoin)
			for i := 0; i < npoin; i++ {
				text, err := next()
				if err != nil {
					return nil, fmt.Errorf("reading point %d: %w", i, err)
				}
				fields := strings.Fields(text)
				if len(fields) < ndime {
					return nil, fmt.Errorf("malformed point line %q", text)
				}
				coords := make([]float64, ndime)
				for j := 0; j < ndime; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("point line %q: %w", text, err)
					}
				}
				// Point ID is the optional last field
				ptID := i
				if len(fields) > ndime {
					ptID, _ = strconv.Atoi(fields[len(fields)-1])
				}
				if ptID < 0 || ptID >= npoin {
					return nil, fmt.Errorf("point id %d out of range [0,%d)", ptID, npoin)
				}
				points[ptID] = coords
			}

		case strings.HasPrefix(line, "NMARK="):
			if mesh == nil {
				return nil, fmt.Errorf("NMARK before NDIME in SU2 file")
			}
			var nmark int
			fmt.Sscanf(line, "NMARK=%d", &nmark)
			for i := 0; i < nmark; i++ {
				markerLine, err := next()
				if err != nil {
					return nil, err
				}
				if !strings.HasPrefix(markerLine, "MARKER_TAG=") {
					return nil, fmt.Errorf("expected MARKER_TAG, have %q", markerLine)
				}
				mesh.BoundaryTags[i] = strings.TrimSpace(strings.TrimPrefix(markerLine, "MARKER_TAG="))

				elemLine, err := next()
				if err != nil {
					return nil, err
				}
				var nMarkerElems int
				fmt.Sscanf(elemLine, "MARKER_ELEMS=%d", &nMarkerElems)
				// Boundary elements are not needed for interpolation
				for j := 0; j < nMarkerElems; j++ {
					if _, err = next(); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if mesh == nil {
		return nil, fmt.Errorf("SU2 file has no NDIME header")
	}
	for i, p := range points {
		if p == nil {
			return nil, fmt.Errorf("SU2 point %d never defined", i)
		}
		mesh.AddVertex(p...)
	}
	for k, el := range mesh.Elements {
		for _, v := range el {
			if v < 0 || v >= len(points) {
				return nil, fmt.Errorf("element %d references point %d of %d", k, v, len(points))
			}
		}
	}
	mesh.BuildConnectivity()
	return mesh, nil
}
