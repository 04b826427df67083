package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// gambitTypes maps Gambit neutral NTYPE codes to element types
var gambitTypes = map[int]ElementType{
	3: Triangle,
	6: Tet,
}

// ReadGambit reads a Gambit neutral (.neu) file
func ReadGambit(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseGambit(file)
}

// ParseGambit reads the nodes, triangle or tetrahedron cells and element
// groups of a Gambit neutral file. Group numbers become element tags;
// boundary condition sets are not read.
func ParseGambit(r io.Reader) (m *Mesh, err error) {
	var (
		reader                     = bufio.NewReader(r)
		line                       string
		Nv, K, Nmats, Nbcs, Nsd, n int
	)
	// CONTROL INFO block
	if err = skipLines(6, reader); err != nil {
		return
	}
	if line, err = getLine(reader); err != nil {
		return
	}
	var dum int
	if n, _ = fmt.Sscanf(line, "%d %d %d %d %d %d", &Nv, &K, &Nmats, &Nbcs, &Nsd, &dum); n < 5 {
		return nil, fmt.Errorf("malformed gambit header %q", line)
	}
	if Nsd < 2 || Nsd > 3 {
		return nil, fmt.Errorf("gambit file has %d space dimensions, want 2 or 3", Nsd)
	}
	if err = skipLines(2, reader); err != nil {
		return
	}

	m = NewMesh(Nsd)
	coords := make([][]float64, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return nil, fmt.Errorf("reading node %d: %w", i, err)
		}
		var (
			ind int
			x   = make([]float64, 3)
		)
		n, _ = fmt.Sscanf(line, "%d %f %f %f", &ind, &x[0], &x[1], &x[2])
		if n < Nsd+1 {
			return nil, fmt.Errorf("malformed node line %q", line)
		}
		if ind < 1 || ind > Nv {
			return nil, fmt.Errorf("node id %d out of range [1,%d]", ind, Nv)
		}
		coords[ind-1] = x[:Nsd]
	}
	for i, x := range coords {
		if x == nil {
			return nil, fmt.Errorf("gambit node %d never defined", i+1)
		}
		m.AddVertex(x...)
	}
	if err = skipLines(2, reader); err != nil {
		return
	}

	elements := make([][]int, K)
	types := make([]ElementType, K)
	for i := 0; i < K; i++ {
		if line, err = getLine(reader); err != nil {
			return nil, fmt.Errorf("reading element %d: %w", i, err)
		}
		fields := strings.Fields(line)
		var ind, typ, nn int
		if n, _ = fmt.Sscanf(line, "%d %d %d", &ind, &typ, &nn); n < 3 {
			return nil, fmt.Errorf("malformed element line %q", line)
		}
		etype, ok := gambitTypes[typ]
		if !ok {
			return nil, fmt.Errorf("%w: gambit type %d", ErrUnsupportedElement, typ)
		}
		if ind < 1 || ind > K || nn != etype.NumNodes() || len(fields) < 3+nn {
			return nil, fmt.Errorf("malformed %s line %q", etype, line)
		}
		verts := make([]int, nn)
		for j := range verts {
			if _, err = fmt.Sscanf(fields[3+j], "%d", &verts[j]); err != nil {
				return nil, fmt.Errorf("element line %q: %w", line, err)
			}
			if verts[j] < 1 || verts[j] > Nv {
				return nil, fmt.Errorf("element %d references node %d of %d", ind, verts[j], Nv)
			}
			verts[j]--
		}
		elements[ind-1], types[ind-1] = verts, etype
	}
	for k, verts := range elements {
		if verts == nil {
			return nil, fmt.Errorf("gambit element %d never defined", k+1)
		}
		m.AddElement(types[k], verts...)
	}
	if err = skipLines(2, reader); err != nil {
		return
	}

	for g := 0; g < Nmats; g++ {
		if err = readElementGroup(reader, m); err != nil {
			return nil, fmt.Errorf("element group %d: %w", g+1, err)
		}
		// ENDOFSECTION, then the next group's section header
		skip := 2
		if g == Nmats-1 {
			skip = 1
		}
		if err = skipLines(skip, reader); err != nil {
			return
		}
	}
	m.BuildConnectivity()
	return m, nil
}

// readElementGroup tags the listed elements with the group number
//
//	GROUP:           1 ELEMENTS:        977 MATERIAL:      1.000 NFLAGS:          0
//	                  fluid
//	       0
//	       1       2       3 ...
func readElementGroup(reader *bufio.Reader, m *Mesh) (err error) {
	var (
		line      string
		gn, elnum int
		matval    float64
		n         int
	)
	if line, err = getLine(reader); err != nil {
		return
	}
	if n, _ = fmt.Sscanf(line, "GROUP: %d ELEMENTS: %d MATERIAL: %f", &gn, &elnum, &matval); n < 2 {
		return fmt.Errorf("malformed group header %q", line)
	}
	// Title and flags
	if err = skipLines(2, reader); err != nil {
		return
	}
	for read := 0; read < elnum; {
		if line, err = getLine(reader); err != nil {
			return
		}
		for _, f := range strings.Fields(line) {
			var k int
			if _, err = fmt.Sscanf(f, "%d", &k); err != nil {
				return fmt.Errorf("group line %q: %w", line, err)
			}
			if k < 1 || k > m.NumElements {
				return fmt.Errorf("group references element %d of %d", k, m.NumElements)
			}
			m.ElementTags[k-1] = gn
			read++
		}
	}
	return
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err == io.EOF && len(line) > 0 {
		err = nil
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	line = strings.TrimRight(line, "\r\n") // Strip away the newline
	return
}

func skipLines(n int, reader *bufio.Reader) (err error) {
	for i := 0; i < n; i++ {
		if _, err = getLine(reader); err != nil {
			return
		}
	}
	return
}
