package mesh

import (
	"fmt"

	"github.com/notargets/gointerp/utils"
)

// PartitionByIndex assigns contiguous blocks of elements to nparts
// partitions and records the assignment in m.EToP.
func PartitionByIndex(m *Mesh, nparts int) []int {
	pm := utils.NewPartitionMap(nparts, m.NumElements)
	m.EToP = pm.Owners()
	return m.EToP
}

// Extract builds the local mesh of partition part. Vertices are renumbered in
// first-use order; GlobalNodeID and GlobalElementID map back to m's global
// numbering, so extracting from an already partitioned mesh stays global.
func Extract(m *Mesh, eToP []int, part int) (pm *Mesh, err error) {
	if len(eToP) != m.NumElements {
		err = fmt.Errorf("partition map has %d entries for %d elements", len(eToP), m.NumElements)
		return
	}
	pm = NewMesh(m.Dim)
	pm.Partition = part
	local := make(map[int]int)
	for k, p := range eToP {
		if p != part {
			continue
		}
		verts := make([]int, len(m.Elements[k]))
		for i, v := range m.Elements[k] {
			lv, ok := local[v]
			if !ok {
				lv = pm.AddVertex(m.Vertices[v][:m.Dim]...)
				local[v] = lv
				pm.GlobalNodeID = append(pm.GlobalNodeID, m.GlobalNode(v))
			}
			verts[i] = lv
		}
		lk := pm.AddElement(m.ElementTypes[k], verts...)
		pm.ElementTags[lk] = m.ElementTags[k]
		pm.GlobalElementID = append(pm.GlobalElementID, m.GlobalElement(k))
	}
	for tag, name := range m.BoundaryTags {
		pm.BoundaryTags[tag] = name
	}
	pm.BuildConnectivity()
	return
}

// Split extracts every partition named by eToP, nparts of them, in order
func Split(m *Mesh, eToP []int, nparts int) (parts []*Mesh, err error) {
	parts = make([]*Mesh, nparts)
	for p := 0; p < nparts; p++ {
		if parts[p], err = Extract(m, eToP, p); err != nil {
			return nil, err
		}
	}
	return
}
