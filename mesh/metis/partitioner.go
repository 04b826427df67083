// Package metis partitions a mesh element graph with METIS
package metis

import (
	"fmt"
	"math"
	"sort"

	gometis "github.com/notargets/go-metis"
	"go.uber.org/zap"

	"github.com/notargets/gointerp/mesh"
)

// Objective selects what METIS minimises
type Objective string

const (
	ObjectiveCut Objective = "cut" // edge cut
	ObjectiveVol Objective = "vol" // communication volume
)

// Config holds configuration for mesh partitioning
type Config struct {
	NumPartitions    int
	ImbalanceFactor  float32 // e.g., 1.05 for 5% imbalance
	UseEdgeWeights   bool
	UseVertexWeights bool
	Objective        Objective
}

// DefaultConfig returns default partitioning configuration
func DefaultConfig(nparts int) *Config {
	return &Config{
		NumPartitions:    nparts,
		ImbalanceFactor:  1.05,
		UseEdgeWeights:   true,
		UseVertexWeights: true,
		Objective:        ObjectiveVol,
	}
}

// Partitioner assigns the elements of a mesh to partitions. Vertex weights
// model the cost of locating a point in an element, edge weights the number
// of shared nodes whose stencils cross the cut.
type Partitioner struct {
	mesh   *mesh.Mesh
	config *Config
	log    *zap.Logger

	elementCost func(et mesh.ElementType) int32
	faceCost    func(faceVertices int) int32
}

func NewPartitioner(m *mesh.Mesh, config *Config, log *zap.Logger) *Partitioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Partitioner{
		mesh:   m,
		config: config,
		log:    log,
		// Inverse mapping cost: affine solve for simplices, Newton for tensor elements
		elementCost: func(et mesh.ElementType) int32 {
			switch et {
			case mesh.Quad:
				return 3
			case mesh.Hex:
				return 6
			default:
				return 1
			}
		},
		faceCost: func(faceVertices int) int32 { return int32(faceVertices) },
	}
}

// Partition runs METIS and returns the element to partition map, which is
// also stored in the mesh EToP.
func (p *Partitioner) Partition() (eToP []int, err error) {
	m := p.mesh
	if p.config.NumPartitions < 1 {
		err = fmt.Errorf("partition count must be positive, have %d", p.config.NumPartitions)
		return
	}
	if m.EToE == nil && m.NumElements > 0 {
		m.BuildConnectivity()
	}
	// METIS rejects a single part and graphs smaller than the part count
	if p.config.NumPartitions == 1 || m.NumElements <= p.config.NumPartitions {
		eToP = mesh.PartitionByIndex(m, p.config.NumPartitions)
		p.analyze(eToP, 0)
		return
	}
	p.log.Info("partitioning mesh",
		zap.Int("elements", m.NumElements), zap.Int("parts", p.config.NumPartitions))

	xadj, adjncy, vwgt, adjwgt := p.buildGraph()

	opts := make([]int32, gometis.NoOptions)
	if err = gometis.SetDefaultOptions(opts); err != nil {
		err = fmt.Errorf("failed to set METIS options: %w", err)
		return
	}
	if p.config.Objective == ObjectiveCut {
		opts[gometis.OptionObjType] = gometis.ObjTypeCut
	} else {
		opts[gometis.OptionObjType] = gometis.ObjTypeVol
	}
	ubvec := []float32{p.config.ImbalanceFactor}

	part, objval, err := gometis.PartGraphKwayWeighted(
		xadj, adjncy, vwgt, adjwgt,
		int32(p.config.NumPartitions), nil, ubvec, opts,
	)
	if err != nil {
		err = fmt.Errorf("METIS partitioning failed: %w", err)
		return
	}
	eToP = make([]int, m.NumElements)
	for k := range eToP {
		eToP[k] = int(part[k])
	}
	m.EToP = eToP
	p.analyze(eToP, objval)
	return
}

// buildGraph converts the mesh dual graph to METIS CSR form
func (p *Partitioner) buildGraph() (xadj, adjncy, vwgt, adjwgt []int32) {
	m := p.mesh
	ne := m.NumElements
	if p.config.UseVertexWeights {
		vwgt = make([]int32, ne)
		for k := 0; k < ne; k++ {
			vwgt[k] = p.elementCost(m.ElementTypes[k])
		}
	}
	xadj = make([]int32, ne+1)
	for k := 0; k < ne; k++ {
		for f, nbr := range m.EToE[k] {
			if nbr < 0 || nbr == k {
				continue
			}
			adjncy = append(adjncy, int32(nbr))
			if p.config.UseEdgeWeights {
				face := m.Faces[m.EToF[k][f]]
				adjwgt = append(adjwgt, p.faceCost(len(face.Vertices)))
			}
		}
		xadj[k+1] = int32(len(adjncy))
	}
	return
}

// Stats holds statistics for a single partition
type Stats struct {
	ID          int
	NumElements int
	Load        int64
	Neighbors   map[int]int // neighbor partition -> shared faces
}

// Analyze computes per-partition load and interface statistics
func (p *Partitioner) Analyze(eToP []int) (stats []Stats, cutFaces int) {
	m := p.mesh
	stats = make([]Stats, p.config.NumPartitions)
	for i := range stats {
		stats[i].ID = i
		stats[i].Neighbors = make(map[int]int)
	}
	for k := 0; k < m.NumElements; k++ {
		st := &stats[eToP[k]]
		st.NumElements++
		st.Load += int64(p.elementCost(m.ElementTypes[k]))
		for _, nbr := range m.EToE[k] {
			if nbr > k && eToP[nbr] != eToP[k] {
				cutFaces++
				stats[eToP[k]].Neighbors[eToP[nbr]]++
				stats[eToP[nbr]].Neighbors[eToP[k]]++
			}
		}
	}
	return
}

func (p *Partitioner) analyze(eToP []int, objval int32) {
	stats, cutFaces := p.Analyze(eToP)
	var (
		avgLoad float64
		maxLoad int64
		minLoad int64 = math.MaxInt64
	)
	for _, st := range stats {
		avgLoad += float64(st.Load)
		maxLoad = max(maxLoad, st.Load)
		minLoad = min(minLoad, st.Load)
	}
	avgLoad /= float64(len(stats))
	imbalance := 0.
	if avgLoad > 0 {
		imbalance = float64(maxLoad)/avgLoad - 1.
	}
	p.log.Info("partition analysis",
		zap.Int32("objective", objval),
		zap.Int("cutFaces", cutFaces),
		zap.Float64("imbalancePct", imbalance*100),
		zap.Int64("minLoad", minLoad),
		zap.Int64("maxLoad", maxLoad))
	for _, st := range stats {
		nbrs := make([]int, 0, len(st.Neighbors))
		for q := range st.Neighbors {
			nbrs = append(nbrs, q)
		}
		sort.Ints(nbrs)
		p.log.Debug("partition",
			zap.Int("id", st.ID),
			zap.Int("elements", st.NumElements),
			zap.Int64("load", st.Load),
			zap.Ints("neighbors", nbrs))
	}
}
