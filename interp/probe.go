package interp

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notargets/gointerp/comm"
	"github.com/notargets/gointerp/mesh"
)

// ProbeLocation is the element holding a probe coordinate, identical on
// every rank
type ProbeLocation struct {
	Owner   int // -1 when no rank holds the coordinate
	Element mesh.ElementID
}

// Probe samples a source field at one fixed coordinate. When the coordinate
// lies on a face shared by several ranks the highest rank owns it.
type Probe struct {
	comm     comm.Communicator
	resolver *PointResolver
	coord    []float64
	log      *zap.Logger

	located  bool
	meshID   uuid.UUID
	location ProbeLocation
	res      *Resolution // owner only
}

func NewProbe(c comm.Communicator, r *PointResolver, coord []float64) *Probe {
	return &Probe{
		comm:     c,
		resolver: r,
		coord:    append([]float64(nil), coord...),
		log:      zap.NewNop(),
	}
}

func (p *Probe) WithLogger(log *zap.Logger) *Probe {
	p.log = log
	return p
}

func (p *Probe) Coord() []float64 { return p.coord }

// Location returns the last successful Locate result
func (p *Probe) Location() (ProbeLocation, bool) { return p.location, p.located }

// Locate finds the owning element. Collective.
func (p *Probe) Locate() (loc ProbeLocation, err error) {
	log := p.log.With(zap.Int("rank", p.comm.Rank()))
	p.located, p.res = false, nil
	res, found, rerr := p.resolver.Resolve(p.coord)
	if rerr != nil {
		log.Debug("probe not resolvable here", zap.Float64s("coord", p.coord), zap.Error(rerr))
		found = false
	}
	cand := -1
	if found {
		cand = p.comm.Rank()
	}
	owner, err := comm.AllReduceMaxInt(p.comm, cand)
	if err != nil {
		return
	}
	if owner < 0 {
		log.Warn("probe not found on any rank", zap.Float64s("coord", p.coord))
		return ProbeLocation{Owner: -1}, &UnresolvedPointError{Index: 0, Coord: p.Coord()}
	}
	var msg comm.Message
	if owner == p.comm.Rank() {
		res.Owner = owner
		p.res = res
		msg.Ints = res.Element.ID().Ints()
	}
	if msg, err = comm.Bcast(p.comm, owner, msg); err != nil {
		return
	}
	id, err := mesh.ElementIDFromInts(msg.Ints)
	if err != nil {
		return
	}
	loc = ProbeLocation{Owner: owner, Element: id}
	p.location, p.located = loc, true
	return
}

// Sample returns the value of every variable of src at the probe, on every
// rank. The location is reused until the source mesh identity changes.
// Collective.
func (p *Probe) Sample(src *SourceField) (vals []float64, err error) {
	if src == nil || src.Mesh == nil {
		err = fmt.Errorf("%w: source field has no mesh", ErrInvalidStructure)
		return
	}
	stale := 0
	if !p.located || p.meshID != src.Mesh.ID() {
		stale = 1
	}
	if stale, err = comm.AllReduceMaxInt(p.comm, stale); err != nil {
		return
	}
	if stale == 1 {
		if _, err = p.Locate(); err != nil {
			return
		}
		p.meshID = src.Mesh.ID()
	}
	var msg comm.Message
	if p.location.Owner == p.comm.Rank() {
		if verr := p.checkSource(src); verr != nil {
			// Tell the others before failing
			_, _ = comm.Bcast(p.comm, p.location.Owner, comm.Message{Ints: []int{0}})
			return nil, verr
		}
		msg.Ints = []int{1}
		msg.Floats = make([]float64, src.NumVars())
		for v := range msg.Floats {
			msg.Floats[v] = p.res.Evaluate(src.Values[v])
		}
	}
	if msg, err = comm.Bcast(p.comm, p.location.Owner, msg); err != nil {
		return
	}
	if len(msg.Ints) != 1 || msg.Ints[0] != 1 {
		return nil, fmt.Errorf("%w: probe owner rank %d could not evaluate the source field",
			ErrInvalidStructure, p.location.Owner)
	}
	return msg.Floats, nil
}

func (p *Probe) checkSource(src *SourceField) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if src.Mesh != p.res.Element.Mesh {
		return fmt.Errorf("%w: source field is not on the probe's mesh", ErrInvalidStructure)
	}
	return nil
}
