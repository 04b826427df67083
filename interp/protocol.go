package interp

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/gointerp/comm"
)

// RingPartners is the resolution schedule: in round pid rank sends its
// unresolved coordinates pid ranks forward and serves the rank pid behind.
func RingPartners(rank, pid, size int) (sendTo, recvFrom int) {
	sendTo = (rank + pid) % size
	recvFrom = (size + rank - pid) % size
	return
}

// ValuePartners is the value schedule, the reverse of RingPartners: in round
// pid rank returns values to the rank pid behind and collects from the rank
// pid forward.
func ValuePartners(rank, pid, size int) (sendTo, recvFrom int) {
	sendTo = (rank - pid + size) % size
	recvFrom = (rank + pid) % size
	return
}

// ResolutionState is one rank's outcome of the resolution protocol
type ResolutionState struct {
	Owner      []int           // target index -> owning rank, -1 unresolved
	Expected   [][]int         // rank t -> target indices t returns values for, in t's order
	Remote     [][]*Resolution // rank q -> records resolved on behalf of q
	Unresolved []UnresolvedPointError
	Rounds     int
	Sent       []int // coordinates transmitted per round
}

func newResolutionState(size, ntargets int) *ResolutionState {
	st := &ResolutionState{
		Owner:    make([]int, ntargets),
		Expected: make([][]int, size),
		Remote:   make([][]*Resolution, size),
		Sent:     make([]int, 0, size),
	}
	for i := range st.Owner {
		st.Owner[i] = -1
	}
	return st
}

// ResolveRanks finds, for every coordinate of targets, the rank whose
// partition resolves it. Every rank must call it; it completes in exactly
// Size() rounds of ring exchange.
func ResolveRanks(c comm.Communicator, pr *PointResolver, targets *CoordinateTable,
	log *zap.Logger) (st *ResolutionState, err error) {
	if pr == nil || targets == nil {
		err = fmt.Errorf("%w: resolver and targets are required", ErrSetup)
		return
	}
	log = rankLogger(log, c)
	size := c.Size()
	st = newResolutionState(size, targets.Len())
	unresolved := allIndices(targets.Len())

	for pid := 0; pid < size; pid++ {
		sendTo, recvFrom := RingPartners(c.Rank(), pid, size)
		batch, err := swapBatch(c, targets, unresolved, sendTo, recvFrom)
		if err != nil {
			return nil, err
		}
		st.Sent = append(st.Sent, len(unresolved))

		// Serve recvFrom
		positions, recs := pr.resolveBatch(batch, c.Rank(), log)
		st.Remote[recvFrom] = append(st.Remote[recvFrom], recs...)
		if err = c.Send(recvFrom, comm.Message{Ints: positions}); err != nil {
			return nil, err
		}

		// Collect what sendTo found of ours
		reply, err := c.Recv(sendTo)
		if err != nil {
			return nil, err
		}
		found, err := checkPositions(reply.Ints, len(unresolved))
		if err != nil {
			return nil, err
		}
		for _, pos := range reply.Ints {
			idx := unresolved[pos]
			st.Owner[idx] = sendTo
			st.Expected[sendTo] = append(st.Expected[sendTo], idx)
		}
		unresolved = removeFound(unresolved, found)
		st.Rounds++
		log.Debug("resolution round",
			zap.Int("pid", pid),
			zap.Int("sendTo", sendTo),
			zap.Int("recvFrom", recvFrom),
			zap.Int("sent", st.Sent[pid]),
			zap.Int("served", len(positions)),
			zap.Int("resolved", len(reply.Ints)))
	}
	st.Unresolved = unresolvedErrors(targets, unresolved)
	if len(st.Unresolved) > 0 {
		log.Warn("coordinates not resolved on any rank", zap.Int("count", len(st.Unresolved)))
	}
	return
}

func rankLogger(log *zap.Logger, c comm.Communicator) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.Int("rank", c.Rank()))
}

func allIndices(n int) (idx []int) {
	idx = make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return
}

// swapBatch sends the coordinates at idx to sendTo and receives recvFrom's
// batch of coordinates
func swapBatch(c comm.Communicator, targets *CoordinateTable, idx []int,
	sendTo, recvFrom int) (batch [][]float64, err error) {
	flat := make([]float64, 0, len(idx)*targets.Dim)
	for _, i := range idx {
		flat = append(flat, targets.Coords[i]...)
	}
	if err = c.Send(sendTo, comm.Message{Ints: []int{targets.Dim}, Floats: flat}); err != nil {
		return
	}
	m, err := c.Recv(recvFrom)
	if err != nil {
		return
	}
	if len(m.Ints) != 1 || m.Ints[0] != targets.Dim || len(m.Floats)%targets.Dim != 0 {
		err = fmt.Errorf("%w: rank %d sent a malformed coordinate batch", ErrInvalidStructure, recvFrom)
		return
	}
	batch = make([][]float64, len(m.Floats)/targets.Dim)
	for j := range batch {
		batch[j] = m.Floats[j*targets.Dim : (j+1)*targets.Dim]
	}
	return
}

// resolveBatch resolves received coordinates on behalf of a peer, returning
// the batch positions found and their records
func (pr *PointResolver) resolveBatch(batch [][]float64, rank int,
	log *zap.Logger) (positions []int, recs []*Resolution) {
	positions = make([]int, 0, len(batch))
	for j, x := range batch {
		res, found, err := pr.Resolve(x)
		if err != nil {
			if errors.Is(err, ErrDegenerateStencil) {
				log.Debug("degenerate stencil", zap.Float64s("coord", x), zap.Error(err))
			} else {
				log.Warn("resolve failed", zap.Float64s("coord", x), zap.Error(err))
			}
			continue
		}
		if !found {
			continue
		}
		res.Owner = rank
		positions = append(positions, j)
		recs = append(recs, res)
	}
	return
}

// checkPositions validates a reply against the batch we sent
func checkPositions(positions []int, n int) (found []bool, err error) {
	found = make([]bool, n)
	last := -1
	for _, pos := range positions {
		if pos <= last || pos >= n {
			err = fmt.Errorf("%w: resolved position %d outside batch of %d", ErrInvalidStructure, pos, n)
			return
		}
		found[pos] = true
		last = pos
	}
	return
}

func removeFound(idx []int, found []bool) []int {
	kept := idx[:0]
	for j, i := range idx {
		if !found[j] {
			kept = append(kept, i)
		}
	}
	return kept
}

func unresolvedErrors(targets *CoordinateTable, idx []int) (errs []UnresolvedPointError) {
	for _, i := range idx {
		errs = append(errs, UnresolvedPointError{
			Index: i,
			Coord: append([]float64(nil), targets.Coords[i]...),
		})
	}
	return
}
