package interp

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"go.uber.org/zap"

	"github.com/notargets/gointerp/comm"
)

// Operators holds, per requesting rank, the sparse weight matrix mapping
// local node values to that rank's expected target values.
type Operators struct {
	Nodes int
	ops   []*sparse.CSR // nil when the requester expects nothing
}

// BuildOperators assembles the weights of st.Remote over nodes local nodes
func BuildOperators(st *ResolutionState, nodes int) (ops *Operators, err error) {
	ops = &Operators{Nodes: nodes, ops: make([]*sparse.CSR, len(st.Remote))}
	for q, recs := range st.Remote {
		if len(recs) == 0 {
			continue
		}
		dok := sparse.NewDOK(len(recs), nodes)
		for j, rec := range recs {
			for i, l := range rec.Local {
				if l < 0 || l >= nodes {
					return nil, fmt.Errorf("%w: record node %d outside %d local nodes",
						ErrInvalidStructure, l, nodes)
				}
				dok.Set(j, l, dok.At(j, l)+rec.Weights[i])
			}
		}
		ops.ops[q] = dok.ToCSR()
	}
	return
}

// For returns the operator serving rank q, nil when q expects nothing
func (ops *Operators) For(q int) *sparse.CSR {
	if ops == nil || q < 0 || q >= len(ops.ops) {
		return nil
	}
	return ops.ops[q]
}

// evaluate returns values of srcVars for the records served to rank q,
// variable major
func evaluate(recs []*Resolution, op *sparse.CSR, src *SourceField, srcVars []int) (vals []float64) {
	n := len(recs)
	vals = make([]float64, len(srcVars)*n)
	for v, sv := range srcVars {
		field, row := src.Values[sv], vals[v*n:(v+1)*n]
		if op != nil {
			op.DoNonZero(func(i, j int, w float64) {
				row[i] += w * field[j]
			})
			continue
		}
		for j, rec := range recs {
			row[j] = rec.Evaluate(field)
		}
	}
	return
}

// scatter writes received variable major values into out at the given target
// indices
func scatter(vals []float64, idx []int, out [][]float64, tgtVars []int, from int) error {
	n := len(idx)
	if len(vals) != len(tgtVars)*n {
		return fmt.Errorf("%w: rank %d sent %d values, expected %d variables at %d points",
			ErrInvalidStructure, from, len(vals), len(tgtVars), n)
	}
	for v, tv := range tgtVars {
		for j, i := range idx {
			out[tv][i] = vals[v*n+j]
		}
	}
	return nil
}

// ExchangeValues returns to every requester the values of its resolved
// coordinates. ops may be nil, then values are evaluated from the records.
func ExchangeValues(c comm.Communicator, st *ResolutionState, ops *Operators,
	src *SourceField, out [][]float64, srcVars, tgtVars []int) error {
	if ops != nil && ops.Nodes != src.Size() {
		return fmt.Errorf("%w: operators built for %d nodes, field has %d",
			ErrInvalidStructure, ops.Nodes, src.Size())
	}
	size := c.Size()
	if len(st.Remote) != size || len(st.Expected) != size {
		return fmt.Errorf("%w: resolution state built for %d ranks, world has %d",
			ErrInvalidStructure, len(st.Remote), size)
	}
	for pid := 0; pid < size; pid++ {
		sendTo, recvFrom := ValuePartners(c.Rank(), pid, size)
		vals := evaluate(st.Remote[sendTo], ops.For(sendTo), src, srcVars)
		if err := c.Send(sendTo, comm.Message{Floats: vals}); err != nil {
			return err
		}
		m, err := c.Recv(recvFrom)
		if err != nil {
			return err
		}
		if err = scatter(m.Floats, st.Expected[recvFrom], out, tgtVars, recvFrom); err != nil {
			return err
		}
	}
	return nil
}

// UnstoredInterpolation resolves and evaluates in one pass: each round the
// serving rank replies with the positions it found and their values
// together. Nothing is kept; the returned state has no Remote or Expected.
func UnstoredInterpolation(c comm.Communicator, pr *PointResolver, src *SourceField,
	targets *CoordinateTable, out [][]float64, srcVars, tgtVars []int,
	log *zap.Logger) (st *ResolutionState, err error) {
	if pr == nil || targets == nil || src == nil {
		err = fmt.Errorf("%w: resolver, source and targets are required", ErrSetup)
		return
	}
	log = rankLogger(log, c)
	size := c.Size()
	st = newResolutionState(size, targets.Len())
	st.Expected, st.Remote = nil, nil
	unresolved := allIndices(targets.Len())

	for pid := 0; pid < size; pid++ {
		sendTo, recvFrom := RingPartners(c.Rank(), pid, size)
		batch, err := swapBatch(c, targets, unresolved, sendTo, recvFrom)
		if err != nil {
			return nil, err
		}
		st.Sent = append(st.Sent, len(unresolved))

		positions, recs := pr.resolveBatch(batch, c.Rank(), log)
		vals := evaluate(recs, nil, src, srcVars)
		if err = c.Send(recvFrom, comm.Message{Ints: positions, Floats: vals}); err != nil {
			return nil, err
		}

		reply, err := c.Recv(sendTo)
		if err != nil {
			return nil, err
		}
		found, err := checkPositions(reply.Ints, len(unresolved))
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(reply.Ints))
		for j, pos := range reply.Ints {
			idx[j] = unresolved[pos]
			st.Owner[idx[j]] = sendTo
		}
		if err = scatter(reply.Floats, idx, out, tgtVars, sendTo); err != nil {
			return nil, err
		}
		unresolved = removeFound(unresolved, found)
		st.Rounds++
		log.Debug("fused round",
			zap.Int("pid", pid),
			zap.Int("sent", st.Sent[pid]),
			zap.Int("served", len(positions)),
			zap.Int("resolved", len(idx)))
	}
	st.Unresolved = unresolvedErrors(targets, unresolved)
	if len(st.Unresolved) > 0 {
		log.Warn("coordinates not resolved on any rank", zap.Int("count", len(st.Unresolved)))
	}
	return
}
