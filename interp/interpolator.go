// Package interp evaluates fields stored on a partitioned unstructured mesh
// at arbitrary coordinates, where the coordinate and the element holding it
// may live on different ranks.
package interp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/gointerp/comm"
)

// DistributedInterpolator evaluates a partitioned source field at each
// rank's target coordinates. All of its methods are collective.
type DistributedInterpolator struct {
	comm     comm.Communicator
	resolver *PointResolver
	store    bool
	cache    *InterpolationCache
	log      *zap.Logger
}

type Option func(di *DistributedInterpolator)

// WithStore keeps the resolution between calls and reuses it while the
// source and target identities are unchanged
func WithStore(store bool) Option {
	return func(di *DistributedInterpolator) { di.store = store }
}

// WithCache supplies the cache used in store mode, implies WithStore(true)
func WithCache(ic *InterpolationCache) Option {
	return func(di *DistributedInterpolator) {
		di.cache = ic
		di.store = true
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(di *DistributedInterpolator) { di.log = log }
}

func New(c comm.Communicator, r *PointResolver, opts ...Option) *DistributedInterpolator {
	di := &DistributedInterpolator{comm: c, resolver: r, log: zap.NewNop()}
	for _, opt := range opts {
		opt(di)
	}
	if di.store && di.cache == nil {
		di.cache = NewInterpolationCache()
	}
	return di
}

func (di *DistributedInterpolator) Cache() *InterpolationCache { return di.cache }

// Report summarises one interpolation call on this rank
type Report struct {
	Owners     []int // target index -> owning rank, -1 unresolved
	Unresolved []UnresolvedPointError
	CacheHit   bool
}

// Err joins the unresolved point errors, nil when every coordinate resolved
func (r *Report) Err() error { return joinUnresolved(r.Unresolved) }

// Interpolate evaluates every source variable into the same numbered output
// variable
func (di *DistributedInterpolator) Interpolate(src *SourceField, targets *CoordinateTable,
	out [][]float64) (*Report, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source field", ErrInvalidStructure)
	}
	vars := allIndices(src.NumVars())
	return di.InterpolateVars(src, targets, out, vars, vars)
}

// InterpolateVars evaluates source variable srcVars[v] into out[tgtVars[v]]
// at each target coordinate. Outputs at unresolved coordinates are left
// untouched and listed in the Report.
func (di *DistributedInterpolator) InterpolateVars(src *SourceField, targets *CoordinateTable,
	out [][]float64, srcVars, tgtVars []int) (rep *Report, err error) {
	if err = validateCall(src, targets, out, srcVars, tgtVars); err != nil {
		return
	}
	var st *ResolutionState
	rep = &Report{}
	if !di.store {
		if st, err = UnstoredInterpolation(di.comm, di.resolver, src, targets, out,
			srcVars, tgtVars, di.log); err != nil {
			return nil, err
		}
	} else {
		if st, rep.CacheHit, err = di.stored(src, targets); err != nil {
			return nil, err
		}
		if err = ExchangeValues(di.comm, st, di.cache.Operators(), src, out,
			srcVars, tgtVars); err != nil {
			return nil, err
		}
	}
	rep.Owners = append([]int(nil), st.Owner...)
	rep.Unresolved = st.Unresolved
	return
}

// stored returns the cached state, rebuilding it on every rank when any
// rank's key changed
func (di *DistributedInterpolator) stored(src *SourceField,
	targets *CoordinateTable) (st *ResolutionState, hit bool, err error) {
	key := KeyOf(src, targets)
	stale := 0
	if !di.cache.Valid(key) {
		stale = 1
	}
	if stale, err = comm.AllReduceMaxInt(di.comm, stale); err != nil {
		return
	}
	log := di.log.With(zap.Int("rank", di.comm.Rank()))
	if stale == 0 {
		log.Debug("interpolation cache hit", zap.Int("builds", di.cache.Builds()))
		return di.cache.State(), true, nil
	}
	if st, err = ResolveRanks(di.comm, di.resolver, targets, di.log); err != nil {
		return
	}
	ops, err := BuildOperators(st, src.Size())
	if err != nil {
		return
	}
	di.cache.Store(key, st, ops)
	log.Debug("interpolation cache rebuilt", zap.Int("builds", di.cache.Builds()))
	return
}

// Invalidate drops the stored resolution. Collective: every rank must
// invalidate before the next call.
func (di *DistributedInterpolator) Invalidate() {
	if di.cache != nil {
		di.cache.Invalidate()
	}
}

func validateCall(src *SourceField, targets *CoordinateTable, out [][]float64,
	srcVars, tgtVars []int) error {
	if src == nil || targets == nil {
		return fmt.Errorf("%w: source field and targets are required", ErrInvalidStructure)
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if targets.Dim != src.Mesh.Dim {
		return fmt.Errorf("%w: targets are %dD, source mesh is %dD",
			ErrInvalidStructure, targets.Dim, src.Mesh.Dim)
	}
	if len(srcVars) != len(tgtVars) {
		return fmt.Errorf("%w: %d source variables mapped to %d target variables",
			ErrInvalidStructure, len(srcVars), len(tgtVars))
	}
	for v := range srcVars {
		if srcVars[v] < 0 || srcVars[v] >= src.NumVars() {
			return fmt.Errorf("%w: source variable %d out of range [0,%d)",
				ErrInvalidStructure, srcVars[v], src.NumVars())
		}
		if tgtVars[v] < 0 || tgtVars[v] >= len(out) {
			return fmt.Errorf("%w: target variable %d out of range [0,%d)",
				ErrInvalidStructure, tgtVars[v], len(out))
		}
		if len(out[tgtVars[v]]) != targets.Len() {
			return fmt.Errorf("%w: output variable %d has %d entries for %d targets",
				ErrInvalidStructure, tgtVars[v], len(out[tgtVars[v]]), targets.Len())
		}
	}
	return nil
}
