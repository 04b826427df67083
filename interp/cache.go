package interp

import "github.com/google/uuid"

// CacheKey identifies the source field and target table a resolution was
// built for
type CacheKey struct {
	SourceID   uuid.UUID
	SourceSize int
	TargetID   uuid.UUID
	TargetSize int
}

func KeyOf(src *SourceField, targets *CoordinateTable) CacheKey {
	return CacheKey{
		SourceID:   src.ID(),
		SourceSize: src.Size(),
		TargetID:   targets.ID(),
		TargetSize: targets.Len(),
	}
}

// InterpolationCache keeps one rank's resolution state and operators between
// calls. It is not safe for concurrent use.
type InterpolationCache struct {
	key    CacheKey
	valid  bool
	state  *ResolutionState
	ops    *Operators
	builds int
}

func NewInterpolationCache() *InterpolationCache { return &InterpolationCache{} }

// Valid reports whether the cache holds a state built for key
func (ic *InterpolationCache) Valid(key CacheKey) bool { return ic.valid && ic.key == key }

func (ic *InterpolationCache) Store(key CacheKey, st *ResolutionState, ops *Operators) {
	ic.key, ic.state, ic.ops = key, st, ops
	ic.valid = true
	ic.builds++
}

func (ic *InterpolationCache) State() *ResolutionState { return ic.state }
func (ic *InterpolationCache) Operators() *Operators   { return ic.ops }

func (ic *InterpolationCache) Invalidate() {
	ic.valid = false
	ic.state, ic.ops = nil, nil
}

// Builds counts the states stored over the cache lifetime
func (ic *InterpolationCache) Builds() int { return ic.builds }
