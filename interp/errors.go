package interp

import (
	"errors"
	"fmt"
)

var (
	ErrSetup             = errors.New("interp: invalid setup")
	ErrInvalidStructure  = errors.New("interp: invalid structure")
	ErrDegenerateStencil = errors.New("interp: degenerate stencil")
	ErrUnresolvedPoint   = errors.New("interp: unresolved point")
)

// UnresolvedPointError names a target coordinate no rank could resolve
type UnresolvedPointError struct {
	Index int
	Coord []float64
}

func (e *UnresolvedPointError) Error() string {
	return fmt.Sprintf("interp: coordinate %d at %v not found on any rank", e.Index, e.Coord)
}

func (e *UnresolvedPointError) Is(target error) bool { return target == ErrUnresolvedPoint }

// joinUnresolved folds unresolved points into one error, nil when empty
func joinUnresolved(points []UnresolvedPointError) error {
	if len(points) == 0 {
		return nil
	}
	errs := make([]error, len(points))
	for i := range points {
		errs[i] = &points[i]
	}
	return errors.Join(errs...)
}
