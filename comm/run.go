package comm

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Run executes fn once per rank of a fresh World of the given size, each on
// its own goroutine. The first rank to fail aborts the world; Run returns
// that rank's error after every rank has returned.
func Run(size int, fn func(c Communicator) error) error {
	w := NewWorld(size)
	var g errgroup.Group
	for r := 0; r < size; r++ {
		c := w.Comm(r)
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v", p)
				}
				if err != nil {
					err = fmt.Errorf("rank %d: %w", r, err)
					w.Abort(err)
				}
			}()
			return fn(c)
		})
	}
	err := g.Wait()
	if cause := w.Cause(); cause != nil {
		return cause
	}
	return err
}
