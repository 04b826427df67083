package comm

import (
	"fmt"
	"sync"

	"github.com/notargets/gointerp/utils"
)

// World connects Size in-process ranks. Each (destination, source) pair has
// an unbounded FIFO, so sends never block and a rank may send to itself.
type World struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queues [][]*utils.DynBuffer[Message] // [dest][src]
	cause  error

	// Cyclic barrier
	arrived    int
	generation int
}

func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Errorf("world size must be positive, have %d", size))
	}
	w := &World{
		size:   size,
		queues: make([][]*utils.DynBuffer[Message], size),
	}
	w.cond = sync.NewCond(&w.mu)
	for dest := range w.queues {
		w.queues[dest] = make([]*utils.DynBuffer[Message], size)
		for src := range w.queues[dest] {
			w.queues[dest][src] = utils.NewDynBuffer[Message](0)
		}
	}
	return w
}

func (w *World) Size() int { return w.size }

// Comm returns the Communicator of rank
func (w *World) Comm(rank int) Communicator {
	if rank < 0 || rank >= w.size {
		panic(fmt.Errorf("%w: %d of %d", ErrRankOutOfRange, rank, w.size))
	}
	return &endpoint{world: w, rank: rank}
}

// Abort wakes every blocked rank with ErrAborted. The first cause is kept.
func (w *World) Abort(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cause == nil {
		if cause == nil {
			cause = ErrAborted
		}
		w.cause = cause
	}
	w.cond.Broadcast()
}

// Cause is the error passed to the first Abort, nil while running
func (w *World) Cause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cause
}

func (w *World) checkRank(r int) error {
	if r < 0 || r >= w.size {
		return fmt.Errorf("%w: %d of %d", ErrRankOutOfRange, r, w.size)
	}
	return nil
}

type endpoint struct {
	world *World
	rank  int
}

func (e *endpoint) Rank() int { return e.rank }
func (e *endpoint) Size() int { return e.world.size }

func (e *endpoint) Send(dest int, m Message) error {
	w := e.world
	if err := w.checkRank(dest); err != nil {
		return err
	}
	msg := m.Clone()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cause != nil {
		return ErrAborted
	}
	w.queues[dest][e.rank].Add(msg)
	w.cond.Broadcast()
	return nil
}

func (e *endpoint) Recv(src int) (m Message, err error) {
	w := e.world
	if err = w.checkRank(src); err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.queues[e.rank][src]
	for q.Len() == 0 {
		if w.cause != nil {
			err = ErrAborted
			return
		}
		w.cond.Wait()
	}
	m = q.Shift()
	return
}

func (e *endpoint) Barrier() error {
	w := e.world
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cause != nil {
		return ErrAborted
	}
	gen := w.generation
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.generation++
		w.cond.Broadcast()
		return nil
	}
	for gen == w.generation {
		if w.cause != nil {
			return ErrAborted
		}
		w.cond.Wait()
	}
	return nil
}
