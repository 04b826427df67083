// Package comm is the point to point transport between ranks of a
// distributed job.
package comm

import "errors"

var (
	ErrAborted        = errors.New("comm: world aborted")
	ErrRankOutOfRange = errors.New("comm: rank out of range")
)

// Message is the unit of transfer, its slices carry their own lengths.
type Message struct {
	Ints   []int
	Floats []float64
}

// Clone returns a deep copy, so sender and receiver never share storage
func (m Message) Clone() (c Message) {
	if m.Ints != nil {
		c.Ints = make([]int, len(m.Ints))
		copy(c.Ints, m.Ints)
	}
	if m.Floats != nil {
		c.Floats = make([]float64, len(m.Floats))
		copy(c.Floats, m.Floats)
	}
	return
}

// Communicator is one rank's view of the job. Messages between a pair of
// ranks are delivered in the order sent. Send does not wait for the matching
// Recv; Recv and Barrier block.
type Communicator interface {
	Rank() int
	Size() int
	Send(dest int, m Message) error
	Recv(src int) (Message, error)
	Barrier() error
}
