package comm

import "fmt"

// Bcast distributes root's message to every rank and returns it. Non-root
// callers pass an empty Message.
func Bcast(c Communicator, root int, m Message) (Message, error) {
	if c.Rank() != root {
		return c.Recv(root)
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		if err := c.Send(r, m); err != nil {
			return Message{}, err
		}
	}
	return m, nil
}

// AllReduceMaxInt returns the maximum of v over all ranks, on every rank
func AllReduceMaxInt(c Communicator, v int) (int, error) {
	if c.Rank() != 0 {
		if err := c.Send(0, Message{Ints: []int{v}}); err != nil {
			return 0, err
		}
	} else {
		for r := 1; r < c.Size(); r++ {
			m, err := c.Recv(r)
			if err != nil {
				return 0, err
			}
			if len(m.Ints) != 1 {
				return 0, fmt.Errorf("reduce: rank %d sent %d values", r, len(m.Ints))
			}
			v = max(v, m.Ints[0])
		}
	}
	m, err := Bcast(c, 0, Message{Ints: []int{v}})
	if err != nil {
		return 0, err
	}
	if len(m.Ints) != 1 {
		return 0, fmt.Errorf("reduce: broadcast carried %d values", len(m.Ints))
	}
	return m.Ints[0], nil
}
