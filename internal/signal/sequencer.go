package signal

import "sync/atomic"

// Sequencer hands out process-wide request ids: 1, 2, 3, ... with no reuse across instruments.
type Sequencer struct {
	last atomic.Uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next consumes and returns the next request id.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued id, zero if none.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}
