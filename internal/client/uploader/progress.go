package uploader

import "sync/atomic"

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(units int)

func (f ProgressFunc) Complete(units int) { f(units) }

// ProgressCounter accumulates completed units.
type ProgressCounter struct {
	done     atomic.Int64
	onChange func(done int64)
}

// NewProgressCounter returns a counter calling onChange, if not nil, with the
// new total after every update.
func NewProgressCounter(onChange func(done int64)) *ProgressCounter {
	return &ProgressCounter{onChange: onChange}
}

func (c *ProgressCounter) Complete(units int) {
	if units <= 0 {
		return
	}
	n := c.done.Add(int64(units))
	if c.onChange != nil {
		c.onChange(n)
	}
}

// Done returns the number of completed units.
func (c *ProgressCounter) Done() int64 { return c.done.Load() }

type nopProgress struct{}

func (nopProgress) Complete(int) {}
