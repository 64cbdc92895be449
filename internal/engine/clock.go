package engine

import "sync/atomic"

// Clock issues event heights.
//
// Every committed request takes the next height, and all events appended by
// that request share it. Heights order requests in the log the same way on
// every replay, independent of wall-clock timestamps.
//
// Clock is safe for concurrent use, but heights are only taken on the
// single writer path.
type Clock struct {
	height atomic.Int64
}

// NewClockAt creates a clock whose next height is start+1. Used on startup
// to resume after the highest height already in the log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.height.Store(start)
	return c
}

// Next returns the next height.
func (c *Clock) Next() int64 {
	return c.height.Add(1)
}

// Current returns the last issued height.
func (c *Clock) Current() int64 {
	return c.height.Load()
}
