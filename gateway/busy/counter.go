package busy

// Counter tracks how many operations are in flight and reports the edges
// that matter to the indicator: 0->1 on Begin and 1->0 on End.
//
// The zero value is ready to use. Counter is not safe for concurrent use;
// Coordinator serializes every call.
type Counter struct {
	n int64
}

// Begin counts a new operation and reports whether the count left zero.
func (c *Counter) Begin() (becameBusy bool) {
	c.n++
	return c.n == 1
}

// End retires an operation and reports whether the count reached zero.
// Ending with nothing in flight is a no-op and reports false.
func (c *Counter) End() (becameIdle bool) {
	if c.n == 0 {
		return false
	}
	c.n--
	return c.n == 0
}

// Reset forces the count to zero and returns what it was.
func (c *Counter) Reset() (forced int64) {
	forced, c.n = c.n, 0
	return forced
}

// Count returns the number of operations in flight.
func (c *Counter) Count() int64 { return c.n }
