// Package wake provides a coalescing notification primitive. Many writers
// signal a single reader; notifications that arrive while one is already
// pending collapse into a single wake, so a burst of producer updates
// causes exactly one re-render instead of a backlog.
package wake

// Channel is a many-writers, one-reader wake signal. The zero value is not
// usable; construct with New.
type Channel struct {
	ch chan struct{}
}

// New returns a ready Channel.
func New() *Channel {
	return &Channel{ch: make(chan struct{}, 1)}
}

// Notify requests a wake. It never blocks: if a wake is already pending
// the call is a no-op.
func (c *Channel) Notify() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// C returns the receive side. Exactly one receive succeeds per pending
// wake regardless of how many Notify calls produced it.
func (c *Channel) C() <-chan struct{} {
	return c.ch
}
