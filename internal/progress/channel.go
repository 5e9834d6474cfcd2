// Package progress streams generation statuses from the server to one client.
package progress

import (
	"context"
	"sync"

	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
)

// Event is the wire form of one status.
type Event struct {
	Status string `json:"status"`
	Image  string `json:"image,omitempty"`
}

func EventFromStatus(s generation.Status) Event {
	return Event{Status: s.Label(), Image: s.Image}
}

func (e Event) ToStatus() generation.Status { return generation.Parse(e.Status, e.Image) }

type Writer interface {
	Write(ev Event) error
	Close() error
}

// Channel delivers statuses for a single request. It closes its writer right
// after the terminal status and drops anything emitted later.
type Channel struct {
	mu     sync.Mutex
	w      Writer
	closed bool
	err    error
	done   chan struct{}
}

func NewChannel(w Writer) *Channel {
	return &Channel{w: w, done: make(chan struct{})}
}

func (c *Channel) Emit(s generation.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.w.Write(EventFromStatus(s)); err != nil {
		c.err = err
		c.closeLocked()
		return
	}
	if s.Terminal() {
		c.closeLocked()
	}
}

// Close stops delivery. It is safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Channel) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.w.Close()
}

// Bind derives a context that is cancelled once the channel closes, whether
// after the terminal status, a failed write or an external Close.
func (c *Channel) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Err is the first write error, if the client went away mid-stream.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
