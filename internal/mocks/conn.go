package mocks

import "sync"

// RecordedEvent is one Emit captured by a ConnRecorder.
type RecordedEvent struct {
	Event string
	Data  any
}

// ConnRecorder is an in-memory presence.Conn that records emitted events in
// order.
type ConnRecorder struct {
	mu     sync.Mutex
	events []RecordedEvent
	closed bool
}

func NewConnRecorder() *ConnRecorder {
	return &ConnRecorder{}
}

func (c *ConnRecorder) Emit(event string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, RecordedEvent{Event: event, Data: data})
}

func (c *ConnRecorder) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Events returns a snapshot of everything emitted so far.
func (c *ConnRecorder) Events() []RecordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecordedEvent, len(c.events))
	copy(out, c.events)
	return out
}

// EventsNamed filters the recording down to one event name.
func (c *ConnRecorder) EventsNamed(name string) []RecordedEvent {
	var out []RecordedEvent
	for _, e := range c.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (c *ConnRecorder) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
