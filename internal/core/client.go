package core

import (
	"sync"

	"github.com/vovakirdan/supportchat-server/internal/auth"
)

// DefaultEventBuffer is the outbound queue size of a client.
const DefaultEventBuffer = 64

// Client is one channel as seen by the core layer. Commands are consumed by a
// dedicated goroutine started on registration; Events are drained by the
// transport.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// identity and membership are owned by the client's goroutine.
	identity   *auth.Identity
	membership membership

	quit      chan struct{}
	closeOnce sync.Once
}

// membership is the channel's room state: either not joined or joined to
// exactly one room.
type membership struct {
	joined bool
	roomID string
}

func (m membership) in(roomID string) bool {
	return m.joined && m.roomID == roomID
}

// NewClient constructs a client with initialized channels. buffer <= 0 uses
// DefaultEventBuffer.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, buffer),
		quit:     make(chan struct{}),
	}
}

// Done is closed once the client is disconnected from the hub.
func (c *Client) Done() <-chan struct{} {
	return c.quit
}

// Close disconnects the client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// Deliver queues an event without blocking. A client whose queue is full is
// disconnected so it cannot silently miss room events. Returns false if the
// event was not queued.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.quit:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		c.Close()
		return false
	}
}
