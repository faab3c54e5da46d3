package conn

import (
	"context"

	"github.com/mdlayher/netlink"

	"github.com/genl-protocol/genl-go/pkg/wire"
)

// Handle is the caller-facing side of a connection. Handles are safe for
// concurrent use; every request is tracked independently and multiplexed
// over the single underlying socket.
type Handle struct {
	c *Conn
}

// Request sends a generic netlink message to the given family and returns
// a Stream of the reply messages. The netlink.Request flag is always set;
// pass netlink.Dump for multipart enumerations.
//
// Request does not wait for the kernel: it returns as soon as the pump has
// accepted the message. Consuming the Stream is what waits. Request fails
// immediately with ErrConnClosed when the connection is already down.
func (h *Handle) Request(ctx context.Context, family uint16, m wire.Message, flags netlink.HeaderFlags) (*Stream, error) {
	select {
	case <-h.c.closing:
		return nil, ErrConnClosed
	default:
	}

	nm, err := wire.Pack(m, family, flags|netlink.Request)
	if err != nil {
		return nil, err
	}

	p := &pending{
		msg:    nm,
		replyc: make(chan item, replyBuffer),
		cancel: make(chan struct{}),
	}

	select {
	case h.c.sendc <- p:
		return &Stream{c: h.c, p: p}, nil
	case <-h.c.closing:
		return nil, ErrConnClosed
	case <-h.c.done:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute sends a request and collects the full reply stream. It is a
// convenience for exchanges where the caller wants all replies at once.
func (h *Handle) Execute(ctx context.Context, family uint16, m wire.Message, flags netlink.HeaderFlags) ([]wire.Message, error) {
	s, err := h.Request(ctx, family, m, flags)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.Collect(ctx)
}

// ConnectionID returns the identifier of the underlying connection.
func (h *Handle) ConnectionID() string { return h.c.id }
