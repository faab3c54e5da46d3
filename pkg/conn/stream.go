package conn

import (
	"context"
	"io"
	"sync"

	"github.com/genl-protocol/genl-go/pkg/wire"
)

// Stream is the finite sequence of replies to one request, in kernel
// delivery order. It terminates exactly once: io.EOF after a clean end
// (multipart done, kernel ACK, or the single reply of a non-multipart
// request), or an error. After the terminal condition every further Next
// repeats it.
//
// Close abandons the stream early; the pump discards any further replies
// for the request. Closing an exhausted stream is a no-op.
type Stream struct {
	c *Conn
	p *pending

	mu   sync.Mutex
	term error // sticky terminal result; nil while the stream is live
}

// Next returns the next reply message. It blocks until the pump delivers
// one, the stream reaches its terminal condition, or ctx is done.
func (s *Stream) Next(ctx context.Context) (wire.Message, error) {
	s.mu.Lock()
	if s.term != nil {
		defer s.mu.Unlock()
		return wire.Message{}, s.term
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()

	case <-s.p.cancel:
		return wire.Message{}, s.terminate(ErrStreamClosed)

	case it, ok := <-s.p.replyc:
		if !ok {
			// Channel closed by connection teardown.
			return wire.Message{}, s.terminate(ErrConnClosed)
		}
		if it.err != nil {
			return wire.Message{}, s.terminate(it.err)
		}
		if !it.ok {
			// Bare done marker.
			return wire.Message{}, s.terminate(io.EOF)
		}
		if it.last {
			// Final data item: deliver it now, EOF afterwards.
			s.terminate(io.EOF)
		}
		return it.msg, nil
	}
}

// Collect drains the stream to its terminal condition and returns every
// message it yielded. A clean end returns the messages; any other terminal
// error is returned as-is.
func (s *Stream) Collect(ctx context.Context) ([]wire.Message, error) {
	var msgs []wire.Message
	for {
		m, err := s.Next(ctx)
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
}

// Close abandons the stream. The pump discards any replies still in
// flight for this request and reclaims its slot. Close never blocks and
// is safe to call multiple times and concurrently with Next.
func (s *Stream) Close() {
	s.p.cancelOnce.Do(func() {
		s.terminate(ErrStreamClosed)
		close(s.p.cancel)

		// Nudge the pump so the slot is reclaimed promptly; if the
		// queue is full it notices the closed cancel channel on the
		// next matching message instead.
		select {
		case s.c.cancelc <- s.p:
		default:
		}
	})
}

// terminate records the sticky terminal result and returns it.
func (s *Stream) terminate(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.term == nil {
		s.term = err
	}
	return s.term
}
