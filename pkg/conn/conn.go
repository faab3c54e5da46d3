package conn

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/genl-protocol/genl-go/pkg/log"
	"github.com/genl-protocol/genl-go/pkg/transport"
	"github.com/genl-protocol/genl-go/pkg/wire"
)

// replyBuffer is the per-request delivery channel capacity. It absorbs
// bursts of multipart fragments so the pump rarely waits on a consumer.
const replyBuffer = 64

// Connection states, used in log events.
const (
	stateRunning = "RUNNING"
	stateClosed  = "CLOSED"
)

// Config configures a connection.
type Config struct {
	// ID identifies the connection in log events. A random UUID is
	// generated when empty.
	ID string

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// Notify receives inbound messages that match no in-flight request,
	// such as multicast notifications. It is called from the pump
	// goroutine and must not block. Nil drops unsolicited messages.
	Notify func(m netlink.Message)

	// Groups is a bitmask of multicast groups to subscribe to when
	// dialing. Zero means no subscriptions.
	Groups uint32
}

// pending is one in-flight request: the message waiting to go out and the
// channel its replies are delivered on.
type pending struct {
	seq    uint32
	msg    netlink.Message
	replyc chan item

	// cancel is closed by Stream.Close; the pump stops delivering and
	// reclaims the slot when it observes it.
	cancel     chan struct{}
	cancelOnce sync.Once
}

// item is one element of a reply stream. Exactly one terminal item
// (last set, or err set) ends every stream.
type item struct {
	msg  wire.Message
	ok   bool  // msg is valid
	err  error // terminal failure
	last bool  // no more items follow
}

// Conn is the connection pump. It is created together with a Handle by New
// or Dial, and must be driven by the caller via Run.
type Conn struct {
	sock   transport.Socket
	id     string
	logger log.Logger
	notify func(m netlink.Message)

	sendc   chan *pending
	cancelc chan *pending
	done    chan struct{}

	closeOnce sync.Once
	closing   chan struct{} // closed by Close, marks teardown as requested

	// Dispatch state below is owned exclusively by the Run goroutine.
	seq     uint32
	pending map[uint32]*pending
}

// New pairs a connection pump with a request handle on top of an existing
// socket. Most callers want Dial; New exists for custom sockets and tests.
func New(sock transport.Socket, config *Config) (*Conn, *Handle) {
	if config == nil {
		config = &Config{}
	}

	id := config.ID
	if id == "" {
		id = uuid.New().String()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	c := &Conn{
		sock:    sock,
		id:      id,
		logger:  logger,
		notify:  config.Notify,
		sendc:   make(chan *pending),
		cancelc: make(chan *pending, 8),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		// Start at a random point so stale replies from a previous
		// socket owner cannot collide with early requests.
		seq:     rand.Uint32(),
		pending: make(map[uint32]*pending),
	}
	return c, &Handle{c: c}
}

// Dial opens a generic netlink socket and returns its pump and handle.
// The caller must schedule the pump with Run before issuing requests.
func Dial(config *Config) (*Conn, *Handle, error) {
	if config == nil {
		config = &Config{}
	}

	sock, err := transport.Dial(&transport.Config{Groups: config.Groups})
	if err != nil {
		return nil, nil, fmt.Errorf("dial netlink: %w", err)
	}

	c, h := New(sock, config)
	return c, h, nil
}

// ID returns the connection identifier used in log events.
func (c *Conn) ID() string { return c.id }

// Run drives the connection until ctx is canceled, Close is called, or the
// socket fails. On return every in-flight request's stream is terminated
// with ErrConnClosed and the socket is closed; the connection cannot be
// reused afterward.
//
// Run returns nil after Close, ctx.Err() after cancellation, and the
// receive error otherwise.
func (c *Conn) Run(ctx context.Context) error {
	recvc := make(chan []netlink.Message)
	recverrc := make(chan error, 1)

	go func() {
		for {
			msgs, err := c.sock.Receive()
			if err != nil {
				recverrc <- err
				return
			}
			select {
			case recvc <- msgs:
			case <-c.done:
				return
			}
		}
	}()

	c.logState("", stateRunning, "")
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-recverrc:
			select {
			case <-c.closing:
				// Expected: Close unblocked the receive.
				return nil
			default:
			}
			c.logError(0, fmt.Errorf("receive: %w", err), nil)
			return fmt.Errorf("receive: %w", err)

		case p := <-c.sendc:
			c.dispatchSend(p)

		case p := <-c.cancelc:
			if p.seq != 0 {
				delete(c.pending, p.seq)
			}

		case msgs := <-recvc:
			for _, m := range msgs {
				c.dispatchRecv(m)
			}
		}
	}
}

// Close shuts the connection down. Safe to call concurrently with Run and
// more than once. Requests issued afterward fail with ErrConnClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		// Closing the socket unblocks the receive loop, which makes Run
		// tear down the dispatch table.
		err = c.sock.Close()
	})
	return err
}

// JoinGroup subscribes the connection to a multicast group by ID.
// Messages from the group arrive through the Notify callback.
func (c *Conn) JoinGroup(group uint32) error {
	gs, ok := c.sock.(transport.GroupSocket)
	if !ok {
		return fmt.Errorf("join group %d: %w", group, transport.ErrNotSupported)
	}
	return gs.JoinGroup(group)
}

// LeaveGroup removes the connection from a multicast group by ID.
func (c *Conn) LeaveGroup(group uint32) error {
	gs, ok := c.sock.(transport.GroupSocket)
	if !ok {
		return fmt.Errorf("leave group %d: %w", group, transport.ErrNotSupported)
	}
	return gs.LeaveGroup(group)
}

// teardown fails every in-flight request and closes the socket. Called
// exactly once, when Run returns.
func (c *Conn) teardown() {
	close(c.done)

	for seq, p := range c.pending {
		delete(c.pending, seq)

		// Best effort: enqueue the terminal error, then close the
		// channel. A consumer that raced us past the item still
		// observes the closed channel as ErrConnClosed.
		select {
		case p.replyc <- item{err: ErrConnClosed, last: true}:
		default:
		}
		close(p.replyc)
	}

	_ = c.sock.Close()
	c.logState(stateRunning, stateClosed, "")
}

// nextSeq returns the next request sequence number. Zero is skipped; the
// kernel uses it for unsolicited messages.
func (c *Conn) nextSeq() uint32 {
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	return c.seq
}

// dispatchSend assigns a sequence number, registers the pending request and
// hands the message to the socket. Registration happens first so a reply
// can never arrive before its request is known.
func (c *Conn) dispatchSend(p *pending) {
	select {
	case <-p.cancel:
		// Abandoned before it reached the socket.
		return
	default:
	}

	seq := c.nextSeq()
	p.seq = seq
	p.msg.Header.Sequence = seq
	c.pending[seq] = p

	if err := c.sock.Send(p.msg); err != nil {
		delete(c.pending, seq)
		err = fmt.Errorf("send: %w", err)
		c.logError(seq, err, nil)
		c.deliver(p, item{err: err, last: true})
		return
	}

	c.logMessage(log.DirectionOut, p.msg)
}

// dispatchRecv routes one inbound message to the pending request with the
// matching sequence number. Failures here are scoped to that one request;
// only a socket-level receive error tears the connection down.
func (c *Conn) dispatchRecv(nm netlink.Message) {
	if nm.Header.Type == netlink.Noop {
		return
	}

	p, ok := c.pending[nm.Header.Sequence]
	if ok {
		select {
		case <-p.cancel:
			// The stream was closed; its late replies are unsolicited
			// traffic from here on.
			delete(c.pending, p.seq)
			ok = false
		default:
		}
	}
	if !ok {
		c.unsolicited(nm)
		return
	}

	switch nm.Header.Type {
	case netlink.Error:
		errno, err := errnoOf(nm)
		switch {
		case err != nil:
			c.logError(p.seq, err, nil)
			c.finish(p, item{err: err, last: true})
		case errno == 0:
			// Explicit kernel ACK: the stream ends cleanly.
			c.finish(p, item{last: true})
		default:
			kerr := newKernelError(errno)
			c.logError(p.seq, kerr, &errno)
			c.finish(p, item{err: kerr, last: true})
		}

	case netlink.Done:
		c.logMessage(log.DirectionIn, nm)
		c.finish(p, item{last: true})

	case netlink.Overrun:
		// The kernel dropped messages; this request's reply can no
		// longer be trusted to be complete.
		kerr := newKernelError(syscall.ENOBUFS)
		c.logError(p.seq, kerr, nil)
		c.finish(p, item{err: kerr, last: true})

	default:
		m, err := wire.Unpack(nm)
		if err != nil {
			err = fmt.Errorf("decode reply: %w", err)
			c.logError(p.seq, err, nil)
			c.finish(p, item{err: err, last: true})
			return
		}

		c.logMessage(log.DirectionIn, nm)
		if nm.Header.Flags&netlink.Multi != 0 {
			c.deliver(p, item{msg: m, ok: true})
		} else {
			// A lone reply is its own terminal condition.
			c.finish(p, item{msg: m, ok: true, last: true})
		}
	}
}

// deliver pushes an item onto a request's reply channel, giving up if the
// consumer canceled the stream.
func (c *Conn) deliver(p *pending, it item) {
	select {
	case p.replyc <- it:
	case <-p.cancel:
		delete(c.pending, p.seq)
	}
}

// finish delivers a terminal item and removes the request from the
// dispatch table.
func (c *Conn) finish(p *pending, it item) {
	delete(c.pending, p.seq)
	select {
	case p.replyc <- it:
	case <-p.cancel:
	}
}

// unsolicited handles an inbound message with no matching request:
// multicast traffic when a Notify callback is configured, otherwise noise
// to drop.
func (c *Conn) unsolicited(nm netlink.Message) {
	c.logMessage(log.DirectionIn, nm)
	if c.notify != nil {
		c.notify(nm)
	}
}

// errnoOf extracts the errno from a netlink error reply. The payload
// starts with a signed 32-bit code: negative errno, or zero for an ACK.
func errnoOf(nm netlink.Message) (syscall.Errno, error) {
	if len(nm.Data) < 4 {
		return 0, fmt.Errorf("netlink error reply too short: %d bytes", len(nm.Data))
	}

	code := nlenc.Int32(nm.Data[:4])
	if code > 0 {
		// The kernel always reports negative errno values.
		return 0, fmt.Errorf("netlink error reply with positive code %d", code)
	}
	return syscall.Errno(-code), nil
}

func (c *Conn) logMessage(dir log.Direction, nm netlink.Message) {
	ev := log.MessageEvent{
		Sequence:  nm.Header.Sequence,
		Family:    uint16(nm.Header.Type),
		Flags:     uint16(nm.Header.Flags),
		Multipart: nm.Header.Flags&netlink.Multi != 0,
	}
	if m, err := wire.Unpack(nm); err == nil {
		ev.Command = m.Header.Command
		ev.Version = m.Header.Version
		ev.PayloadLen = len(m.Data)
	}

	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerConn,
		Category:     log.CategoryMessage,
		Message:      &ev,
	})
}

func (c *Conn) logError(seq uint32, err error, errno *syscall.Errno) {
	ev := log.ErrorEventData{
		Sequence: seq,
		Message:  err.Error(),
	}
	if errno != nil {
		code := -int32(*errno)
		ev.Code = &code
	}

	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerConn,
		Category:     log.CategoryError,
		Error:        &ev,
	})
}

func (c *Conn) logState(oldState, newState, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerConn,
		Category:     log.CategoryState,
		StateChange:  &log.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
}
