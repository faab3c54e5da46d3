package transport

import (
	"errors"

	"github.com/mdlayher/netlink"
)

// Transport errors.
var (
	ErrNotSupported = errors.New("operation not supported by this socket")
)

// Socket is a bidirectional netlink endpoint. Implemented by the production
// AF_NETLINK socket returned by Dial and by in-memory fakes in tests.
//
// Send and Receive may be called concurrently with each other, but neither
// may be called concurrently with itself. The connection layer serializes
// all access through a single pump.
type Socket interface {
	// Send writes a single netlink message to the kernel.
	Send(m netlink.Message) error

	// Receive reads one datagram and returns the netlink messages it
	// contains, in kernel delivery order. It blocks until data arrives or
	// the socket is closed.
	Receive() ([]netlink.Message, error)

	// Close closes the socket and unblocks any pending Receive.
	Close() error
}

// GroupSocket is a Socket that supports netlink multicast group membership.
// The production socket implements it.
type GroupSocket interface {
	Socket

	// JoinGroup subscribes the socket to a multicast group by ID.
	JoinGroup(group uint32) error

	// LeaveGroup removes the socket from a multicast group by ID.
	LeaveGroup(group uint32) error
}

// Config configures a production socket.
type Config struct {
	// Groups is a bitmask of multicast groups to subscribe to at bind
	// time. Zero means no subscriptions.
	Groups uint32
}

// PortID reports the port identifier the kernel assigned to a socket, when
// the implementation knows it. The kernel addresses unicast replies to this
// identifier.
type PortID interface {
	PortID() uint32
}
