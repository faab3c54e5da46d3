//go:build linux

package transport

import (
	"os"
	"syscall"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/socket"
	"golang.org/x/sys/unix"
)

// Compile-time interface satisfaction checks.
var (
	_ GroupSocket = (*sock)(nil)
	_ PortID      = (*sock)(nil)
)

// sock is the production AF_NETLINK socket.
type sock struct {
	c   *socket.Conn
	pid uint32
}

// Dial opens and binds a generic netlink socket. If config is nil, defaults
// are used.
func Dial(config *Config) (Socket, error) {
	return dial(unix.NETLINK_GENERIC, config)
}

// DialProtocol opens and binds a netlink socket for an arbitrary netlink
// protocol number.
func DialProtocol(protocol int, config *Config) (Socket, error) {
	return dial(protocol, config)
}

func dial(protocol int, config *Config) (*sock, error) {
	if config == nil {
		config = &Config{}
	}

	c, err := socket.Socket(unix.AF_NETLINK, unix.SOCK_RAW, protocol, "netlink", nil)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: config.Groups,
	}

	// Close on any bind error to avoid leaking the descriptor.
	if err := c.Bind(addr); err != nil {
		_ = c.Close()
		return nil, err
	}

	sa, err := c.Getsockname()
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &sock{
		c:   c,
		pid: sa.(*unix.SockaddrNetlink).Pid,
	}, nil
}

// PortID returns the port identifier the kernel assigned at bind time.
func (s *sock) PortID() uint32 { return s.pid }

// Send writes a single netlink message to the kernel.
func (s *sock) Send(m netlink.Message) error {
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	return s.c.Sendmsg(b, nil, sa, 0)
}

// Receive reads one datagram and splits it into netlink messages.
func (s *sock) Receive() ([]netlink.Message, error) {
	b := make([]byte, os.Getpagesize())
	for {
		// Peek to learn whether the pending datagram fits the buffer.
		n, _, _, _, err := s.c.Recvmsg(b, nil, unix.MSG_PEEK)
		if err != nil {
			return nil, err
		}
		if n < len(b) {
			break
		}

		// Datagram may be truncated at this size; grow and peek again.
		b = make([]byte, len(b)*2)
	}

	n, _, _, _, err := s.c.Recvmsg(b, nil, 0)
	if err != nil {
		return nil, err
	}

	raw, err := syscall.ParseNetlinkMessage(b[:nlmsgAlign(n)])
	if err != nil {
		return nil, err
	}

	msgs := make([]netlink.Message, 0, len(raw))
	for _, r := range raw {
		msgs = append(msgs, netlink.Message{
			Header: netlink.Header{
				Length:   r.Header.Len,
				Type:     netlink.HeaderType(r.Header.Type),
				Flags:    netlink.HeaderFlags(r.Header.Flags),
				Sequence: r.Header.Seq,
				PID:      r.Header.Pid,
			},
			Data: r.Data,
		})
	}

	return msgs, nil
}

// Close closes the socket and unblocks any pending Receive.
func (s *sock) Close() error { return s.c.Close() }

// JoinGroup subscribes the socket to a multicast group by ID.
func (s *sock) JoinGroup(group uint32) error {
	return s.c.SetsockoptInt(unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(group))
}

// LeaveGroup removes the socket from a multicast group by ID.
func (s *sock) LeaveGroup(group uint32) error {
	return s.c.SetsockoptInt(unix.SOL_NETLINK, unix.NETLINK_DROP_MEMBERSHIP, int(group))
}

// nlmsgAlign rounds a length up to the netlink message alignment boundary.
func nlmsgAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) & ^(unix.NLMSG_ALIGNTO - 1)
}
