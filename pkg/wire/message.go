package wire

import (
	"errors"

	"github.com/mdlayher/netlink"
)

// Message errors.
var (
	ErrMessageTooShort = errors.New("generic netlink message too short")
	ErrReservedBytes   = errors.New("generic netlink reserved bytes not zero")
)

// headerLen is the fixed size of the generic netlink header
// (command, version, two reserved bytes).
const headerLen = 4

// Header is the generic netlink header carried by every message.
type Header struct {
	// Command is the family-specific command code.
	Command uint8

	// Version is the family interface version the command targets.
	Version uint8
}

// Message is a decoded generic netlink message: a Header plus an opaque
// attribute payload interpreted only by the family the message belongs to.
type Message struct {
	Header Header
	Data   []byte
}

// MarshalBinary encodes the message into its wire representation.
func (m Message) MarshalBinary() ([]byte, error) {
	b := make([]byte, headerLen, headerLen+len(m.Data))
	b[0] = m.Header.Command
	b[1] = m.Header.Version
	// b[2], b[3] are reserved and stay zero.
	return append(b, m.Data...), nil
}

// UnmarshalBinary decodes the message from its wire representation.
// The reserved header bytes must be zero.
func (m *Message) UnmarshalBinary(b []byte) error {
	if len(b) < headerLen {
		return ErrMessageTooShort
	}
	if b[2] != 0 || b[3] != 0 {
		return ErrReservedBytes
	}

	m.Header.Command = b[0]
	m.Header.Version = b[1]
	m.Data = b[headerLen:]
	return nil
}

// Pack wraps a generic netlink message into a netlink message addressed to
// the given family. The sequence number and port ID are left zero; the
// connection layer fills them in before the message reaches the socket.
func Pack(m Message, family uint16, flags netlink.HeaderFlags) (netlink.Message, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}

	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(family),
			Flags: flags,
		},
		Data: b,
	}, nil
}

// Unpack extracts the generic netlink message carried by a netlink message.
func Unpack(nm netlink.Message) (Message, error) {
	var m Message
	if err := m.UnmarshalBinary(nm.Data); err != nil {
		return Message{}, err
	}
	return m, nil
}
