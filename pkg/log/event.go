package log

import (
	"time"
)

// Event represents a protocol event captured on a netlink connection.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"` // Decoded netlink message
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Connection lifecycle
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the kernel.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the kernel.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the raw socket layer.
	LayerTransport Layer = 0
	// LayerConn is the connection pump and dispatch layer.
	LayerConn Layer = 1
	// LayerFamily is the family resolution layer.
	LayerFamily Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerConn:
		return "CONN"
	case LayerFamily:
		return "FAMILY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a netlink message (request or reply).
	CategoryMessage Category = 0
	// CategoryState indicates a connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures a decoded generic netlink message.
type MessageEvent struct {
	// Sequence correlates the message with its request (0 for unsolicited
	// messages such as multicast notifications).
	Sequence uint32 `cbor:"1,keyasint"`

	// Family is the numeric family identifier from the netlink header.
	Family uint16 `cbor:"2,keyasint"`

	// Command is the family-specific command code.
	Command uint8 `cbor:"3,keyasint"`

	// Version is the family interface version.
	Version uint8 `cbor:"4,keyasint"`

	// Flags is the raw netlink header flags value.
	Flags uint16 `cbor:"5,keyasint,omitempty"`

	// Multipart is set when the message is part of a dump reply.
	Multipart bool `cbor:"6,keyasint,omitempty"`

	// PayloadLen is the attribute payload size in bytes.
	PayloadLen int `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Sequence is the request the error belongs to (0 when connection-wide).
	Sequence uint32 `cbor:"1,keyasint,omitempty"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the errno carried by a kernel error reply (if applicable).
	Code *int32 `cbor:"3,keyasint,omitempty"`
}
