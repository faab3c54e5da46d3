// Package wire provides the generic netlink message model.
//
// A generic netlink message is a 4-byte header (command, version, two
// reserved bytes) followed by an opaque attribute payload. The message
// travels as the payload of a plain netlink message whose type field
// carries the numeric family identifier.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Attribute TLV payload        │
//	├────────────────────────────────┤
//	│   Generic netlink header (4B)  │
//	├────────────────────────────────┤
//	│   Netlink header (16B)         │
//	├────────────────────────────────┤
//	│   AF_NETLINK datagram          │
//	└────────────────────────────────┘
//
// Attribute payloads are encoded and decoded with the
// github.com/mdlayher/netlink AttributeEncoder and AttributeDecoder types;
// this package does not interpret them.
package wire
