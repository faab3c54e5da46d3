// Package transport provides the raw netlink socket transport.
//
// The transport layer handles:
//   - Opening and binding an AF_NETLINK socket
//   - Sending one netlink message per datagram
//   - Receiving datagrams and splitting them into netlink messages
//   - Multicast group membership
//
// The transport performs no request correlation, no multipart assembly and
// no error translation. Every received message is handed upward exactly as
// the kernel delivered it; the connection layer owns all of that logic.
package transport
