// Package conn multiplexes generic netlink requests over a single socket.
//
// A connection is split into two halves. The Conn is the pump: a long-lived
// loop that owns the socket, matches every inbound message against the
// in-flight request with the same sequence number, and drains outbound
// requests onto the wire. The Handle is the caller-facing side: it submits
// a request and hands back a Stream of the reply messages.
//
// The pump does not schedule itself; the caller runs it:
//
//	c, h, err := conn.Dial(nil)
//	if err != nil {
//		// ...
//	}
//	go c.Run(ctx)
//
//	s, err := h.Request(ctx, unix.GENL_ID_CTRL, msg, netlink.Dump)
//	if err != nil {
//		// ...
//	}
//	defer s.Close()
//	for {
//		m, err := s.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		// ...
//	}
//
// Handles may be used concurrently; every request is tracked independently
// and replies never cross between streams. The dispatch table is owned
// exclusively by the pump goroutine and reached only through channels, so
// no lock guards it.
//
// A Stream must be drained to its terminal condition or closed; an
// abandoned open stream can stall delivery for the whole connection.
package conn
