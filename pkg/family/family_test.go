package family

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"

	"github.com/genl-protocol/genl-go/pkg/conn"
	"github.com/genl-protocol/genl-go/pkg/wire"
)

// ctrlSocket plays the nlctrl side of the control protocol. A handler
// inspects each request and returns the raw netlink replies.
type ctrlSocket struct {
	mu      sync.Mutex
	handler func(m netlink.Message) []netlink.Message

	inbox     chan []netlink.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newCtrlSocket(handler func(m netlink.Message) []netlink.Message) *ctrlSocket {
	return &ctrlSocket{
		handler: handler,
		inbox:   make(chan []netlink.Message, 64),
		closed:  make(chan struct{}),
	}
}

func (s *ctrlSocket) Send(m netlink.Message) error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		if replies := handler(m); len(replies) > 0 {
			s.inbox <- replies
		}
	}
	return nil
}

func (s *ctrlSocket) Receive() ([]netlink.Message, error) {
	select {
	case msgs := <-s.inbox:
		return msgs, nil
	case <-s.closed:
		return nil, io.ErrClosedPipe
	}
}

func (s *ctrlSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// familyAttrs encodes the control attributes of one GETFAMILY reply.
func familyAttrs(t *testing.T, f Family, withID bool) []byte {
	t.Helper()

	ae := netlink.NewAttributeEncoder()
	if withID {
		ae.Uint16(unix.CTRL_ATTR_FAMILY_ID, f.ID)
	}
	ae.String(unix.CTRL_ATTR_FAMILY_NAME, f.Name)
	ae.Uint32(unix.CTRL_ATTR_VERSION, uint32(f.Version))
	if len(f.Groups) > 0 {
		ae.Nested(unix.CTRL_ATTR_MCAST_GROUPS, func(nae *netlink.AttributeEncoder) error {
			for i, g := range f.Groups {
				nae.Nested(uint16(i+1), func(gae *netlink.AttributeEncoder) error {
					gae.String(unix.CTRL_ATTR_MCAST_GRP_NAME, g.Name)
					gae.Uint32(unix.CTRL_ATTR_MCAST_GRP_ID, g.ID)
					return nil
				})
			}
			return nil
		})
	}

	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("encode family attributes: %v", err)
	}
	return b
}

func ctrlReply(seq uint32, attrs []byte, flags netlink.HeaderFlags) netlink.Message {
	b, _ := wire.Message{
		Header: wire.Header{Command: unix.CTRL_CMD_NEWFAMILY, Version: controlVersion},
		Data:   attrs,
	}.MarshalBinary()
	return netlink.Message{
		Header: netlink.Header{
			Type:     netlink.HeaderType(unix.GENL_ID_CTRL),
			Flags:    flags,
			Sequence: seq,
		},
		Data: b,
	}
}

func ctrlDone(seq uint32) netlink.Message {
	return netlink.Message{
		Header: netlink.Header{
			Type:     netlink.Done,
			Flags:    netlink.Multi,
			Sequence: seq,
		},
		Data: nlenc.Int32Bytes(0),
	}
}

func ctrlError(seq uint32, errno syscall.Errno) netlink.Message {
	return netlink.Message{
		Header: netlink.Header{Type: netlink.Error, Sequence: seq},
		Data:   nlenc.Int32Bytes(-int32(errno)),
	}
}

// startClient wires a control socket to a running connection and returns a
// Client over it.
func startClient(t *testing.T, s *ctrlSocket) *Client {
	t.Helper()

	c, h := conn.New(s, nil)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = c.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = c.Close()
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Error("pump did not stop after Close")
		}
	})

	return New(h)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGet(t *testing.T) {
	want := Family{
		ID:      0x1b,
		Name:    "nl80211",
		Version: 1,
		Groups: []MulticastGroup{
			{Name: "config", ID: 3},
			{Name: "scan", ID: 4},
		},
	}

	var gotReq wire.Message
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		gotReq, _ = wire.Unpack(m)
		return []netlink.Message{ctrlReply(m.Header.Sequence, familyAttrs(t, want, true), 0)}
	})
	c := startClient(t, s)

	got, err := c.Get(testCtx(t), "nl80211")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.ID != want.ID || got.Name != want.Name || got.Version != want.Version {
		t.Errorf("got family %+v, want %+v", got, want)
	}
	if len(got.Groups) != 2 || got.Groups[0] != want.Groups[0] || got.Groups[1] != want.Groups[1] {
		t.Errorf("got groups %+v, want %+v", got.Groups, want.Groups)
	}

	// The request must address nlctrl with the GETFAMILY command and
	// carry the family name attribute.
	if gotReq.Header.Command != unix.CTRL_CMD_GETFAMILY {
		t.Errorf("request command = %d, want CTRL_CMD_GETFAMILY", gotReq.Header.Command)
	}
	ad, err := netlink.NewAttributeDecoder(gotReq.Data)
	if err != nil {
		t.Fatalf("decode request attributes: %v", err)
	}
	var name string
	for ad.Next() {
		if ad.Type() == unix.CTRL_ATTR_FAMILY_NAME {
			name = ad.String()
		}
	}
	if name != "nl80211" {
		t.Errorf("request family name = %q, want %q", name, "nl80211")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		return []netlink.Message{ctrlError(m.Header.Sequence, syscall.ENOENT)}
	})
	c := startClient(t, s)

	_, err := c.Get(testCtx(t), "no-such-family")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOtherKernelErrorPassesThrough(t *testing.T) {
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		return []netlink.Message{ctrlError(m.Header.Sequence, syscall.EPERM)}
	})
	c := startClient(t, s)

	_, err := c.Get(testCtx(t), "nl80211")
	if errors.Is(err, ErrNotFound) {
		t.Fatal("EPERM must not be reported as not-found")
	}
	var kerr *conn.KernelError
	if !errors.As(err, &kerr) || kerr.Kind != conn.KindPermissionDenied {
		t.Fatalf("expected permission-denied kernel error, got %v", err)
	}
}

func TestGetMissingID(t *testing.T) {
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		attrs := familyAttrs(t, Family{Name: "broken", Version: 1}, false)
		return []netlink.Message{ctrlReply(m.Header.Sequence, attrs, 0)}
	})
	c := startClient(t, s)

	_, err := c.Get(testCtx(t), "broken")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("expected ErrMalformedReply, got %v", err)
	}
}

func TestResolveID(t *testing.T) {
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		attrs := familyAttrs(t, Family{ID: 0x21, Name: "acpi_event", Version: 1}, true)
		return []netlink.Message{ctrlReply(m.Header.Sequence, attrs, 0)}
	})
	c := startClient(t, s)

	id, err := c.ResolveID(testCtx(t), "acpi_event")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != 0x21 {
		t.Errorf("id = %#x, want 0x21", id)
	}
}

func TestList(t *testing.T) {
	families := []Family{
		{ID: 0x10, Name: "nlctrl", Version: 2},
		{ID: 0x1b, Name: "nl80211", Version: 1},
		{ID: 0x21, Name: "acpi_event", Version: 1},
	}

	var gotFlags netlink.HeaderFlags
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		gotFlags = m.Header.Flags
		seq := m.Header.Sequence
		msgs := make([]netlink.Message, 0, len(families)+1)
		for _, f := range families {
			msgs = append(msgs, ctrlReply(seq, familyAttrs(t, f, true), netlink.Multi))
		}
		return append(msgs, ctrlDone(seq))
	})
	c := startClient(t, s)

	got, err := c.List(testCtx(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(families) {
		t.Fatalf("got %d families, want %d", len(got), len(families))
	}
	for i, f := range got {
		if f.ID != families[i].ID || f.Name != families[i].Name {
			t.Errorf("family %d = %+v, want %+v", i, f, families[i])
		}
	}

	if gotFlags&netlink.Dump == 0 {
		t.Error("list request must carry the dump flag")
	}
}

func TestMulticastGroups(t *testing.T) {
	s := newCtrlSocket(func(m netlink.Message) []netlink.Message {
		attrs := familyAttrs(t, Family{
			ID:      0x1b,
			Name:    "nl80211",
			Version: 1,
			Groups:  []MulticastGroup{{Name: "mlme", ID: 6}},
		}, true)
		return []netlink.Message{ctrlReply(m.Header.Sequence, attrs, 0)}
	})
	c := startClient(t, s)

	groups, err := c.MulticastGroups(testCtx(t), "nl80211")
	if err != nil {
		t.Fatalf("multicast groups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "mlme" || groups[0].ID != 6 {
		t.Errorf("unexpected groups: %+v", groups)
	}
}
