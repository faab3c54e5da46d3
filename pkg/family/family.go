package family

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/genl-protocol/genl-go/pkg/conn"
	"github.com/genl-protocol/genl-go/pkg/wire"
)

var (
	// ErrNotFound is returned when no family with the requested name is
	// registered with the kernel.
	ErrNotFound = errors.New("generic netlink family not found")

	// ErrMalformedReply is returned when a control family reply lacks the
	// mandatory family identifier attribute.
	ErrMalformedReply = errors.New("malformed control family reply")

	errInvalidVersion = errors.New("family version attribute exceeds one byte")
)

// controlVersion is the interface version spoken to nlctrl.
const controlVersion = 1

// Family describes a registered generic netlink family.
type Family struct {
	ID      uint16
	Name    string
	Version uint8
	Groups  []MulticastGroup
}

// MulticastGroup is a multicast group exposed by a family. The ID is the
// group number passed to Conn.JoinGroup.
type MulticastGroup struct {
	Name string
	ID   uint32
}

// Client queries the nlctrl control family over a connection handle. A
// Client is safe for concurrent use whenever its Handle is.
type Client struct {
	h *conn.Handle
}

// New returns a Client that issues control queries through h.
func New(h *conn.Handle) *Client {
	return &Client{h: h}
}

// Get looks up the family registered under name.
func (c *Client) Get(ctx context.Context, name string) (Family, error) {
	ae := netlink.NewAttributeEncoder()
	ae.String(unix.CTRL_ATTR_FAMILY_NAME, name)
	b, err := ae.Encode()
	if err != nil {
		return Family{}, fmt.Errorf("encode family name: %w", err)
	}

	req := wire.Message{
		Header: wire.Header{
			Command: unix.CTRL_CMD_GETFAMILY,
			Version: controlVersion,
		},
		Data: b,
	}

	msgs, err := c.h.Execute(ctx, unix.GENL_ID_CTRL, req, 0)
	if err != nil {
		var kerr *conn.KernelError
		if errors.As(err, &kerr) && kerr.Kind == conn.KindNotFound {
			return Family{}, fmt.Errorf("family %q: %w", name, ErrNotFound)
		}
		return Family{}, err
	}
	if len(msgs) != 1 {
		return Family{}, fmt.Errorf("%w: expected one reply, got %d", ErrMalformedReply, len(msgs))
	}

	return parseFamily(msgs[0].Data)
}

// ResolveID returns the numeric identifier registered under name.
func (c *Client) ResolveID(ctx context.Context, name string) (uint16, error) {
	f, err := c.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return f.ID, nil
}

// List enumerates every family currently registered with the kernel.
func (c *Client) List(ctx context.Context) ([]Family, error) {
	req := wire.Message{
		Header: wire.Header{
			Command: unix.CTRL_CMD_GETFAMILY,
			Version: controlVersion,
		},
	}

	msgs, err := c.h.Execute(ctx, unix.GENL_ID_CTRL, req, netlink.Dump)
	if err != nil {
		return nil, err
	}

	families := make([]Family, 0, len(msgs))
	for _, m := range msgs {
		f, err := parseFamily(m.Data)
		if err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	return families, nil
}

// MulticastGroups returns the multicast groups exposed by the named
// family.
func (c *Client) MulticastGroups(ctx context.Context, name string) ([]MulticastGroup, error) {
	f, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.Groups, nil
}

// parseFamily decodes the control attributes of a single GETFAMILY reply.
func parseFamily(b []byte) (Family, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return Family{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	var (
		f     Family
		sawID bool
	)
	for ad.Next() {
		switch ad.Type() {
		case unix.CTRL_ATTR_FAMILY_ID:
			f.ID = ad.Uint16()
			sawID = true
		case unix.CTRL_ATTR_FAMILY_NAME:
			f.Name = ad.String()
		case unix.CTRL_ATTR_VERSION:
			v := ad.Uint32()
			if v > math.MaxUint8 {
				return Family{}, errInvalidVersion
			}
			f.Version = uint8(v)
		case unix.CTRL_ATTR_MCAST_GROUPS:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				f.Groups = parseMulticastGroups(nad)
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		return Family{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !sawID {
		return Family{}, fmt.Errorf("%w: missing family identifier", ErrMalformedReply)
	}

	return f, nil
}

// parseMulticastGroups decodes the nested array of multicast group
// attributes. Each element is itself a nested attribute list.
func parseMulticastGroups(ad *netlink.AttributeDecoder) []MulticastGroup {
	groups := make([]MulticastGroup, 0, ad.Len())
	for ad.Next() {
		ad.Nested(func(nad *netlink.AttributeDecoder) error {
			var g MulticastGroup
			for nad.Next() {
				switch nad.Type() {
				case unix.CTRL_ATTR_MCAST_GRP_NAME:
					g.Name = nad.String()
				case unix.CTRL_ATTR_MCAST_GRP_ID:
					g.ID = nad.Uint32()
				}
			}
			groups = append(groups, g)
			return nil
		})
	}
	return groups
}
