package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mdlayher/netlink"
)

func TestMessageMarshalBinary(t *testing.T) {
	m := Message{
		Header: Header{Command: 3, Version: 2},
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
	}

	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := []byte{3, 2, 0, 0, 0xde, 0xad, 0xbe, 0xef}
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected bytes:\n got: %v\nwant: %v", b, want)
	}
}

func TestMessageUnmarshalBinary(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		var m Message
		if err := m.UnmarshalBinary([]byte{3, 1, 0, 0, 0xff}); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if m.Header.Command != 3 || m.Header.Version != 1 {
			t.Errorf("unexpected header: %+v", m.Header)
		}
		if !bytes.Equal(m.Data, []byte{0xff}) {
			t.Errorf("unexpected data: %v", m.Data)
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		var m Message
		if err := m.UnmarshalBinary([]byte{1, 1, 0, 0}); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(m.Data) != 0 {
			t.Errorf("expected empty data, got %v", m.Data)
		}
	})

	t.Run("TooShort", func(t *testing.T) {
		var m Message
		err := m.UnmarshalBinary([]byte{1, 1, 0})
		if !errors.Is(err, ErrMessageTooShort) {
			t.Fatalf("expected ErrMessageTooShort, got %v", err)
		}
	})

	t.Run("ReservedBytesSet", func(t *testing.T) {
		var m Message
		err := m.UnmarshalBinary([]byte{1, 1, 0xff, 0})
		if !errors.Is(err, ErrReservedBytes) {
			t.Fatalf("expected ErrReservedBytes, got %v", err)
		}
	})
}

func TestPackUnpack(t *testing.T) {
	m := Message{
		Header: Header{Command: 1, Version: 1},
		Data:   []byte{0x01, 0x02},
	}

	nm, err := Pack(m, 0x10, netlink.Request|netlink.Dump)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	if got := uint16(nm.Header.Type); got != 0x10 {
		t.Errorf("expected family 0x10 in netlink type, got %#x", got)
	}
	if nm.Header.Flags&netlink.Request == 0 || nm.Header.Flags&netlink.Dump == 0 {
		t.Errorf("flags not preserved: %s", nm.Header.Flags)
	}
	if nm.Header.Sequence != 0 {
		t.Errorf("sequence must be left for the connection layer, got %d", nm.Header.Sequence)
	}

	out, err := Unpack(nm)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if out.Header != m.Header {
		t.Errorf("header round trip mismatch: %+v != %+v", out.Header, m.Header)
	}
	if !bytes.Equal(out.Data, m.Data) {
		t.Errorf("data round trip mismatch: %v != %v", out.Data, m.Data)
	}
}
