package conn

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genl-protocol/genl-go/pkg/wire"
)

func TestStreamNextContextCancel(t *testing.T) {
	k := newFakeKernel(nil) // kernel never replies
	_, h := startConn(t, k)

	s, err := h.Request(context.Background(), 0x10, wire.Message{Header: wire.Header{Command: 1, Version: 1}}, 0)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A context timeout does not end the stream; a later Next with a
	// fresh context can still receive the reply.
	k.push(genlReply(waitForSend(t, k), 0x10, 1, []byte{0x42}, 0))

	m, err := s.Next(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, m.Data)
}

func TestStreamCloseIdempotent(t *testing.T) {
	k := newFakeKernel(func(m netlink.Message) []netlink.Message {
		return []netlink.Message{
			genlReply(m.Header.Sequence, uint16(m.Header.Type), 1, nil, 0),
		}
	})
	_, h := startConn(t, k)

	s, err := h.Request(testCtx(t), 0x10, wire.Message{Header: wire.Header{Command: 1, Version: 1}}, 0)
	require.NoError(t, err)

	s.Close()
	s.Close()
	s.Close()

	_, err = s.Next(testCtx(t))
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamCloseAfterEOF(t *testing.T) {
	k := newFakeKernel(func(m netlink.Message) []netlink.Message {
		return []netlink.Message{
			genlReply(m.Header.Sequence, uint16(m.Header.Type), 1, nil, 0),
		}
	})
	_, h := startConn(t, k)
	ctx := testCtx(t)

	s, err := h.Request(ctx, 0x10, wire.Message{Header: wire.Header{Command: 1, Version: 1}}, 0)
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	// Close after a clean end keeps the first terminal condition.
	s.Close()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCollectStopsOnError(t *testing.T) {
	k := newFakeKernel(func(m netlink.Message) []netlink.Message {
		seq := m.Header.Sequence
		return []netlink.Message{
			genlReply(seq, uint16(m.Header.Type), 1, []byte{1}, netlink.Multi),
			errReply(seq, 22), // EINVAL mid-stream
		}
	})
	_, h := startConn(t, k)
	ctx := testCtx(t)

	s, err := h.Request(ctx, 0x10, wire.Message{Header: wire.Header{Command: 1, Version: 1}}, netlink.Dump)
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.Collect(ctx)
	require.Error(t, err)
	assert.Nil(t, msgs)

	var kerr *KernelError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, KindInvalidArgument, kerr.Kind)
}
