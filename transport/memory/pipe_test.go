package memory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touka-aoi/duplex/domain"
)

func TestPipe_SendReceive(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, []byte("hello"), domain.MessageText, true))
	require.NoError(t, a.Send(ctx, []byte{1, 2}, domain.MessageBinary, true))

	buf := make([]byte, 16)
	res, err := b.Receive(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiveResult{N: 5, Final: true, Kind: domain.FrameText}, res)
	assert.Equal(t, "hello", string(buf[:res.N]))

	res, err = b.Receive(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiveResult{N: 2, Final: true, Kind: domain.FrameBinary}, res)
}

func TestPipe_SplitsLargeFrames(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("abcdefg"), domain.MessageText, true))

	buf := make([]byte, 3)
	var got []byte
	var finals []bool
	for {
		res, err := b.Receive(ctx, buf)
		require.NoError(t, err)
		got = append(got, buf[:res.N]...)
		finals = append(finals, res.Final)
		if res.Final {
			break
		}
	}
	assert.Equal(t, "abcdefg", string(got))
	assert.Equal(t, []bool{false, false, true}, finals)
}

func TestPipe_CloseHandshake(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	require.NoError(t, a.CloseOutput(ctx, domain.StatusNormalClosure, "bye"))
	assert.Equal(t, domain.TransportClosedLocally, a.State())
	assert.ErrorIs(t, a.Send(ctx, []byte("x"), domain.MessageText, true), ErrCloseSent)

	res, err := b.Receive(ctx, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameClose, res.Kind)
	assert.Equal(t, domain.TransportClosed, b.State())
	code, ok := b.CloseStatus()
	assert.True(t, ok)
	assert.Equal(t, domain.StatusNormalClosure, code)
	assert.Equal(t, "bye", b.CloseStatusDescription())

	// bは自動で応答している
	res, err = a.Receive(ctx, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameClose, res.Kind)
	assert.Equal(t, domain.TransportClosed, a.State())
	code, _ = a.CloseStatus()
	assert.Equal(t, domain.StatusNormalClosure, code)
}

func TestPipe_AbruptCloseFaultsPeer(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("last"), domain.MessageText, true))
	require.NoError(t, a.Close())
	assert.Equal(t, domain.TransportFaulted, a.State())

	// 残っているフレームは読める
	buf := make([]byte, 8)
	res, err := b.Receive(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "last", string(buf[:res.N]))

	_, err = b.Receive(ctx, buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, domain.TransportFaulted, b.State())
	_, ok := b.CloseStatus()
	assert.False(t, ok)
}

func TestPipe_ReceiveCancelled(t *testing.T) {
	_, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx, make([]byte, 8))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.TransportReady, b.State())
}

func TestPipe_SendCopiesPayload(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()
	payload := []byte("abc")
	require.NoError(t, a.Send(ctx, payload, domain.MessageBinary, true))
	payload[0] = 'z'

	buf := make([]byte, 8)
	res, err := b.Receive(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:res.N]))
}
