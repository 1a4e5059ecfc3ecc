package endpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/queue"
)

// ErrUnexpectedFrame はトランスポートが契約に反するフレームを返した場合のエラーです。
var ErrUnexpectedFrame = errors.New("endpoint: unexpected frame from transport")

// frameAssembler はフレーム単位の受信を論理メッセージへ組み立てます。
// バッファは再利用され、必要に応じて拡張されます。
type frameAssembler struct {
	buf     []byte
	minRead int
}

func newFrameAssembler(minRead int) *frameAssembler {
	if minRead <= 0 {
		minRead = DefaultReceiveBufferSize
	}
	return &frameAssembler{buf: make([]byte, 0, minRead), minRead: minRead}
}

// available は少なくともminReadバイトの空き領域を返します。
func (a *frameAssembler) available() []byte {
	if cap(a.buf)-len(a.buf) < a.minRead {
		grown := make([]byte, len(a.buf), max(2*cap(a.buf), len(a.buf)+a.minRead))
		copy(grown, a.buf)
		a.buf = grown
	}
	return a.buf[len(a.buf):cap(a.buf)]
}

// next は次の論理メッセージを読み取ります。
// クローズフレームを受信した場合は ok=false を返し、組み立て途中のデータは破棄されます。
func (a *frameAssembler) next(ctx context.Context, t domain.Transport) (msg domain.Message, ok bool, err error) {
	for {
		free := a.available()
		res, err := t.Receive(ctx, free)
		if err != nil {
			return domain.Message{}, false, err
		}
		if res.Kind == domain.FrameClose {
			a.buf = a.buf[:0]
			return domain.Message{}, false, nil
		}
		kind, isData := res.Kind.MessageKind()
		if !isData || res.N < 0 || res.N > len(free) {
			return domain.Message{}, false, fmt.Errorf("%w: kind=%s n=%d", ErrUnexpectedFrame, res.Kind, res.N)
		}
		a.buf = a.buf[:len(a.buf)+res.N]
		if res.Final {
			msg := domain.NewMessage(kind, bytes.Clone(a.buf))
			a.buf = a.buf[:0]
			return msg, true, nil
		}
	}
}

// ReceiveLoop はトランスポートからメッセージを読み取り、wへ書き込みます。
// クローズフレームを受信するとnilを返します。エラーやキャンセルの場合はそのエラーを返します。
// どの場合もwは完了させません。
func ReceiveLoop(ctx context.Context, t domain.Transport, w queue.Writer[domain.Message], minRead int) error {
	return receiveLoop(ctx, t, w, minRead, nil)
}

func receiveLoop(ctx context.Context, t domain.Transport, w queue.Writer[domain.Message], minRead int, onMessage func(domain.Message)) error {
	asm := newFrameAssembler(minRead)
	for {
		msg, ok, err := asm.next(ctx, t)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if onMessage != nil {
			onMessage(msg)
		}
		if !w.TryWrite(msg) {
			return queue.ErrClosed
		}
	}
}
