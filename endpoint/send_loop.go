package endpoint

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/metrics"
	"github.com/touka-aoi/duplex/queue"
)

const opSend = "send"

// producerError はSenderがエラー付きで完了されたことを表します。
type producerError struct{ err error }

func (e *producerError) Error() string { return e.err.Error() }
func (e *producerError) Unwrap() error { return e.err }

// sendLoop は送信キューの内容をトランスポートへ書き込みます。
// 送信の前後で許可を取得・返却するため、同時に送信中のフレームは高々1つです。
type sendLoop struct {
	outbound  queue.Reader[domain.Message]
	transport domain.Transport
	permit    *semaphore.Weighted
	metrics   metrics.Recorder
}

// run はキューが完了して空になるとnilを返します。
func (l *sendLoop) run(ctx context.Context) error {
	for {
		msg, err := l.outbound.Read(ctx)
		switch {
		case errors.Is(err, queue.ErrClosed):
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return &producerError{err: err}
		}
		if err := l.send(ctx, msg); err != nil {
			return err
		}
	}
}

func (l *sendLoop) send(ctx context.Context, msg domain.Message) error {
	waitStart := time.Now()
	if err := l.permit.Acquire(ctx, 1); err != nil {
		return err
	}
	l.metrics.RecordContention(ctx, opSend, time.Since(waitStart))

	start := time.Now()
	err := l.transport.Send(ctx, msg.Payload(), msg.Kind(), true)
	l.permit.Release(1)
	if err != nil {
		return err
	}
	l.metrics.RecordLatency(ctx, opSend, time.Since(start))
	l.metrics.IncrementCounter(ctx, metrics.MessagesSent, 1)
	l.metrics.IncrementCounter(ctx, metrics.BytesSent, msg.Len())
	return nil
}
