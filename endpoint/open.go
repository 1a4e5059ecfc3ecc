package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/metrics"
	"github.com/touka-aoi/duplex/queue"
)

// openState はOpen状態が所有する資源です。受信ループと送信ループを持ち、
// release で一度だけ解放されます。
type openState struct {
	transport      domain.Transport
	inbound        *queue.Queue[domain.Message]
	outbound       *queue.Queue[domain.Message]
	sendCompletion *Completion
	post           func(endpointEvent)
	logger         *slog.Logger
	metrics        metrics.Recorder
	minRead        int
	drainTimeout   time.Duration

	cancel context.CancelFunc
	group  *errgroup.Group
	permit *semaphore.Weighted

	sendDone chan struct{}
	recvDone chan struct{}
	recvErr  error // recvDone のクローズ前に書き込まれる

	releaseOnce sync.Once
}

func startOpen(e *Endpoint, transport domain.Transport, cfg Config) *openState {
	o := &openState{
		transport:      transport,
		inbound:        e.inbound,
		outbound:       e.outbound,
		sendCompletion: e.sendCompletion,
		post:           e.post,
		logger:         e.logger,
		metrics:        cfg.Metrics,
		minRead:        cfg.ReceiveBufferSize,
		drainTimeout:   cfg.DrainTimeout,
		permit:         semaphore.NewWeighted(1),
		sendDone:       make(chan struct{}),
		recvDone:       make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	o.cancel = cancel
	o.group = eg
	eg.Go(func() error {
		o.receive(ctx)
		return nil
	})
	eg.Go(func() error {
		o.send(ctx)
		return nil
	})
	return o
}

// receive は受信ループを実行し、その結果を受信キューとイベントへ反映します。
func (o *openState) receive(ctx context.Context) {
	defer close(o.recvDone)

	err := receiveLoop(ctx, o.transport, o.inbound, o.minRead, func(msg domain.Message) {
		o.metrics.IncrementCounter(ctx, metrics.MessagesReceived, 1)
		o.metrics.IncrementCounter(ctx, metrics.BytesReceived, msg.Len())
	})
	switch {
	case err == nil:
		if err := o.closure(); err != nil {
			o.failReceive(err)
			return
		}
		o.inbound.Complete(nil)
		o.post(endpointEvent{kind: evPeerClosed})
	case isCancellation(ctx, err):
		// ローカルのClose/Disposeによる想定内のキャンセル
		o.inbound.Complete(context.Canceled)
	default:
		o.failReceive(&TransportError{Op: OpRead, Err: err})
	}
}

// closure はクローズフレーム受信後のステータスを検証します。
func (o *openState) closure() error {
	code, ok := o.transport.CloseStatus()
	if !ok {
		code = domain.StatusNoStatusReceived
	}
	switch o.transport.State() {
	case domain.TransportClosedRemotely, domain.TransportClosed:
	default:
		return &BadClosureError{Code: code, Description: o.transport.CloseStatusDescription()}
	}
	if code != domain.StatusNormalClosure {
		return &BadClosureError{Code: code, Description: o.transport.CloseStatusDescription()}
	}
	return nil
}

func (o *openState) failReceive(err error) {
	o.recvErr = err
	o.inbound.Complete(err)
	o.post(endpointEvent{kind: evReceiveError, err: err})
}

// send は送信ループを実行し、その結果をSendCompletionへ反映します。
func (o *openState) send(ctx context.Context) {
	defer close(o.sendDone)

	l := &sendLoop{
		outbound:  o.outbound,
		transport: o.transport,
		permit:    o.permit,
		metrics:   o.metrics,
	}
	err := l.run(ctx)

	var perr *producerError
	switch {
	case err == nil:
		o.sendCompletion.resolve(nil)
	case errors.As(err, &perr):
		o.sendCompletion.resolve(perr.err)
	case isCancellation(ctx, err):
		o.outbound.Complete(nil)
		o.sendCompletion.resolve(context.Canceled)
	default:
		terr := &TransportError{Op: OpWrite, Err: err}
		o.outbound.Complete(nil)
		o.sendCompletion.resolve(terr)
		o.post(endpointEvent{kind: evSendError, err: terr})
	}
}

// closeHandshake は送信ループの終了を待ってクローズフレームを送り、受信ループの終了を待ちます。
// 受信側の失敗 (不正なクローズを含む) はハンドシェイクの成功より優先されます。
func (o *openState) closeHandshake(ctx context.Context) error {
	select {
	case <-o.sendDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := o.transport.CloseOutput(ctx, domain.StatusNormalClosure, ""); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Op: OpClose, Err: err}
	}
	select {
	case <-o.recvDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return o.recvErr
}

// release は両ループをキャンセルして終了を待ち、トランスポートを解放します。
// 送信中のフレームがあれば drainTimeout まで完了を待ってからキャンセルします。
func (o *openState) release() {
	o.releaseOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.drainTimeout)
		acquired := o.permit.Acquire(ctx, 1) == nil
		cancel()
		if !acquired {
			o.logger.Warn("endpoint: send still in flight, cancelling", "timeout", o.drainTimeout)
		}

		o.cancel()
		if acquired {
			o.permit.Release(1)
		}
		_ = o.group.Wait()

		if err := o.transport.Close(); err != nil {
			o.logger.Debug("endpoint: transport close failed", "error", err)
		}
	})
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
