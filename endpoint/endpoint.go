package endpoint

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/internal/logger"
	"github.com/touka-aoi/duplex/metrics"
	"github.com/touka-aoi/duplex/queue"
)

// Endpoint は全二重トランスポートのライフサイクルを管理します。
// 受信したメッセージは Receiver から読み取り、送信するメッセージは Sender へ書き込みます。
// 状態の更新は ownerLoop だけが行い、I/Oループと公開APIはイベントを投げるだけです。
type Endpoint struct {
	id      uuid.UUID
	logger  *slog.Logger
	metrics metrics.Recorder

	events         *queue.Queue[endpointEvent] // 制御用キュー
	inbound        *queue.Queue[domain.Message]
	outbound       *queue.Queue[domain.Message]
	sendCompletion *Completion

	open      *openState
	state     State // ownerLoop のみが読み書きする
	published atomic.Int32

	// lifecycle
	disposed atomic.Bool
	done     chan struct{}
	loopErr  error // done のクローズ前に書き込まれる
}

// New はReady状態のトランスポートを受け取り、送受信ループを開始した Endpoint を返します。
// トランスポートの所有権は Endpoint に移り、解放時に Close されます。
func New(transport domain.Transport, cfg Config) (*Endpoint, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is nil", ErrTransportNotReady)
	}
	if st := transport.State(); st != domain.TransportReady {
		return nil, fmt.Errorf("%w: transport is %s", ErrTransportNotReady, st)
	}
	cfg = cfg.withDefaults()

	id := uuid.New()
	l := cfg.Logger
	if l == nil {
		l = logger.Logger("endpoint")
	}

	e := &Endpoint{
		id:             id,
		logger:         l.With("endpoint", id),
		metrics:        cfg.Metrics,
		events:         queue.New[endpointEvent](queue.Options{SingleReader: true}),
		inbound:        queue.New[domain.Message](queue.Options{SingleWriter: true, SingleReader: !cfg.MultiReceiver}),
		outbound:       queue.New[domain.Message](queue.Options{SingleWriter: !cfg.MultiSender, SingleReader: true}),
		sendCompletion: newCompletion(),
		state:          StateOpen,
		done:           make(chan struct{}),
	}
	e.published.Store(int32(StateOpen))
	e.open = startOpen(e, transport, cfg)

	go e.ownerLoop()
	e.logger.Debug("endpoint: opened")
	return e, nil
}

func (e *Endpoint) ID() uuid.UUID { return e.id }

// Receiver は受信キューを返します。相手が正常にクローズするとエラーなしで完了し、
// 失敗時はその原因、ローカルのキャンセル時は context.Canceled で完了します。
func (e *Endpoint) Receiver() queue.Reader[domain.Message] { return e.inbound }

// Sender は送信キューを返します。送信を終えたら Complete(nil) を呼んでください。
func (e *Endpoint) Sender() queue.Writer[domain.Message] { return e.outbound }

// SendCompletion は送信キューがすべてトランスポートへ書き出されたときに確定します。
func (e *Endpoint) SendCompletion() *Completion { return e.sendCompletion }

// Messages は受信したメッセージを順に返すイテレータです。
func (e *Endpoint) Messages(ctx context.Context) iter.Seq2[domain.Message, error] {
	return queue.Seq(ctx, queue.Reader[domain.Message](e.inbound))
}

// State は直近に公開された状態を返します。
func (e *Endpoint) State() State { return State(e.published.Load()) }

// Done は終端状態へ遷移した後にクローズされます。
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// Close はクローズハンドシェイクを行い、終端状態になるまで待ちます。
// Sender を完了させて SendCompletion が確定する前に呼ぶと ErrSendNotCompleted を返します。
// ctx が先に終了した場合、エンドポイントは Aborted へ遷移します。
func (e *Endpoint) Close(ctx context.Context) error {
	if !e.sendCompletion.IsDone() {
		return ErrSendNotCompleted
	}
	e.post(endpointEvent{kind: evClose, ctx: ctx})
	select {
	case <-e.done:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose はエンドポイントを即座に破棄します。何度呼んでも安全です。
func (e *Endpoint) Dispose() error {
	if !e.disposed.CompareAndSwap(false, true) {
		return nil
	}
	e.post(endpointEvent{kind: evDispose})
	<-e.done
	// 遷移に失敗してループが終了していた場合もここで解放する
	e.open.release()
	return e.loopErr
}

func (e *Endpoint) post(ev endpointEvent) {
	if !e.events.TryWrite(ev) {
		e.logger.Debug("endpoint: event dropped after termination", "event", ev.kind)
	}
}

// ownerLoop はイベントを1つずつ処理し、状態を更新する唯一の関数です。
func (e *Endpoint) ownerLoop() {
	defer close(e.done)
	for {
		ev, err := e.events.Read(context.Background())
		if err != nil {
			return
		}
		next, err := e.handleEvent(ev)
		switch {
		case errors.Is(err, ErrInvalidOperation):
			e.logger.Warn("endpoint: event ignored", "event", ev.kind, "error", err)
			continue
		case err != nil:
			e.loopErr = err
			e.logger.Error("endpoint: event loop stopped", "state", e.state, "event", ev.kind, "error", err)
			e.events.Complete(err)
			return
		}
		e.setState(next)
		if next.Terminal() {
			e.events.Complete(nil)
			return
		}
	}
}

func (e *Endpoint) handleEvent(ev endpointEvent) (State, error) {
	res, err := transition(e.state, ev.kind, e.sendCompletion.IsDone())
	if err != nil {
		return e.state, err
	}
	switch res.act {
	case actRelease:
		if ev.err != nil {
			e.logger.Warn("endpoint: connection faulted", "event", ev.kind, "error", ev.err)
		}
		e.open.release()
		return res.next, nil
	case actCloseHandshake:
		return e.closeGracefully(ev.ctx), nil
	default:
		return e.state, nil
	}
}

func (e *Endpoint) closeGracefully(ctx context.Context) State {
	if ctx == nil {
		ctx = context.Background()
	}
	err := e.open.closeHandshake(ctx)
	e.open.release()
	switch {
	case err == nil:
		return StateClosedNormally
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		e.logger.Info("endpoint: close aborted", "error", err)
		return StateAborted
	default:
		e.logger.Warn("endpoint: close failed", "error", err)
		return StateFaulted
	}
}

func (e *Endpoint) setState(next State) {
	prev := e.state
	e.state = next
	e.published.Store(int32(next))
	e.metrics.RecordTransition(context.Background(), prev.String(), next.String())
	e.logger.Debug("endpoint: state changed", "from", prev, "to", next)
}
