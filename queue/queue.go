package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed は完了済みのキューへの書き込み、または正常完了して空になったキューからの読み取りで返されます。
var ErrClosed = errors.New("queue: closed")

// Options はキューの並行性の契約です。
// 実装はどちらのモードでもロックで保護しますが、SingleWriter/SingleReaderは
// 利用者が同時に1つしか書き込み/読み取りを行わないことを宣言します。
type Options struct {
	SingleWriter bool
	SingleReader bool
}

// Reader はキューの消費側のハンドルです。
type Reader[T any] interface {
	// Read は次の要素を返します。キューが完了して空の場合は完了時のエラー
	// (正常完了ならErrClosed) を返します。
	Read(ctx context.Context) (T, error)
	TryRead() (T, bool)
	// WaitToRead は要素が読めるようになるまで待ちます。
	// 正常完了して空ならfalse, nilを返します。
	WaitToRead(ctx context.Context) (bool, error)
	// Done は完了済みかつ全要素が読み出された時点でクローズされます。
	Done() <-chan struct{}
	// Err はDone()後の完了エラーを返します。正常完了ならnilです。
	Err() error
	Len() int
}

// Writer はキューの生産側のハンドルです。
type Writer[T any] interface {
	Write(ctx context.Context, v T) error
	// TryWrite は完了済みでなければ要素を追加してtrueを返します。
	TryWrite(v T) bool
	// Complete はキューを完了させます。以降の書き込みは拒否されます。
	// 最初の呼び出しのみがtrueを返します。
	Complete(err error) bool
}

// Queue は上限のないFIFOキューです。
type Queue[T any] struct {
	opts Options

	mu        sync.Mutex
	items     []T
	completed bool
	err       error
	drained   bool

	ready     chan struct{} // 要素の追加を通知する (容量1)
	closedCh  chan struct{} // Completeでクローズ
	drainedCh chan struct{} // 完了かつ空でクローズ
}

var (
	_ Reader[struct{}] = (*Queue[struct{}])(nil)
	_ Writer[struct{}] = (*Queue[struct{}])(nil)
)

// New は空のキューを作成します。
func New[T any](opts Options) *Queue[T] {
	return &Queue[T]{
		opts:      opts,
		ready:     make(chan struct{}, 1),
		closedCh:  make(chan struct{}),
		drainedCh: make(chan struct{}),
	}
}

func (q *Queue[T]) Options() Options { return q.opts }

func (q *Queue[T]) Write(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !q.TryWrite(v) {
		return ErrClosed
	}
	return nil
}

func (q *Queue[T]) TryWrite(v T) bool {
	q.mu.Lock()
	if q.completed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.notify()
	return true
}

func (q *Queue[T]) Complete(err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed {
		return false
	}
	q.completed = true
	q.err = err
	close(q.closedCh)
	q.markDrainedLocked()
	return true
}

func (q *Queue[T]) Read(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryRead(); ok {
			return v, nil
		}
		ok, err := q.WaitToRead(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if !ok {
			var zero T
			return zero, ErrClosed
		}
	}
}

func (q *Queue[T]) TryRead() (T, bool) {
	var zero T
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	more := len(q.items) > 0
	if !more {
		q.items = nil
		q.markDrainedLocked()
	}
	q.mu.Unlock()
	if more {
		// 他の読み手が待っている可能性があるため再通知する
		q.notify()
	}
	return v, true
}

func (q *Queue[T]) WaitToRead(ctx context.Context) (bool, error) {
	for {
		q.mu.Lock()
		n, completed, err := len(q.items), q.completed, q.err
		q.mu.Unlock()
		if n > 0 {
			return true, nil
		}
		if completed {
			return false, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-q.ready:
		case <-q.closedCh:
		}
	}
}

func (q *Queue[T]) Done() <-chan struct{} { return q.drainedCh }

func (q *Queue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.completed {
		return nil
	}
	return q.err
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Completed はComplete済みかどうかを返します。要素が残っていてもtrueになります。
func (q *Queue[T]) Completed() bool {
	select {
	case <-q.closedCh:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) markDrainedLocked() {
	if q.completed && len(q.items) == 0 && !q.drained {
		q.drained = true
		close(q.drainedCh)
	}
}
