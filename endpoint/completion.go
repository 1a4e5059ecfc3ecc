package endpoint

import (
	"context"
	"errors"
	"sync"
)

// Outcome はCompletionの結果の種別です。
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeCancelled
	OutcomeFaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "Succeeded"
	case OutcomeCancelled:
		return "Cancelled"
	case OutcomeFaulted:
		return "Faulted"
	default:
		return "Pending"
	}
}

// Completion は一度だけ確定する結果です。成功・キャンセル・失敗のいずれかになります。
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// resolve は結果を確定します。最初の呼び出しのみがtrueを返します。
func (c *Completion) resolve(err error) bool {
	resolved := false
	c.once.Do(func() {
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done は結果の確定時にクローズされます。
func (c *Completion) Done() <-chan struct{} { return c.done }

func (c *Completion) IsDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err は確定した結果を返します。未確定、または成功ならnilです。
// キャンセルはcontext.Canceledのまま返されます。
func (c *Completion) Err() error {
	if !c.IsDone() {
		return nil
	}
	return c.err
}

// Wait は結果の確定を待ちます。先にctxが終了した場合はctx.Err()を返します。
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Completion) Outcome() Outcome {
	if !c.IsDone() {
		return OutcomePending
	}
	switch {
	case c.err == nil:
		return OutcomeSucceeded
	case errors.Is(c.err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFaulted
	}
}
