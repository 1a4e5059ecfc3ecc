package queue

import (
	"context"
	"errors"
	"iter"
)

// Seq はキューをプッシュ型のシーケンスとして購読します。
// 要素は受信順にyieldされ、正常完了で終了します。完了エラーは
// (ゼロ値, err) として最後に1度だけ通知されます。ctxのキャンセルは購読解除として扱い、
// 何も通知せずに終了します。
func Seq[T any](ctx context.Context, r Reader[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := r.Read(ctx)
			switch {
			case err == nil:
				if !yield(v, nil) {
					return
				}
			case errors.Is(err, ErrClosed):
				return
			case ctx.Err() != nil:
				return
			default:
				var zero T
				yield(zero, err)
				return
			}
		}
	}
}
