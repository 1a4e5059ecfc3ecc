package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int](Options{SingleWriter: true, SingleReader: true})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Write(ctx, i))
	}
	require.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, err := q.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryRead()
	assert.False(t, ok)
}

func TestQueue_CompleteRejectsWrites(t *testing.T) {
	q := New[string](Options{})

	require.True(t, q.TryWrite("a"))
	require.True(t, q.Complete(nil))
	assert.False(t, q.Complete(errors.New("late")), "second Complete must be ignored")

	assert.False(t, q.TryWrite("b"))
	assert.ErrorIs(t, q.Write(context.Background(), "b"), ErrClosed)
	assert.True(t, q.Completed())
}

func TestQueue_DrainsBeforeCompletion(t *testing.T) {
	q := New[int](Options{})
	ctx := context.Background()

	q.TryWrite(1)
	q.TryWrite(2)
	q.Complete(nil)

	select {
	case <-q.Done():
		t.Fatal("Done closed before the queue was drained")
	default:
	}

	v, err := q.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = q.Read(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	<-q.Done()
	assert.NoError(t, q.Err())
}

func TestQueue_CompleteWithError(t *testing.T) {
	q := New[int](Options{})
	boom := errors.New("boom")

	q.TryWrite(7)
	q.Complete(boom)

	v, err := q.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Read(context.Background())
	assert.ErrorIs(t, err, boom)

	ok, err := q.WaitToRead(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, q.Err(), boom)
}

func TestQueue_ReadBlocksUntilWrite(t *testing.T) {
	q := New[int](Options{})
	got := make(chan int, 1)

	go func() {
		v, err := q.Read(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.TryWrite(42)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("reader was not woken up")
	}
}

func TestQueue_ReadCancelled(t *testing.T) {
	q := New[int](Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, q.Completed())
}

func TestQueue_ConcurrentWriters(t *testing.T) {
	const writers, perWriter = 10, 100
	q := New[int](Options{SingleReader: true})

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q.TryWrite(base*perWriter + i)
			}
		}(w)
	}
	wg.Wait()
	q.Complete(nil)

	seen := make(map[int]bool)
	lastPerWriter := make(map[int]int)
	for {
		v, err := q.Read(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		seen[v] = true

		// 同一の書き手の中では順序が保たれる
		w := v / perWriter
		if last, ok := lastPerWriter[w]; ok {
			assert.Greater(t, v, last)
		}
		lastPerWriter[w] = v
	}
	assert.Len(t, seen, writers*perWriter)
}

func TestQueue_MultipleReaders(t *testing.T) {
	const n = 200
	q := New[int](Options{})

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := q.Read(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < n; i++ {
		q.TryWrite(i)
	}
	q.Complete(nil)
	wg.Wait()

	assert.Equal(t, n, total)
}
