package metrics

import (
	"context"
	"time"
)

// カウンタ名
const (
	MessagesSent     = "messages.sent"
	MessagesReceived = "messages.received"
	BytesSent        = "bytes.sent"
	BytesReceived    = "bytes.received"
)

// Recorder はエンドポイントの統計収集を抽象化します。
type Recorder interface {
	RecordLatency(ctx context.Context, op string, duration time.Duration)
	// RecordContention は送信許可の取得待ち時間を記録します。
	RecordContention(ctx context.Context, op string, wait time.Duration)
	IncrementCounter(ctx context.Context, name string, delta int)
	RecordTransition(ctx context.Context, from, to string)
}

// Nop は何も記録しないRecorderです。
type Nop struct{}

func (Nop) RecordLatency(context.Context, string, time.Duration)    {}
func (Nop) RecordContention(context.Context, string, time.Duration) {}
func (Nop) IncrementCounter(context.Context, string, int)           {}
func (Nop) RecordTransition(context.Context, string, string)        {}

var _ Recorder = Nop{}
