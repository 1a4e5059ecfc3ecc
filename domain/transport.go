package domain

import (
	"context"
	"fmt"
)

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport

// FrameKind は受信したフレームの種別です。
type FrameKind uint8

const (
	FrameText FrameKind = iota + 1
	FrameBinary
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// MessageKind はデータフレームに対応するメッセージ種別を返します。
func (k FrameKind) MessageKind() (MessageKind, bool) {
	switch k {
	case FrameText:
		return MessageText, true
	case FrameBinary:
		return MessageBinary, true
	default:
		return 0, false
	}
}

// ReceiveResult は1回のReceiveで得られたフレームの情報です。
type ReceiveResult struct {
	// N はバッファに書き込まれたバイト数です。
	N int
	// Final はこのフレームが論理メッセージの最後であることを示します。
	Final bool
	Kind  FrameKind
}

// Transport はエンドポイントが依存する全二重のI/O境界です。
// SendとCloseOutputは同時に1つしか呼ばれません。Receiveも同様です。
// キャンセル時はctx.Err()を返すことが期待されます。
type Transport interface {
	State() TransportState
	Send(ctx context.Context, payload []byte, kind MessageKind, final bool) error
	Receive(ctx context.Context, buf []byte) (ReceiveResult, error)
	CloseOutput(ctx context.Context, code StatusCode, reason string) error
	// CloseStatus は相手から受信したクローズステータスを返します。
	// State()がクローズ系の状態になるまでは利用できません。
	CloseStatus() (StatusCode, bool)
	CloseStatusDescription() string
	// Close はトランスポートの資源を解放します。
	Close() error
}
