package endpoint

import (
	"log/slog"
	"time"

	"github.com/touka-aoi/duplex/metrics"
)

const (
	DefaultReceiveBufferSize = 4096
	DefaultDrainTimeout      = 5 * time.Second
)

// Config はエンドポイントの設定です。
type Config struct {
	// MultiSender はSender()へ複数のgoroutineが同時に書き込むことを宣言します。
	MultiSender bool
	// MultiReceiver はReceiver()から複数のgoroutineが同時に読み取ることを宣言します。
	MultiReceiver bool

	// ReceiveBufferSize は1回のReceiveに渡すバッファの最小空き容量です。(default: 4KB)
	ReceiveBufferSize int

	// DrainTimeout は解放時に送信中のフレームの完了を待つ上限です。(default: 5s)
	// 超過した場合は送信を待たずにキャンセルします。
	DrainTimeout time.Duration

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// DefaultConfig はデフォルトの設定を返します。
func DefaultConfig() Config {
	return Config{
		ReceiveBufferSize: DefaultReceiveBufferSize,
		DrainTimeout:      DefaultDrainTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Nop{}
	}
	return c
}
