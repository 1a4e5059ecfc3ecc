// Package coderws は github.com/coder/websocket の接続を domain.Transport として扱うアダプタです。
package coderws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/internal/logger"
)

// Transport はcoder/websocketの接続をラップします。
// 読み取り中のメッセージと書き込み中のメッセージはReceive/Sendの呼び出しをまたいで保持されます。
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// Receive 専用
	reader   io.Reader
	readKind domain.FrameKind

	// Send 専用
	writer io.WriteCloser

	mu        sync.Mutex
	state     domain.TransportState
	sentClose bool
	sentCode  domain.StatusCode
	closeDone chan struct{} // CloseOutput のハンドシェイク完了でクローズ
	closeErr  error
	code      domain.StatusCode
	hasCode   bool
	reason    string

	closeOnce sync.Once
}

var _ domain.Transport = (*Transport)(nil)

// New は確立済みの接続から Transport を作成します。
func New(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn, logger: logger.Logger("coderws")}
}

// Dial はurlへ接続します。
func Dial(ctx context.Context, url string, opts *websocket.DialOptions) (*Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("coderws: dial %s: %w", url, err)
	}
	return New(conn), nil
}

// Accept はHTTPリクエストをWebSocketへアップグレードします。
func Accept(w http.ResponseWriter, r *http.Request, opts *websocket.AcceptOptions) (*Transport, error) {
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("coderws: accept: %w", err)
	}
	return New(conn), nil
}

// Conn は内部の接続を返します。
func (t *Transport) Conn() *websocket.Conn { return t.conn }

func (t *Transport) State() domain.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Send(ctx context.Context, payload []byte, kind domain.MessageKind, final bool) error {
	typ, err := messageType(kind)
	if err != nil {
		return err
	}
	if t.writer == nil && final {
		return t.writeFailed(ctx, t.conn.Write(ctx, typ, payload))
	}
	if t.writer == nil {
		w, err := t.conn.Writer(ctx, typ)
		if err != nil {
			return t.writeFailed(ctx, err)
		}
		t.writer = w
	}
	_, err = t.writer.Write(payload)
	if final {
		err = errors.Join(err, t.writer.Close())
		t.writer = nil
	}
	return t.writeFailed(ctx, err)
}

// Receive はメッセージの一部をbufへ読み取ります。
// メッセージの読み取り中は、そのメッセージを開始したReceiveのctxが有効です。
func (t *Transport) Receive(ctx context.Context, buf []byte) (domain.ReceiveResult, error) {
	if t.reader == nil {
		typ, r, err := t.conn.Reader(ctx)
		if err != nil {
			return t.readFailed(ctx, err)
		}
		t.reader, t.readKind = r, frameKind(typ)
	}
	n, err := t.reader.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		t.reader = nil
		return domain.ReceiveResult{N: n, Final: true, Kind: t.readKind}, nil
	case err != nil:
		t.reader = nil
		return t.readFailed(ctx, err)
	}
	return domain.ReceiveResult{N: n, Kind: t.readKind}, nil
}

// CloseOutput はクローズフレームを送信し、相手の応答を待ちます。
// ハンドシェイクの失敗はReceive側でエラーとして観測されるため、ここではログに残すだけです。
func (t *Transport) CloseOutput(ctx context.Context, code domain.StatusCode, reason string) error {
	t.mu.Lock()
	if t.sentClose {
		t.mu.Unlock()
		return nil
	}
	t.sentClose = true
	t.sentCode = code
	t.closeDone = make(chan struct{})
	if t.state == domain.TransportReady {
		t.state = domain.TransportClosedLocally
	}
	done := t.closeDone
	t.mu.Unlock()

	go func() {
		err := t.conn.Close(websocket.StatusCode(code), reason)
		t.mu.Lock()
		t.closeErr = err
		t.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		t.mu.Lock()
		err := t.closeErr
		t.mu.Unlock()
		if err != nil {
			t.logger.Debug("coderws: close handshake", "error", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) CloseStatus() (domain.StatusCode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code, t.hasCode
}

func (t *Transport) CloseStatusDescription() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Close はハンドシェイクを待たずに接続を切断します。
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.state != domain.TransportClosed {
			t.state = domain.TransportFaulted
		}
		t.mu.Unlock()
		if cerr := t.conn.CloseNow(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

func (t *Transport) readFailed(ctx context.Context, err error) (domain.ReceiveResult, error) {
	var ce websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.StatusAbnormalClosure {
		t.closed(domain.StatusCode(ce.Code), ce.Code != websocket.StatusNoStatusRcvd, ce.Reason)
		return domain.ReceiveResult{Kind: domain.FrameClose, Final: true}, nil
	}

	// こちらから閉じた場合、相手の応答はConn.Closeが読み取る
	t.mu.Lock()
	done, code := t.closeDone, t.sentCode
	t.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return domain.ReceiveResult{}, ctx.Err()
		}
		t.mu.Lock()
		closeErr := t.closeErr
		t.mu.Unlock()
		if closeErr == nil {
			t.closed(code, true, "")
			return domain.ReceiveResult{Kind: domain.FrameClose, Final: true}, nil
		}
	}

	if ctx.Err() != nil {
		return domain.ReceiveResult{}, ctx.Err()
	}
	t.fault()
	return domain.ReceiveResult{}, err
}

func (t *Transport) closed(code domain.StatusCode, hasCode bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.code, t.hasCode, t.reason = code, hasCode, reason
	// 受信したクローズフレームにはライブラリが応答する
	t.sentClose = true
	t.state = domain.TransportClosed
}

func (t *Transport) writeFailed(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	t.fault()
	return err
}

func (t *Transport) fault() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != domain.TransportClosed {
		t.state = domain.TransportFaulted
	}
}

func messageType(kind domain.MessageKind) (websocket.MessageType, error) {
	switch kind {
	case domain.MessageText:
		return websocket.MessageText, nil
	case domain.MessageBinary:
		return websocket.MessageBinary, nil
	default:
		return 0, fmt.Errorf("coderws: unsupported message kind %s", kind)
	}
}

func frameKind(typ websocket.MessageType) domain.FrameKind {
	if typ == websocket.MessageText {
		return domain.FrameText
	}
	return domain.FrameBinary
}
