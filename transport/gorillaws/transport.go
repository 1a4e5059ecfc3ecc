// Package gorillaws は github.com/gorilla/websocket の接続を domain.Transport として扱うアダプタです。
package gorillaws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/touka-aoi/duplex/domain"
)

// DefaultControlTimeout はctxに期限がない場合のクローズフレーム送信の期限です。
const DefaultControlTimeout = 5 * time.Second

// Transport はgorilla/websocketの接続をラップします。
// gorillaのAPIはctxを受け取らないため、ctxの終了はデッドラインで読み書きを中断します。
// 中断された接続は以降使えません。
type Transport struct {
	conn *websocket.Conn

	// Receive 専用
	reader   io.Reader
	readKind domain.FrameKind

	// Send 専用
	writer io.WriteCloser

	mu        sync.Mutex
	state     domain.TransportState
	sentClose bool
	code      domain.StatusCode
	hasCode   bool
	reason    string

	closeOnce sync.Once
}

var _ domain.Transport = (*Transport)(nil)

// New は確立済みの接続から Transport を作成します。
func New(conn *websocket.Conn) *Transport {
	t := &Transport{conn: conn}
	conn.SetCloseHandler(t.handleClose)
	return t
}

// Dial はdialerでurlへ接続します。dialerがnilならwebsocket.DefaultDialerを使います。
func Dial(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) (*Transport, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("gorillaws: dial %s: %w", url, err)
	}
	return New(conn), nil
}

// Upgrade はHTTPリクエストをWebSocketへアップグレードします。
func Upgrade(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("gorillaws: upgrade: %w", err)
	}
	return New(conn), nil
}

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
	stop := context.AfterFunc(ctx, func() { _ = t.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if t.writer == nil && final {
		return t.writeFailed(ctx, t.conn.WriteMessage(typ, payload))
	}
	if t.writer == nil {
		w, err := t.conn.NextWriter(typ)
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

func (t *Transport) Receive(ctx context.Context, buf []byte) (domain.ReceiveResult, error) {
	stop := context.AfterFunc(ctx, func() { _ = t.conn.SetReadDeadline(time.Now()) })
	defer stop()

	if t.reader == nil {
		typ, r, err := t.conn.NextReader()
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

func (t *Transport) CloseOutput(ctx context.Context, code domain.StatusCode, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultControlTimeout)
	}
	err := t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(int(code), reason), deadline)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return t.writeFailed(ctx, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentClose = true
	if t.state == domain.TransportReady {
		t.state = domain.TransportClosedLocally
	}
	return nil
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

// Close は下位のネットワーク接続を閉じます。クローズフレームは送信しません。
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.state != domain.TransportClosed {
			t.state = domain.TransportFaulted
		}
		t.mu.Unlock()
		err = t.conn.Close()
	})
	return err
}

// handleClose は相手のクローズフレームを記録し、まだ送っていなければ同じコードで応答します。
func (t *Transport) handleClose(code int, text string) error {
	t.mu.Lock()
	t.code = domain.StatusCode(code)
	t.hasCode = code != websocket.CloseNoStatusReceived
	t.reason = text
	reply := !t.sentClose
	t.sentClose = true
	t.state = domain.TransportClosed
	t.mu.Unlock()

	if reply {
		msg := websocket.FormatCloseMessage(code, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(DefaultControlTimeout))
	}
	return nil
}

func (t *Transport) readFailed(ctx context.Context, err error) (domain.ReceiveResult, error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		// 状態は handleClose で更新済み
		return domain.ReceiveResult{Kind: domain.FrameClose, Final: true}, nil
	}
	if ctx.Err() != nil {
		return domain.ReceiveResult{}, ctx.Err()
	}
	t.fault()
	return domain.ReceiveResult{}, err
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

func messageType(kind domain.MessageKind) (int, error) {
	switch kind {
	case domain.MessageText:
		return websocket.TextMessage, nil
	case domain.MessageBinary:
		return websocket.BinaryMessage, nil
	default:
		return 0, fmt.Errorf("gorillaws: unsupported message kind %s", kind)
	}
}

func frameKind(typ int) domain.FrameKind {
	if typ == websocket.TextMessage {
		return domain.FrameText
	}
	return domain.FrameBinary
}
