// Package memory はプロセス内で完結する domain.Transport の実装を提供します。
package memory

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/queue"
)

// ErrCloseSent はクローズフレーム送信後に送信しようとした場合のエラーです。
var ErrCloseSent = errors.New("memory: close frame already sent")

type frame struct {
	kind    domain.FrameKind
	payload []byte
	final   bool
	code    domain.StatusCode
	reason  string
}

// Conn はPipeの片側です。
type Conn struct {
	in   *queue.Queue[frame]
	peer *Conn

	mu        sync.Mutex
	state     domain.TransportState
	sentClose bool
	recvClose bool
	code      domain.StatusCode
	hasCode   bool
	reason    string

	// 読みかけのフレーム。Receiveからのみ触る
	cur    frame
	curOff int
	hasCur bool

	closeOnce sync.Once
}

var _ domain.Transport = (*Conn)(nil)

// Pipe は互いに接続された2つのConnを返します。
// 一方が送ったフレームはもう一方のReceiveで同じ順序で読み取れます。
func Pipe() (*Conn, *Conn) {
	a := &Conn{in: queue.New[frame](queue.Options{SingleWriter: true, SingleReader: true})}
	b := &Conn{in: queue.New[frame](queue.Options{SingleWriter: true, SingleReader: true})}
	a.peer, b.peer = b, a
	return a, b
}

func (c *Conn) State() domain.TransportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Send(ctx context.Context, payload []byte, kind domain.MessageKind, final bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var fk domain.FrameKind
	switch kind {
	case domain.MessageText:
		fk = domain.FrameText
	case domain.MessageBinary:
		fk = domain.FrameBinary
	default:
		return errors.New("memory: unknown message kind")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == domain.TransportFaulted:
		return net.ErrClosed
	case c.sentClose:
		return ErrCloseSent
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	if !c.peer.in.TryWrite(frame{kind: fk, payload: p, final: final}) {
		return net.ErrClosed
	}
	return nil
}

// Receive は次のフレームをbufへ読み取ります。フレームがbufより大きい場合は分割して返します。
// クローズフレームを受信したとき、まだ送っていなければ同じステータスで応答します。
func (c *Conn) Receive(ctx context.Context, buf []byte) (domain.ReceiveResult, error) {
	if !c.hasCur {
		f, err := c.in.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ReceiveResult{}, ctx.Err()
			}
			c.fault()
			if errors.Is(err, queue.ErrClosed) {
				return domain.ReceiveResult{}, io.ErrUnexpectedEOF
			}
			return domain.ReceiveResult{}, err
		}
		if f.kind == domain.FrameClose {
			c.receivedClose(f)
			return domain.ReceiveResult{Kind: domain.FrameClose, Final: true}, nil
		}
		c.cur, c.curOff, c.hasCur = f, 0, true
	}

	n := copy(buf, c.cur.payload[c.curOff:])
	c.curOff += n
	res := domain.ReceiveResult{N: n, Kind: c.cur.kind}
	if c.curOff == len(c.cur.payload) {
		res.Final = c.cur.final
		c.cur, c.hasCur = frame{}, false
	}
	return res, nil
}

func (c *Conn) receivedClose(f frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvClose = true
	c.code, c.hasCode, c.reason = f.code, f.code != 0, f.reason
	if !c.sentClose {
		c.sentClose = true
		c.peer.in.TryWrite(frame{kind: domain.FrameClose, code: f.code, reason: f.reason})
	}
	c.state = domain.TransportClosed
}

func (c *Conn) CloseOutput(ctx context.Context, code domain.StatusCode, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == domain.TransportFaulted:
		return net.ErrClosed
	case c.sentClose:
		return ErrCloseSent
	}
	if !c.peer.in.TryWrite(frame{kind: domain.FrameClose, code: code, reason: reason}) {
		return net.ErrClosed
	}
	c.sentClose = true
	if c.recvClose {
		c.state = domain.TransportClosed
	} else {
		c.state = domain.TransportClosedLocally
	}
	return nil
}

func (c *Conn) CloseStatus() (domain.StatusCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.hasCode
}

func (c *Conn) CloseStatusDescription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Close は両方向を切断します。ハンドシェイクを経ずに呼ばれた場合、相手のReceiveは
// 残りのフレームを読み切った後に io.ErrUnexpectedEOF を返します。
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state != domain.TransportClosed {
			c.state = domain.TransportFaulted
		}
		c.mu.Unlock()
		c.in.Complete(net.ErrClosed)
		c.peer.in.Complete(nil)
	})
	return nil
}

func (c *Conn) fault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.TransportClosed {
		c.state = domain.TransportFaulted
	}
}
