package endpoint

import (
	"errors"
	"fmt"

	"github.com/touka-aoi/duplex/domain"
)

var (
	// ErrTransportNotReady はReady状態でないトランスポートを渡した場合に返されるエラーです。
	ErrTransportNotReady = errors.New("endpoint: transport must be connected and ready")
	// ErrInvalidOperation は呼び出し側が前提条件を満たしていない場合のエラーです。
	ErrInvalidOperation = errors.New("endpoint: invalid operation")
	// ErrSendNotCompleted は送信側の完了前にCloseを呼んだ場合に返されるエラーです。
	ErrSendNotCompleted = fmt.Errorf("%w: complete Sender and await SendCompletion before calling Close", ErrInvalidOperation)
)

// Op はトランスポート操作の種別です。
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpClose Op = "close"
)

// TransportError はトランスポートのI/O失敗を表します。
type TransportError struct {
	Op  Op
	Err error
}

func (e *TransportError) Error() string {
	var verb string
	switch e.Op {
	case OpRead:
		verb = "reading from"
	case OpWrite:
		verb = "writing to"
	default:
		verb = "closing"
	}
	return fmt.Sprintf("an error occurred when %s transport: %v", verb, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BadClosureError は相手が正常終了以外のステータスでクローズしたことを表します。
type BadClosureError struct {
	Code        domain.StatusCode
	Description string
}

func (e *BadClosureError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("transport closed with status %d (%s)", int(e.Code), e.Code)
	}
	return fmt.Sprintf("transport closed with status %d (%s): %s", int(e.Code), e.Code, e.Description)
}

// InvalidTransitionError は状態に対して定義されていないイベントが届いたことを表します。
// 通常の運用では発生しない、設計上の誤りを示すエラーです。
type InvalidTransitionError struct {
	State State
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("state %s has no transition for input %s", e.State, e.Event)
}
