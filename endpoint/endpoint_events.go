package endpoint

import (
	"context"
	"fmt"
)

type endpointEventKind uint8

const (
	// unknown
	evUnknown endpointEventKind = iota

	// ctrl
	evDispose // Dispose が呼ばれた
	evClose   // Close が呼ばれた

	// I/O
	evPeerClosed   // 相手が正常にクローズした
	evReceiveError // 受信ループの失敗
	evSendError    // 送信ループの失敗
)

func (k endpointEventKind) String() string {
	switch k {
	case evDispose:
		return "RequestDispose"
	case evClose:
		return "RequestClose"
	case evPeerClosed:
		return "PeerClosedNormally"
	case evReceiveError:
		return "ReceiveFaulted"
	case evSendError:
		return "SendFaulted"
	default:
		return fmt.Sprintf("endpointEventKind(%d)", uint8(k))
	}
}

type endpointEvent struct {
	kind endpointEventKind
	ctx  context.Context // evClose のみ
	err  error           // evReceiveError, evSendError のみ
}
