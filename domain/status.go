package domain

import "fmt"

// StatusCode はクローズフレームで通知されるステータスコードです。
// 値はRFC 6455 7.4.1に従います。
type StatusCode int

const (
	StatusNormalClosure    StatusCode = 1000
	StatusGoingAway        StatusCode = 1001
	StatusProtocolError    StatusCode = 1002
	StatusUnsupportedData  StatusCode = 1003
	StatusNoStatusReceived StatusCode = 1005
	StatusAbnormalClosure  StatusCode = 1006
	StatusPolicyViolation  StatusCode = 1008
	StatusMessageTooBig    StatusCode = 1009
	StatusInternalError    StatusCode = 1011
)

func (c StatusCode) String() string {
	switch c {
	case StatusNormalClosure:
		return "NormalClosure"
	case StatusGoingAway:
		return "GoingAway"
	case StatusProtocolError:
		return "ProtocolError"
	case StatusUnsupportedData:
		return "UnsupportedData"
	case StatusNoStatusReceived:
		return "NoStatusReceived"
	case StatusAbnormalClosure:
		return "AbnormalClosure"
	case StatusPolicyViolation:
		return "PolicyViolation"
	case StatusMessageTooBig:
		return "MessageTooBig"
	case StatusInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("StatusCode(%d)", int(c))
	}
}

// TransportState はトランスポートのライフサイクル状態です。
type TransportState uint8

const (
	TransportReady TransportState = iota
	// TransportClosedLocally はこちらからクローズフレームを送信済みの状態です。
	TransportClosedLocally
	// TransportClosedRemotely は相手からクローズフレームを受信済みの状態です。
	TransportClosedRemotely
	// TransportClosed はクローズハンドシェイクが完了した状態です。
	TransportClosed
	TransportFaulted
)

func (s TransportState) String() string {
	switch s {
	case TransportReady:
		return "Ready"
	case TransportClosedLocally:
		return "ClosedLocally"
	case TransportClosedRemotely:
		return "ClosedRemotely"
	case TransportClosed:
		return "Closed"
	case TransportFaulted:
		return "Faulted"
	default:
		return fmt.Sprintf("TransportState(%d)", uint8(s))
	}
}
