package endpoint

import "fmt"

// State はエンドポイントのライフサイクル状態です。
// StateOpen 以外は終端状態で、そこから遷移することはありません。
type State int32

const (
	StateOpen State = iota
	StateClosedNormally
	StateFaulted
	StateAborted
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosedNormally:
		return "ClosedNormally"
	case StateFaulted:
		return "Faulted"
	case StateAborted:
		return "Aborted"
	case StateDisposed:
		return "Disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal は終端状態かどうかを返します。
func (s State) Terminal() bool {
	switch s {
	case StateClosedNormally, StateFaulted, StateAborted, StateDisposed:
		return true
	default:
		return false
	}
}

type action uint8

const (
	// actRelease はOpen状態の資源を解放してnextへ遷移します。
	actRelease action = iota + 1
	// actCloseHandshake はクローズハンドシェイクを行い、結果に応じて遷移先を決めます。
	actCloseHandshake
)

type transitionResult struct {
	next State
	act  action
}

// transition は (状態, イベント) の組から遷移先と副作用を決める純粋関数です。
// 定義されていない組は InvalidTransitionError を返します。
func transition(from State, ev endpointEventKind, sendCompleted bool) (transitionResult, error) {
	if from != StateOpen {
		return transitionResult{}, &InvalidTransitionError{State: from, Event: ev.String()}
	}
	switch ev {
	case evDispose:
		return transitionResult{next: StateDisposed, act: actRelease}, nil
	case evPeerClosed:
		return transitionResult{next: StateClosedNormally, act: actRelease}, nil
	case evReceiveError, evSendError:
		return transitionResult{next: StateFaulted, act: actRelease}, nil
	case evClose:
		if !sendCompleted {
			return transitionResult{}, ErrSendNotCompleted
		}
		return transitionResult{act: actCloseHandshake}, nil
	default:
		return transitionResult{}, &InvalidTransitionError{State: from, Event: ev.String()}
	}
}
