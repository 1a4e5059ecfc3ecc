package endpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name          string
		from          State
		ev            endpointEventKind
		sendCompleted bool
		want          transitionResult
		wantErr       error
	}{
		{name: "dispose", from: StateOpen, ev: evDispose, want: transitionResult{next: StateDisposed, act: actRelease}},
		{name: "peer closed", from: StateOpen, ev: evPeerClosed, want: transitionResult{next: StateClosedNormally, act: actRelease}},
		{name: "receive fault", from: StateOpen, ev: evReceiveError, want: transitionResult{next: StateFaulted, act: actRelease}},
		{name: "send fault", from: StateOpen, ev: evSendError, want: transitionResult{next: StateFaulted, act: actRelease}},
		{name: "close after send completed", from: StateOpen, ev: evClose, sendCompleted: true, want: transitionResult{act: actCloseHandshake}},
		{name: "close before send completed", from: StateOpen, ev: evClose, wantErr: ErrInvalidOperation},
		{name: "unknown event", from: StateOpen, ev: evUnknown, wantErr: &InvalidTransitionError{}},
		{name: "dispose when closed", from: StateClosedNormally, ev: evDispose, wantErr: &InvalidTransitionError{}},
		{name: "fault when disposed", from: StateDisposed, ev: evReceiveError, wantErr: &InvalidTransitionError{}},
		{name: "close when aborted", from: StateAborted, ev: evClose, sendCompleted: true, wantErr: &InvalidTransitionError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transition(tt.from, tt.ev, tt.sendCompleted)
			switch want := tt.wantErr.(type) {
			case nil:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			case *InvalidTransitionError:
				var ite *InvalidTransitionError
				require.True(t, errors.As(err, &ite), "got %v", err)
				assert.Equal(t, tt.from, ite.State)
				assert.Equal(t, tt.ev.String(), ite.Event)
			default:
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateOpen.Terminal())
	for _, s := range []State{StateClosedNormally, StateFaulted, StateAborted, StateDisposed} {
		assert.True(t, s.Terminal(), s.String())
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{State: StateFaulted, Event: evDispose.String()}
	assert.Equal(t, "state Faulted has no transition for input RequestDispose", err.Error())
}
