package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)
	ctx := context.Background()

	p.IncrementCounter(ctx, MessagesSent, 1)
	p.IncrementCounter(ctx, MessagesSent, 2)
	p.IncrementCounter(ctx, BytesSent, 10)
	p.IncrementCounter(ctx, BytesSent, -5)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.counters.WithLabelValues(MessagesSent)))
	assert.Equal(t, 10.0, testutil.ToFloat64(p.counters.WithLabelValues(BytesSent)))
}

func TestPrometheus_Transitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RecordTransition(context.Background(), "Open", "ClosedNormally")
	p.RecordTransition(context.Background(), "Open", "ClosedNormally")
	p.RecordTransition(context.Background(), "Open", "Faulted")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.transitions.WithLabelValues("Open", "ClosedNormally")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.transitions.WithLabelValues("Open", "Faulted")))
}

func TestPrometheus_Histograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RecordLatency(context.Background(), "send", 3*time.Millisecond)
	p.RecordContention(context.Background(), "send", time.Microsecond)

	n, err := testutil.GatherAndCount(reg, "duplex_operation_duration_seconds", "duplex_permit_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestPrometheus_NilRegisterer(t *testing.T) {
	p, err := NewPrometheus(nil)
	require.NoError(t, err)
	p.IncrementCounter(context.Background(), MessagesReceived, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters.WithLabelValues(MessagesReceived)))
}
