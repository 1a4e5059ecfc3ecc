package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "duplex"

// Prometheus はprometheusのコレクタに記録するRecorderです。
type Prometheus struct {
	latency     *prometheus.HistogramVec
	contention  *prometheus.HistogramVec
	counters    *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewPrometheus はコレクタを作成してregに登録します。regがnilの場合は登録しません。
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of transport operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		contention: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for the send permit.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Messages and bytes moved by endpoints.",
		}, []string{"name"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Endpoint lifecycle transitions.",
		}, []string{"from", "to"}),
	}
	if reg == nil {
		return p, nil
	}
	for _, c := range []prometheus.Collector{p.latency, p.contention, p.counters, p.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RecordLatency(_ context.Context, op string, duration time.Duration) {
	p.latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (p *Prometheus) RecordContention(_ context.Context, op string, wait time.Duration) {
	p.contention.WithLabelValues(op).Observe(wait.Seconds())
}

func (p *Prometheus) IncrementCounter(_ context.Context, name string, delta int) {
	if delta < 0 {
		return
	}
	p.counters.WithLabelValues(name).Add(float64(delta))
}

func (p *Prometheus) RecordTransition(_ context.Context, from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

var _ Recorder = (*Prometheus)(nil)
