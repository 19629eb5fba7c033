package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/shopspring/decimal"
)

const decimals = 18

type PrometheusRecorder struct {
	registry  *prometheus.Registry
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	amounts   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the disbursement collectors on a private
// registry, labelled with the target network.
func NewPrometheusRecorder(network string) *PrometheusRecorder {
	constLabels := prometheus.Labels{"network": network}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "disburse",
			Name:        "events_total",
			Help:        "Disbursement event counters",
			ConstLabels: constLabels,
		},
		[]string{"type", "status"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "disburse",
			Name:        "rpc_latency_seconds",
			Help:        "Chain RPC call latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"operation", "status"},
	)

	amounts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "disburse",
			Name:        "tokens_total",
			Help:        "Token amounts moved, in display units",
			ConstLabels: constLabels,
		},
		[]string{"type"},
	)

	r := prometheus.NewRegistry()
	r.MustRegister(counters, histogram, amounts)

	return &PrometheusRecorder{
		registry:  r,
		counters:  counters,
		histogram: histogram,
		amounts:   amounts,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":   name,
		"status": labels["status"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"status":    labels["status"],
	}).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddAmount(name string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := decimal.NewFromBigInt(amount, -decimals).Float64()
	p.amounts.WithLabelValues(name).Add(f)
}

// Registry exposes the private registry, mainly for tests and exporters.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Push sends the collected metrics to a Pushgateway under job.
func (p *PrometheusRecorder) Push(url, job string) error {
	return push.New(url, job).Gatherer(p.registry).Push()
}
