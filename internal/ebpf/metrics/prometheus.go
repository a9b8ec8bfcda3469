// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "netcapture"

// Metrics holds all capture pipeline Prometheus metrics
type Metrics struct {
	// Ring buffer metrics
	RecordsReceived  prometheus.Counter
	RecordsMalformed prometheus.Counter
	ReadErrors       prometheus.Counter
	ChannelDepth     prometheus.Gauge

	// Translation metrics
	EventsTranslated    *prometheus.CounterVec
	TranslationFailures *prometheus.CounterVec
	SendFailures        prometheus.Counter

	// Hook metrics
	HookAttached *prometheus.GaugeVec
	AttachErrors *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Total number of records read from the output ring buffer",
		}),
		RecordsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_malformed_total",
			Help:      "Total number of records dropped because they failed to decode",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Total number of failed ring buffer reads",
		}),
		ChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_depth",
			Help:      "Number of decoded records waiting for translation",
		}),

		EventsTranslated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_translated_total",
			Help:      "Total number of events translated and handed to the sender",
		}, []string{"kind"}),
		TranslationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_failures_total",
			Help:      "Total number of events dropped because they could not be translated",
		}, []string{"kind"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of events the sender rejected",
		}),

		HookAttached: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hook_attached",
			Help:      "Whether the ingress hook is attached (1 for attached, 0 for detached)",
		}, []string{"interface"}),
		AttachErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attach_errors_total",
			Help:      "Total number of failed attach attempts by stage",
		}, []string{"stage"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsReceived,
		m.RecordsMalformed,
		m.ReadErrors,
		m.ChannelDepth,
		m.EventsTranslated,
		m.TranslationFailures,
		m.SendFailures,
		m.HookAttached,
		m.AttachErrors,
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// Register registers all metrics with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	return r.Register(m)
}

// Snapshot is a point-in-time copy of the pipeline counters.
type Snapshot struct {
	RecordsReceived     uint64            `json:"records_received"`
	RecordsMalformed    uint64            `json:"records_malformed"`
	ReadErrors          uint64            `json:"read_errors"`
	EventsTranslated    map[string]uint64 `json:"events_translated"`
	TranslationFailures map[string]uint64 `json:"translation_failures"`
	SendFailures        uint64            `json:"send_failures"`
	ChannelDepth        int               `json:"channel_depth"`
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RecordsReceived:     uint64(value(m.RecordsReceived)),
		RecordsMalformed:    uint64(value(m.RecordsMalformed)),
		ReadErrors:          uint64(value(m.ReadErrors)),
		EventsTranslated:    byLabel(m.EventsTranslated, "kind"),
		TranslationFailures: byLabel(m.TranslationFailures, "kind"),
		SendFailures:        uint64(value(m.SendFailures)),
		ChannelDepth:        int(value(m.ChannelDepth)),
	}
}

func value(m prometheus.Metric) float64 {
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		return 0
	}
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return pb.GetGauge().GetValue()
}

func byLabel(c prometheus.Collector, label string) map[string]uint64 {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	out := make(map[string]uint64)
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			continue
		}
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] = uint64(pb.GetCounter().GetValue())
			}
		}
	}
	return out
}
