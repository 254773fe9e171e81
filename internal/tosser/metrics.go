package tosser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the toss summary and pack results as Prometheus counters.
// A nil *Metrics records nothing.
type Metrics struct {
	PacketsTotal    *prometheus.CounterVec // result: accepted, password, malformed
	TossedTotal     *prometheus.CounterVec // area
	RejectedTotal   *prometheus.CounterVec // area
	RobotCallsTotal *prometheus.CounterVec // robot, result
	PackedTotal     *prometheus.CounterVec // link, kind
	PollsTotal      prometheus.Counter
}

// NewMetrics registers the tosser counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v3toss_packets_total",
				Help: "Inbound packets by outcome",
			},
			[]string{"result"},
		),
		TossedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v3toss_messages_tossed_total",
				Help: "Messages accepted, by area (netmail counted as \"netmail\")",
			},
			[]string{"area"},
		),
		RejectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v3toss_messages_rejected_total",
				Help: "Messages rejected, by area (netmail counted as \"netmail\")",
			},
			[]string{"area"},
		),
		RobotCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v3toss_robot_calls_total",
				Help: "Robot invocations by robot and outcome",
			},
			[]string{"robot", "result"},
		),
		PackedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v3toss_messages_packed_total",
				Help: "Messages packed for links, by link and kind",
			},
			[]string{"link", "kind"},
		),
		PollsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "v3toss_polls_triggered_total",
				Help: "Link polls triggered after tossing",
			},
		),
	}
}

func (m *Metrics) packet(result string) {
	if m != nil {
		m.PacketsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) summary(res *Result) {
	if m == nil {
		return
	}
	for area, n := range res.Tossed {
		m.TossedTotal.WithLabelValues(area).Add(float64(n))
	}
	for area, n := range res.Rejected {
		m.RejectedTotal.WithLabelValues(area).Add(float64(n))
	}
}

func (m *Metrics) robot(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RobotCallsTotal.WithLabelValues(name, result).Inc()
}

func (m *Metrics) packed(link, kind string, n int) {
	if m != nil && n > 0 {
		m.PackedTotal.WithLabelValues(link, kind).Add(float64(n))
	}
}

func (m *Metrics) poll() {
	if m != nil {
		m.PollsTotal.Inc()
	}
}
