package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/moodroom/internal/app"
	"github.com/pscheid92/moodroom/internal/domain"
)

// RoomMetrics records room events. It implements app.Observer.
type RoomMetrics struct {
	VotesSubmitted *prometheus.CounterVec
	VotesRejected  *prometheus.CounterVec
	Selections     *prometheus.CounterVec
	Divergence     prometheus.Counter
	Satisfaction   *prometheus.GaugeVec
}

var _ app.Observer = (*RoomMetrics)(nil)

// NewRoomMetrics creates and registers room metrics on the given registry.
func NewRoomMetrics(reg prometheus.Registerer) *RoomMetrics {
	m := &RoomMetrics{
		VotesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_submitted_total",
			Help:      "Total number of accepted votes, by emotion.",
		}, []string{"emotion"}),
		VotesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_rejected_total",
			Help:      "Total number of rejected votes, by reason.",
		}, []string{"reason"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Total number of logged selections, by strategy and emotion.",
		}, []string{"strategy", "emotion"}),
		Divergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_divergence_total",
			Help:      "Number of selection rounds where the strategies picked different emotions.",
		}),
		Satisfaction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "satisfaction_percent",
			Help:      "Coverage of the current distribution at the last evaluation, by strategy.",
		}, []string{"strategy"}),
	}

	reg.MustRegister(m.VotesSubmitted, m.VotesRejected, m.Selections, m.Divergence, m.Satisfaction)
	return m
}

func (m *RoomMetrics) VoteSubmitted(emotion domain.Emotion) {
	m.VotesSubmitted.WithLabelValues(emotion.String()).Inc()
}

func (m *RoomMetrics) VoteRejected(reason string) {
	m.VotesRejected.WithLabelValues(reason).Inc()
}

func (m *RoomMetrics) Selected(pick domain.Pick) {
	if pick.Baseline != nil {
		m.Selections.WithLabelValues(string(domain.StrategyBaseline), pick.Baseline.String()).Inc()
	}
	if pick.Fairness != nil {
		m.Selections.WithLabelValues(string(domain.StrategyFairness), pick.Fairness.String()).Inc()
	}
	if pick.Baseline != nil && pick.Fairness != nil && *pick.Baseline != *pick.Fairness {
		m.Divergence.Inc()
	}
}

func (m *RoomMetrics) Evaluated(s domain.Satisfaction) {
	m.Satisfaction.WithLabelValues(string(domain.StrategyBaseline)).Set(s.Baseline)
	m.Satisfaction.WithLabelValues(string(domain.StrategyFairness)).Set(s.Fairness)
}
