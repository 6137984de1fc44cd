// metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so services can run without instrumentation in tests.
type Metrics struct {
	QuotaRejections *prometheus.CounterVec
	Contributions   *prometheus.CounterVec
	MissionDamage   prometheus.Counter
	MissionsClosed  *prometheus.CounterVec
	LevelUps        prometheus.Counter
	BossesDefeated  prometheus.Counter
	TasksCompleted  prometheus.Counter
	DamageConflicts prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QuotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "quota_rejections_total",
			Help:      "Task submissions refused by a quota rule.",
		}, []string{"rule"}),
		Contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "mission_contributions_total",
			Help:      "Mission contribution events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		MissionDamage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "mission_damage_total",
			Help:      "HP removed from mission bosses.",
		}),
		MissionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "missions_closed_total",
			Help:      "Missions that reached a terminal status.",
		}, []string{"status"}),
		LevelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "level_ups_total",
			Help:      "Level-up events.",
		}),
		BossesDefeated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "solo_bosses_defeated_total",
			Help:      "Solo bosses defeated.",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "tasks_completed_total",
			Help:      "Successful task completions.",
		}),
		DamageConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quest",
			Name:      "damage_write_conflicts_total",
			Help:      "Optimistic HP writes that lost a race and were retried.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.QuotaRejections, m.Contributions, m.MissionDamage, m.MissionsClosed,
			m.LevelUps, m.BossesDefeated, m.TasksCompleted, m.DamageConflicts)
	}
	return m
}

func (m *Metrics) QuotaRejected(rule string) {
	if m != nil {
		m.QuotaRejections.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) Contribution(kind, outcome string) {
	if m != nil {
		m.Contributions.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) Damage(hp int64) {
	if m != nil && hp > 0 {
		m.MissionDamage.Add(float64(hp))
	}
}

func (m *Metrics) MissionClosed(status string) {
	if m != nil {
		m.MissionsClosed.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) LevelUp() {
	if m != nil {
		m.LevelUps.Inc()
	}
}

func (m *Metrics) BossDefeated() {
	if m != nil {
		m.BossesDefeated.Inc()
	}
}

func (m *Metrics) TaskCompleted() {
	if m != nil {
		m.TasksCompleted.Inc()
	}
}

func (m *Metrics) DamageConflict() {
	if m != nil {
		m.DamageConflicts.Inc()
	}
}
