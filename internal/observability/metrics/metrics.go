package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "teamsbot"

// IntakeMetrics exposes counters for the conversational intake agent.
type IntakeMetrics struct {
	eventsTotal       *prometheus.CounterVec
	sessionsCompleted prometheus.Counter
	notifyTotal       *prometheus.CounterVec
	appendTotal       *prometheus.CounterVec
	syncTotal         *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "events_total",
			Help:      "Chat events handled by the intake agent",
		}, []string{"kind"}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "sessions_completed_total",
			Help:      "Conversations that reached the terminal state",
		}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "notifications_total",
			Help:      "Welcome email attempts",
		}, []string{"status"}),
		appendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "appends_total",
			Help:      "Local queue file appends",
		}, []string{"status"}),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "remote_syncs_total",
			Help:      "Remote queue pushes",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.sessionsCompleted, m.notifyTotal, m.appendTotal, m.syncTotal)
	return m
}

func (m *IntakeMetrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *IntakeMetrics) ObserveSessionCompleted() {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
}

func (m *IntakeMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(status).Inc()
}

func (m *IntakeMetrics) ObserveQueueAppend(status string) {
	if m == nil {
		return
	}
	m.appendTotal.WithLabelValues(status).Inc()
}

func (m *IntakeMetrics) ObserveQueueSync(status string) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(status).Inc()
}

// InviteMetrics tracks one batch inviter run.
type InviteMetrics struct {
	selected    prometheus.Gauge
	skipped     prometheus.Counter
	invites     *prometheus.CounterVec
	runDuration prometheus.Histogram
}

func NewInviteMetrics(reg prometheus.Registerer) *InviteMetrics {
	m := &InviteMetrics{
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inviter",
			Name:      "selected_targets",
			Help:      "Unique addresses selected in the last run",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inviter",
			Name:      "skipped_rows_total",
			Help:      "Queue rows skipped as malformed",
		}),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inviter",
			Name:      "invites_total",
			Help:      "Membership additions by outcome",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inviter",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.selected, m.skipped, m.invites, m.runDuration)
	return m
}

func (m *InviteMetrics) ObserveSelected(n int) {
	if m == nil {
		return
	}
	m.selected.Set(float64(n))
}

func (m *InviteMetrics) ObserveSkipped(n int) {
	if m == nil {
		return
	}
	m.skipped.Add(float64(n))
}

func (m *InviteMetrics) ObserveInvite(status string) {
	if m == nil {
		return
	}
	m.invites.WithLabelValues(status).Inc()
}

func (m *InviteMetrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}

// CounterTotals flattens counter and gauge families whose name starts with
// prefix into "name{label=value,...}" keys. Short-lived jobs log these since
// nothing scrapes them.
func CounterTotals(g prometheus.Gatherer, prefix string) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, family := range families {
		name := family.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		for _, metric := range family.GetMetric() {
			key := seriesKey(name, metric.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = metric.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, lp := range labels {
		pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}
