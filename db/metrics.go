package db

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsNamespace is the fixed top level of every operation timer key.
const metricsNamespace = "database"

// Metrics is the collaborator that receives operation duration samples.
// Timer resolves the hierarchical key (namespace, category, entity) to an
// observer; implementations must be safe for concurrent use.
type Metrics interface {
	Timer(namespace, category, entity string) Observer
}

// Observer records one duration sample.
type Observer interface {
	Observe(d time.Duration)
}

// TimerScope measures one operation. Stop records exactly one sample no
// matter how many times it is called, so it is safe under defer on both
// success and error paths.
type TimerScope struct {
	obs   Observer
	start time.Time
	once  sync.Once
}

func newTimerScope(obs Observer) *TimerScope {
	return &TimerScope{obs: obs, start: time.Now()}
}

// Stop records the elapsed duration since the scope started.
func (t *TimerScope) Stop() {
	t.once.Do(func() {
		t.obs.Observe(time.Since(t.start))
	})
}

// promMetrics is the default Metrics collaborator, backed by a Prometheus
// histogram per namespace with (category, entity) labels.
type promMetrics struct {
	reg prometheus.Registerer

	mu    sync.Mutex
	hists map[string]*prometheus.HistogramVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	return &promMetrics{
		reg:   reg,
		hists: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *promMetrics) Timer(namespace, category, entity string) Observer {
	m.mu.Lock()
	hist, ok := m.hists[namespace]
	if !ok {
		hist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of database operations by category and entity.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category", "entity"})
		m.reg.MustRegister(hist)
		m.hists[namespace] = hist
	}
	m.mu.Unlock()

	return promObserver{obs: hist.WithLabelValues(category, entity)}
}

type promObserver struct {
	obs prometheus.Observer
}

func (o promObserver) Observe(d time.Duration) {
	o.obs.Observe(d.Seconds())
}
