// Package metrics exposes Prometheus counters for the answer pipeline.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"clarity-agent/internal/domain"
)

const namespace = "clarity"

type Recorder struct {
	answers     *prometheus.CounterVec
	degraded    prometheus.Counter
	storeErrors prometheus.Counter
	logErrors   prometheus.Counter
}

// New registers the pipeline counters on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer must not be nil")
	}
	r := &Recorder{
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers served, by source kind.",
		}, []string{"kind"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Generative answers replaced by the fallback because the model output was unusable.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Ingredient lookups that failed and were treated as no match.",
		}),
		logErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interaction_log_errors_total",
			Help:      "Interaction log writes that failed.",
		}),
	}
	for _, c := range []prometheus.Collector{r.answers, r.degraded, r.storeErrors, r.logErrors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) ObserveAnswer(kind domain.Kind) {
	r.answers.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) Degraded() { r.degraded.Inc() }

func (r *Recorder) StoreError() { r.storeErrors.Inc() }

func (r *Recorder) InteractionLogError() { r.logErrors.Inc() }
