package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexstore",
		Subsystem: "maintenance",
		Name:      "job_runs_total",
		Help:      "Number of maintenance job runs, by job.",
	}, []string{"job"})

	jobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexstore",
		Subsystem: "maintenance",
		Name:      "job_failures_total",
		Help:      "Number of maintenance job runs that rolled back, by job.",
	}, []string{"job"})

	jobCleanedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexstore",
		Subsystem: "maintenance",
		Name:      "job_cleaned_total",
		Help:      "Number of candidates cleaned across runs, by job.",
	}, []string{"job"})
)
