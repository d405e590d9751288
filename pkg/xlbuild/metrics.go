package xlbuild

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xlbuild",
		Name:      "documents_total",
		Help:      "The total number of documents built, by construction strategy.",
	}, []string{"strategy"})

	rowBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xlbuild",
		Name:      "row_batches_total",
		Help:      "The total number of row batches sent to workers.",
	})

	workerFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xlbuild",
		Name:      "worker_failures_total",
		Help:      "The total number of worker errors and crashes.",
	})

	finalizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xlbuild",
		Name:      "finalize_duration_seconds",
		Help:      "Time from the first output request until the document was available.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"strategy"})
)
