package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/local/margincheck/internal/analysis"
)

var (
    pagesAnalyzed = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "margincheck",
            Name:      "pages_analyzed_total",
            Help:      "Total pages measured by successful runs",
        },
    )

    runsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "margincheck",
            Name:      "runs_total",
            Help:      "Analysis runs by result (success, invalid_input, render_failure, misconfiguration, error)",
        },
        []string{"result"},
    )

    runDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "margincheck",
            Name:      "run_duration_seconds",
            Help:      "Duration of complete analysis runs",
            Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
        },
    )

    uniformity = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "margincheck",
            Name:      "documents_uniform_total",
            Help:      "Analyzed documents by overall uniformity verdict",
        },
        []string{"uniform"},
    )

    exportsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "margincheck",
            Name:      "exports_total",
            Help:      "Exports delivered by format, sink and result",
        },
        []string{"format", "sink", "result"},
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "margincheck",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream and dlq",
        },
        []string{"type"},
    )

    once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    once.Do(func() {
        prometheus.MustRegister(pagesAnalyzed, runsTotal, runDuration, uniformity, exportsTotal, queueDepth)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRun records a finished analysis run.
func ObserveRun(pages int, dur time.Duration, err error) {
    runDuration.Observe(dur.Seconds())
    if err != nil {
        runsTotal.WithLabelValues(resultLabel(err)).Inc()
        return
    }
    runsTotal.WithLabelValues("success").Inc()
    pagesAnalyzed.Add(float64(pages))
}

func ObserveUniformity(uniform bool) { uniformity.WithLabelValues(boolToStr(uniform)).Inc() }

func IncExport(format, sink string, err error) {
    result := "ok"
    if err != nil { result = "error" }
    exportsTotal.WithLabelValues(format, sink, result).Inc()
}

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }

// RunObserver adapts ObserveRun to inspector.Observer.
type RunObserver struct{}

func (RunObserver) RunFinished(pages int, took time.Duration, err error) { ObserveRun(pages, took, err) }

func resultLabel(err error) string {
    if k := analysis.KindOf(err); k != "" { return string(k) }
    return "error"
}

func boolToStr(b bool) string { if b { return "true" }; return "false" }
