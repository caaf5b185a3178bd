package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/local/margincheck/internal/analysis"
)

func TestObserveRun(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(pagesAnalyzed)
	ObserveRun(4, time.Second, nil)
	assert.Equal(t, before+4, testutil.ToFloat64(pagesAnalyzed))

	failBefore := testutil.ToFloat64(runsTotal.WithLabelValues("render_failure"))
	RunObserver{}.RunFinished(4, time.Second, analysis.Errorf(analysis.RenderFailure, nil, "page 2"))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(runsTotal.WithLabelValues("render_failure")))
	assert.Equal(t, before+4, testutil.ToFloat64(pagesAnalyzed))

	assert.Equal(t, "error", resultLabel(errors.New("x")))
}

func TestExportAndQueueMetrics(t *testing.T) {
	IncExport("csv", "local", nil)
	IncExport("csv", "local", errors.New("disk full"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(exportsTotal.WithLabelValues("csv", "local", "error")), 1.0)

	SetQueueDepth("stream", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(queueDepth.WithLabelValues("stream")))

	ObserveUniformity(true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(uniformity.WithLabelValues("true")), 1.0)
}

func TestHandler(t *testing.T) {
	Init()
	ObserveRun(1, time.Millisecond, nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "margincheck_runs_total")
}
