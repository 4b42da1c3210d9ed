package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCronAuth(t *testing.T) {
	before := testutil.ToFloat64(CronAuthDecisionsTotal.WithLabelValues("rejected", "replay_rejected"))
	ObserveCronAuth(false, "replay_rejected")
	after := testutil.ToFloat64(CronAuthDecisionsTotal.WithLabelValues("rejected", "replay_rejected"))
	assert.Equal(t, before+1, after)
}

func TestObserveJob(t *testing.T) {
	runs := testutil.ToFloat64(JobRunsTotal.WithLabelValues("test-job"))
	errs := testutil.ToFloat64(JobErrorsTotal.WithLabelValues("test-job"))

	ObserveJob("test-job", time.Now(), nil)
	ObserveJob("test-job", time.Now(), errors.New("boom"))

	assert.Equal(t, runs+2, testutil.ToFloat64(JobRunsTotal.WithLabelValues("test-job")))
	assert.Equal(t, errs+1, testutil.ToFloat64(JobErrorsTotal.WithLabelValues("test-job")))
}

func TestHandler_ExposesCounters(t *testing.T) {
	ObserveEmail("rfp_invite", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `emails_total{result="sent",template="rfp_invite"}`))
}
