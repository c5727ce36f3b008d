package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordRun("succeeded")
	RecordStage("build", "succeeded", 1500*time.Millisecond)
	RecordUploaded(2)
	RecordHTTPRequest("POST", "/dispatch", "202")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`pyship_runs_total{status="succeeded"}`,
		`pyship_stage_duration_seconds_count{stage="build",status="succeeded"}`,
		"pyship_artifacts_uploaded_total",
		`pyship_http_requests_total{method="POST",path="/dispatch",status="202"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}
