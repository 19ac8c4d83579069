package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	collector.InstrumentHandler(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `accio_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `accio_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestHTTPCollectorUsesRoutePattern(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/automation/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"a", "b"} {
		collector.InstrumentHandler(mux).ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/api/automation/runs/"+id, nil))
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `path="GET /api/automation/runs/{id}",status="200"} 2`) {
		t.Fatalf("expected pattern label, body=%q", body)
	}
}

func TestAutomationCollector(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}
	automation, err := NewAutomationCollector(collector.Registry())
	if err != nil {
		t.Fatalf("NewAutomationCollector returned error: %v", err)
	}

	automation.SummaryProduced("llm")
	automation.SummaryProduced("fallback")
	automation.SummaryProduced("fallback")
	automation.ItemFailed()
	automation.RunFinished("completed", 12, 3, 2*time.Second)

	body := scrape(t, collector)
	for _, want := range []string{
		`accio_automation_runs_total{status="completed"} 1`,
		`accio_automation_items_fetched_total 12`,
		`accio_automation_items_processed_total 3`,
		`accio_automation_item_failures_total 1`,
		`accio_automation_summaries_total{source="fallback"} 2`,
		`accio_automation_run_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}

func TestNilAutomationCollectorIsNoop(t *testing.T) {
	var c *AutomationCollector
	c.RunFinished("failed", 0, 0, time.Second)
	c.ItemFailed()
	c.SummaryProduced("llm")
}

func scrape(t *testing.T, c *HTTPCollector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
