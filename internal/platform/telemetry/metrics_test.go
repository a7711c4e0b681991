package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHistogram_Buckets(t *testing.T) {
	h := newHistogram([]float64{1, 5, 10})
	for _, v := range []float64{0.5, 1, 3, 7, 50} {
		h.Observe(v)
	}
	if h.Count() != 5 {
		t.Fatalf("expected count 5, got %d", h.Count())
	}
	if h.Sum() != 61.5 {
		t.Fatalf("expected sum 61.5, got %g", h.Sum())
	}
	cum := h.cumulativeBuckets()
	want := []int64{2, 3, 4}
	for i := range want {
		if cum[i] != want[i] {
			t.Errorf("bucket %d: expected %d, got %d", i, want[i], cum[i])
		}
	}
}

func TestMetrics_IncConcurrent(t *testing.T) {
	m := New("test")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc("booking_attempts_total", "booked")
		}()
	}
	wg.Wait()
	if got := m.Count("booking_attempts_total", "booked"); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
	if got := m.Count("booking_attempts_total", "conflict"); got != 0 {
		t.Fatalf("expected 0 for unseen label, got %d", got)
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New("test")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/schedules/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/api/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "taken")
	})

	for _, path := range []string{"/api/schedules/1", "/api/schedules/2", "/api/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := m.Render()
	if !strings.Contains(out, `http_server_request_duration_seconds_count{method="GET",route="/api/schedules/:id",status_code="200"} 2`) {
		t.Errorf("missing route series:\n%s", out)
	}
	if !strings.Contains(out, `route="/api/fail",status_code="409"`) {
		t.Errorf("expected error status to be recorded:\n%s", out)
	}
	if !strings.Contains(out, "http_server_active_requests 0") {
		t.Errorf("expected no in-flight requests:\n%s", out)
	}
}

func TestHandler_RendersCountersAndGauges(t *testing.T) {
	m := New("")
	m.Describe("booking_attempts_total", "Booking attempts by outcome.")
	m.Inc("booking_attempts_total", "conflict")
	m.Inc("booking_attempts_total", "booked")
	m.Gauge("db_pool_idle_connections", "Idle pool connections.", func() int64 { return 3 })

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`service_info{service="booking-server"} 1`,
		"# HELP booking_attempts_total Booking attempts by outcome.",
		"# TYPE booking_attempts_total counter",
		`booking_attempts_total{outcome="booked"} 1`,
		"db_pool_idle_connections 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in output:\n%s", want, body)
		}
	}
	if strings.Index(body, `outcome="booked"`) > strings.Index(body, `outcome="conflict"`) {
		t.Error("expected counters in sorted order")
	}
}
