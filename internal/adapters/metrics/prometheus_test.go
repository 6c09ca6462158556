package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.ObserveQuery("ok", 200*time.Millisecond)
	p.ObserveQuery("ok", time.Second)
	p.ObserveQuery("error", time.Second)
	p.ObserveToolCall("search_course_content")
	p.ObserveIngest(1, 12)
	p.ObserveIngest(2, 30)

	if got := testutil.ToFloat64(p.queries.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 ok queries, got %v", got)
	}
	if got := testutil.ToFloat64(p.queries.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed query, got %v", got)
	}
	if got := testutil.ToFloat64(p.toolCalls.WithLabelValues("search_course_content")); got != 1 {
		t.Errorf("expected 1 tool call, got %v", got)
	}
	if got := testutil.ToFloat64(p.coursesIngested); got != 3 {
		t.Errorf("expected 3 courses, got %v", got)
	}
	if got := testutil.ToFloat64(p.chunksIngested); got != 42 {
		t.Errorf("expected 42 chunks, got %v", got)
	}
	if n := testutil.CollectAndCount(p.queryDuration); n != 1 {
		t.Errorf("expected one histogram series, got %d", n)
	}
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.ObserveToolCall("search_course_content")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), `courserag_tool_calls_total{tool="search_course_content"} 1`) {
		t.Errorf("tool counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collectors should be registered")
	}
}

func TestPrometheus_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewPrometheus()
	b := NewPrometheus()
	a.ObserveToolCall("x")
	if got := testutil.ToFloat64(b.toolCalls.WithLabelValues("x")); got != 0 {
		t.Errorf("registries should be isolated, got %v", got)
	}
}
