package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"twido/pkg/domain"
)

func TestNoopLogger(t *testing.T) {
	logger := noopLogger{}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("noop logger panicked: %v", r)
		}
	}()
	logger.Debug("test message", "arg1", "arg2")
	logger.Info("test message", "arg1", "arg2")
	logger.Warn("test message", "arg1", "arg2")
	logger.Error("test message", "arg1", "arg2")
}

func TestClockFuncNilFallsBackToSystemTime(t *testing.T) {
	if ClockFunc(nil).Now().IsZero() {
		t.Fatal("expected non-zero time from nil ClockFunc")
	}
	want := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	if got := ClockFunc(func() time.Time { return want }).Now(); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	rec.Observe(context.Background(), "add_task", true, time.Millisecond)
	rec.Observe(context.Background(), "add_task", true, time.Millisecond)
	rec.Observe(context.Background(), "persist", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.results.WithLabelValues("add_task", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("persist", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	expected := `
# HELP twido_store_operations_total Store operations by operation and result
# TYPE twido_store_operations_total counter
twido_store_operations_total{operation="add_task",result="success"} 2
twido_store_operations_total{operation="persist",result="error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "twido_store_operations_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestStoreRecordsMetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	logger := &captureLogger{}
	f := newFixture(t, domain.BackendLocal, domain.EmptyDocument(), nil, WithMetrics(rec), WithLogger(logger))
	f.backend.mu.Lock()
	f.backend.writeErr = errBoom
	f.backend.mu.Unlock()

	f.store.AddTask("measured", domain.SizeS)
	_ = f.store.Flush(context.Background())

	if got := testutil.ToFloat64(rec.results.WithLabelValues("add_task", "success")); got != 1 {
		t.Fatalf("expected add_task success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("persist", "error")); got != 1 {
		t.Fatalf("expected persist error, got %v", got)
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()
	found := false
	for _, c := range logger.calls {
		if c == "w:persistence failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected persistence warning, got %v", logger.calls)
	}
}

func TestComputeBalance(t *testing.T) {
	now := time.UnixMilli(100_000)
	start := int64(40_000)
	tasks := []domain.Task{
		{ID: "w1", Type: domain.ModeWork, ElapsedTime: 100, Completed: true},
		{ID: "w2", Type: domain.ModeWork, IsRunning: true, StartTime: &start},
		{ID: "p1", Type: domain.ModePrivate, ElapsedTime: 40},
	}
	r := ComputeBalance(tasks, now)
	if r.Work.Total != 2 || r.Work.Completed != 1 || r.Work.Progress != 0.5 {
		t.Fatalf("unexpected work progress %+v", r.Work)
	}
	if r.Private.Total != 1 || r.Private.Progress != 0 {
		t.Fatalf("unexpected private progress %+v", r.Private)
	}
	if r.WorkSeconds != 160 || r.PrivSeconds != 40 || r.WorkRatio != 0.8 || r.Label != BalanceWorkHeavy {
		t.Fatalf("unexpected balance %+v", r)
	}
	if empty := ComputeBalance(nil, now); empty.WorkRatio != 0.5 || empty.Label != BalancePerfect {
		t.Fatalf("unexpected empty balance %+v", empty)
	}
}

func TestBalanceLabels(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{0.9, BalanceWorkOverload},
		{0.7, BalanceWorkHeavy},
		{0.5, BalancePerfect},
		{0.3, BalancePrivateHeavy},
		{0.1, BalancePrivateOverload},
	}
	for _, tc := range cases {
		if got := balanceLabel(tc.ratio); got != tc.want {
			t.Fatalf("ratio %v: got %q want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[float64]string{
		0:      "0s",
		59.9:   "59s",
		61:     "1m 1s",
		3723:   "1h 2m 3s",
		-5:     "0s",
		360000: "100h 0m 0s",
	}
	for in, want := range cases {
		if got := FormatElapsed(in); got != want {
			t.Fatalf("FormatElapsed(%v) = %q, want %q", in, got, want)
		}
	}
}
