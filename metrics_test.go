package shelfauth

import (
	"context"
	"testing"
	"time"
)

func newMetricsEngine(t *testing.T, f *testFixture) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(newTestConfig()).
		WithStores(f.accounts, f.registrations, f.verifications).
		WithUnitOfWork(f.uow).
		WithOTPSender(f.sender).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestMetricsCountWorkflowOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	engine := newMetricsEngine(t, f)

	token, _ := submitForTest(t, engine, f)
	if err := engine.VerifyOTP(ctx, token, f.sender.lastCode(t)); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}

	seedStudent(t, engine, f, "77777", "b@x.com", "secret1")
	if _, err := engine.StudentLogin(ctx, "77777", "secret1"); err != nil {
		t.Fatalf("StudentLogin failed: %v", err)
	}
	if _, err := engine.StudentLogin(ctx, "77777", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRegistrationSuccess] == 0 {
		t.Fatal("registration success not counted")
	}
	if snap.Counters[MetricOTPVerifySuccess] != 1 {
		t.Fatalf("verify success = %d, want 1", snap.Counters[MetricOTPVerifySuccess])
	}
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login counters = %d/%d, want 1/1",
			snap.Counters[MetricLoginSuccess], snap.Counters[MetricLoginFailure])
	}

	buckets := snap.Histograms[MetricLoginLatency]
	if len(buckets) == 0 {
		t.Fatal("expected a login latency histogram")
	}
	var observations uint64
	for _, b := range buckets {
		observations += b
	}
	if observations != 2 {
		t.Fatalf("latency observations = %d, want 2", observations)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	engine := newTestEngine(t, f)

	seedStudent(t, engine, f, "12345", "a@x.com", "secret1")
	if _, err := engine.StudentLogin(ctx, "12345", "secret1"); err != nil {
		t.Fatalf("StudentLogin failed: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("disabled metrics produced counters: %v", snap.Counters)
	}
}

func TestMetricsValueAndInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricRefreshSuccess)
	if got := m.Value(MetricRefreshSuccess); got != 2 {
		t.Fatalf("Value = %d, want 2", got)
	}

	var disabled *Metrics
	disabled.Inc(MetricRefreshSuccess)
	if got := disabled.Value(MetricRefreshSuccess); got != 0 {
		t.Fatalf("nil metrics Value = %d, want 0", got)
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{3 * time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
