package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*sdkmetric.ManualReader, Metrics) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return reader, m
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetrics_TotalCounterIncrements(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := CallMeta{Service: "users.v1.UserService", Method: "GetUser"}

	m.RecordEvaluation(context.Background(), meta, "", 5*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "policy.eval.total")
	if found == nil {
		t.Fatal("policy.eval.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data = %T, want Sum[int64]", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("total = %d, want 1", sum.DataPoints[0].Value)
	}

	// Call attributes ride on every data point.
	var foundService, foundMethod bool
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		switch string(kv.Key) {
		case "rpc.service":
			foundService = true
			if kv.Value.AsString() != "users.v1.UserService" {
				t.Errorf("rpc.service = %q", kv.Value.AsString())
			}
		case "rpc.method":
			foundMethod = true
			if kv.Value.AsString() != "GetUser" {
				t.Errorf("rpc.method = %q", kv.Value.AsString())
			}
		}
	}
	if !foundService || !foundMethod {
		t.Error("rpc.service/rpc.method attributes missing from data point")
	}
}

func TestMetrics_RejectedCounterOnlyOnRejection(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := CallMeta{Service: "svc", Method: "M"}

	// Accepted call and handler failure: neither is a policy rejection.
	m.RecordEvaluation(context.Background(), meta, "", time.Millisecond, nil)
	m.RecordEvaluation(context.Background(), meta, "", time.Millisecond, errors.New("db down"))

	rm := collect(t, reader)
	if found := findMetric(rm, "policy.eval.rejected"); found != nil {
		if sum, ok := found.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				if dp.Value != 0 {
					t.Errorf("rejected = %d without a rejecting stage, want 0", dp.Value)
				}
			}
		}
	}
}

func TestMetrics_RejectedCounterCarriesStage(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := CallMeta{Service: "svc", Method: "M"}

	m.RecordEvaluation(context.Background(), meta, "pre_auth_rate_limit", time.Millisecond, errors.New("rate limit exceeded"))

	rm := collect(t, reader)
	found := findMetric(rm, "policy.eval.rejected")
	if found == nil {
		t.Fatal("policy.eval.rejected metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data = %T, want Sum[int64]", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("rejected = %d, want 1", sum.DataPoints[0].Value)
	}

	var stage string
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		if string(kv.Key) == "policy.stage" {
			stage = kv.Value.AsString()
		}
	}
	if stage != "pre_auth_rate_limit" {
		t.Errorf("policy.stage = %q, want pre_auth_rate_limit", stage)
	}
}

func TestMetrics_DurationHistogramRecords(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := CallMeta{Service: "svc", Method: "M"}

	m.RecordEvaluation(context.Background(), meta, "", 50*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "policy.eval.duration_ms")
	if found == nil {
		t.Fatal("policy.eval.duration_ms metric not found")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data = %T, want Histogram[float64]", found.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Sum; got < 40 || got > 60 {
		t.Errorf("duration sum = %f ms, want ~50", got)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := CallMeta{Service: "svc", Method: "M"}
	const workers = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			m.RecordEvaluation(context.Background(), meta, "", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	rm := collect(t, reader)
	found := findMetric(rm, "policy.eval.total")
	if found == nil {
		t.Fatal("policy.eval.total metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data = %T, want Sum[int64]", found.Data)
	}
	if sum.DataPoints[0].Value != workers {
		t.Errorf("total = %d, want %d", sum.DataPoints[0].Value, workers)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	// Must be safe with and without an error and a stage.
	m.RecordEvaluation(context.Background(), CallMeta{Service: "svc", Method: "M"}, "", time.Millisecond, nil)
	m.RecordEvaluation(context.Background(), CallMeta{Service: "svc", Method: "M"}, "authorize", time.Millisecond, errors.New("denied"))
}
