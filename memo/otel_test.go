package memo

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestOTelObserver_CountsEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	obs, err := NewOTelObserver(provider.Meter("memoflight_test"))
	if err != nil {
		t.Fatalf("NewOTelObserver error = %v", err)
	}

	obs.On(EventData{Event: EventHit, Name: "add"})
	obs.On(EventData{Event: EventMiss, Name: "add"})
	obs.On(EventData{Event: EventJoin, Name: "add"})
	obs.On(EventData{Event: EventError, Name: "add"})
	obs.On(EventData{Event: EventRejected, Name: "add"})

	if got := collectSum(t, reader, "memo.lookups.total"); got != 3 {
		t.Errorf("lookups = %d, want 3", got)
	}
}

func TestOTelObserver_WiredIntoCached(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	obs, err := NewOTelObserver(provider.Meter("memoflight_test"))
	if err != nil {
		t.Fatalf("NewOTelObserver error = %v", err)
	}

	a := &adder{}
	c := newAddCache(t, a, func(cfg *Config[int]) { cfg.Observer = obs })
	ctx := context.Background()

	_, _ = c.Call(ctx, 1, 2)
	_, _ = c.Call(ctx, 1, 2)

	if got := collectSum(t, reader, "memo.lookups.total"); got != 2 {
		t.Errorf("lookups = %d, want 2 (one miss, one hit)", got)
	}
}
