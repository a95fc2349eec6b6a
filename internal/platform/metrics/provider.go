package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an in-process OpenTelemetry meter provider read on demand by
// the /metrics endpoint.
type Provider struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// Snapshot is one collection of every instrument.
type Snapshot struct {
	// Totals sums each int64 counter across its attribute sets.
	Totals map[string]int64 `json:"totals"`
	// Outcomes splits counters carrying an outcome attribute.
	Outcomes map[string]map[string]int64 `json:"outcomes"`
	Latency  map[string]Latency          `json:"latency"`
}

type Latency struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
}

func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	return &Provider{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (p *Provider) Meter(name string) metric.Meter {
	return p.provider.Meter(name)
}

func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Totals:   map[string]int64{},
		Outcomes: map[string]map[string]int64{},
		Latency:  map[string]Latency{},
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					snap.Totals[m.Name] += dp.Value
					if outcome, ok := dp.Attributes.Value(attribute.Key(outcomeKey)); ok {
						if snap.Outcomes[m.Name] == nil {
							snap.Outcomes[m.Name] = map[string]int64{}
						}
						snap.Outcomes[m.Name][outcome.AsString()] += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				l := snap.Latency[m.Name]
				for _, dp := range data.DataPoints {
					l.Count += dp.Count
					l.Sum += dp.Sum
				}
				if l.Count > 0 {
					l.Avg = l.Sum / float64(l.Count)
				}
				snap.Latency[m.Name] = l
			}
		}
	}
	return snap, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
