package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"appraisal/internal/domain/appraisal"
)

const meterName = "appraisal"

// Appraisal records workflow counters through OpenTelemetry.
type Appraisal struct {
	stages        metric.Int64Counter
	rejections    metric.Int64Counter
	notifications metric.Int64Counter
	archived      metric.Int64Counter
	sweeps        metric.Int64Counter
}

// NewAppraisal registers the instruments on meter, or on the global meter
// provider when meter is nil.
func NewAppraisal(meter metric.Meter) (*Appraisal, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	a := &Appraisal{}
	var err error
	if a.stages, err = meter.Int64Counter("appraisal.stages.completed",
		metric.WithDescription("Appraisal stages marked done"),
		metric.WithUnit("{stage}"),
	); err != nil {
		return nil, err
	}
	if a.rejections, err = meter.Int64Counter("appraisal.transitions.rejected",
		metric.WithDescription("Stage submissions rejected for ordering"),
		metric.WithUnit("{submission}"),
	); err != nil {
		return nil, err
	}
	if a.notifications, err = meter.Int64Counter("appraisal.notifications",
		metric.WithDescription("Notifications created, by kind and outcome"),
		metric.WithUnit("{notification}"),
	); err != nil {
		return nil, err
	}
	if a.archived, err = meter.Int64Counter("appraisal.archive.employees",
		metric.WithDescription("Employees processed by the archival sweep, by outcome"),
		metric.WithUnit("{employee}"),
	); err != nil {
		return nil, err
	}
	if a.sweeps, err = meter.Int64Counter("appraisal.sweeps",
		metric.WithDescription("Scheduled sweep runs, by job and outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Appraisal) StageCompleted(ctx context.Context, stage appraisal.Stage) {
	a.stages.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage.String())))
}

func (a *Appraisal) TransitionRejected(ctx context.Context, stage appraisal.Stage) {
	a.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage.String())))
}

func (a *Appraisal) NotificationsSent(ctx context.Context, kind string, delivered, failed int) {
	if delivered > 0 {
		a.notifications.Add(ctx, int64(delivered), metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", "delivered")))
	}
	if failed > 0 {
		a.notifications.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", "failed")))
	}
}

func (a *Appraisal) ArchiveSwept(ctx context.Context, archived, skipped, failed int) {
	for outcome, n := range map[string]int{"archived": archived, "skipped": skipped, "failed": failed} {
		if n > 0 {
			a.archived.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}
}

// SweepRan counts one scheduled job run.
func (a *Appraisal) SweepRan(ctx context.Context, job string, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	a.sweeps.Add(ctx, 1, metric.WithAttributes(attribute.String("job", job), attribute.String("outcome", outcome)))
}

var _ appraisal.Recorder = (*Appraisal)(nil)
