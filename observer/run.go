package observer

import (
	"context"
	"time"

	"github.com/lagobot/lago/planner"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runner executes planning runs. *planner.Planner satisfies it.
type Runner interface {
	Run(ctx context.Context, req planner.Request) (planner.Result, error)
}

// ObservedRunner wraps a Runner, emitting a planner.run span that serves
// as the parent for every model call of the run.
type ObservedRunner struct {
	inner Runner
	inst  *Instruments
}

func WrapRunner(inner Runner, inst *Instruments) *ObservedRunner {
	return &ObservedRunner{inner: inner, inst: inst}
}

func (o *ObservedRunner) Run(ctx context.Context, req planner.Request) (planner.Result, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "planner.run", trace.WithAttributes(
		AttrRunID.String(req.RunID),
	))
	defer span.End()
	start := time.Now()

	onTask := req.OnTask
	req.OnTask = func(t planner.Task) {
		span.AddEvent("planner.task", trace.WithAttributes(
			AttrTaskID.Int(t.ID),
			attribute.String("task", t.Description),
		))
		if onTask != nil {
			onTask(t)
		}
	}

	res, err := o.inner.Run(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	state := res.State.String()
	switch {
	case res.State == planner.StateCancelled:
		span.AddEvent("planner.cancelled")
		span.SetStatus(codes.Error, "cancelled")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		AttrRunState.String(state),
		AttrRunIterations.Int(res.Iterations),
	)

	attrs := metric.WithAttributes(attribute.String("state", state))
	o.inst.RunExecutions.Add(ctx, 1, attrs)
	o.inst.RunDuration.Record(ctx, durationMs, attrs)
	o.inst.RunIterations.Record(ctx, int64(res.Iterations), attrs)

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("planning run finished"))
	rec.AddAttributes(
		otellog.String("planner.run_id", res.RunID),
		otellog.String("planner.state", state),
		otellog.Int("planner.iterations", res.Iterations),
		otellog.Int("planner.remaining", len(res.Remaining)),
		otellog.Float64("duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return res, err
}
