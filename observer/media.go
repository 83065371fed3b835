package observer

import (
	"context"
	"time"

	"github.com/lagobot/lago"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedImage wraps a lago.ImageProvider with OTEL instrumentation.
type ObservedImage struct {
	inner lago.ImageProvider
	inst  *Instruments
	model string
}

func WrapImage(inner lago.ImageProvider, model string, inst *Instruments) *ObservedImage {
	return &ObservedImage{inner: inner, inst: inst, model: model}
}

func (o *ObservedImage) Name() string { return o.inner.Name() }

func (o *ObservedImage) GenerateImage(ctx context.Context, prompt string) (lago.ImageResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "media.image", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	res, err := o.inner.GenerateImage(ctx, prompt)
	recordMedia(ctx, o.inst, span, "image", o.model, o.inner.Name(), time.Since(start), err)
	return res, err
}

// ObservedTranscriber wraps a lago.Transcriber with OTEL instrumentation.
type ObservedTranscriber struct {
	inner lago.Transcriber
	inst  *Instruments
	model string
}

func WrapTranscriber(inner lago.Transcriber, model string, inst *Instruments) *ObservedTranscriber {
	return &ObservedTranscriber{inner: inner, inst: inst, model: model}
}

func (o *ObservedTranscriber) Name() string { return o.inner.Name() }

func (o *ObservedTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "media.transcribe", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrMediaBytes.Int(len(audio)),
	))
	defer span.End()
	start := time.Now()

	text, err := o.inner.Transcribe(ctx, audio, filename)
	recordMedia(ctx, o.inst, span, "transcription", o.model, o.inner.Name(), time.Since(start), err)
	return text, err
}

func recordMedia(ctx context.Context, inst *Instruments, span trace.Span, kind, model, provider string, d time.Duration, err error) {
	durationMs := float64(d.Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	inst.MediaRequests.Add(ctx, 1, metric.WithAttributes(
		AttrMediaKind.String(kind),
		AttrLLMModel.String(model),
		attribute.String("status", status),
	))
	inst.MediaDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrMediaKind.String(kind),
		AttrLLMModel.String(model),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(kind + " completed"))
	rec.AddAttributes(
		otellog.String("llm.model", model),
		otellog.String("llm.provider", provider),
		otellog.Float64("duration_ms", durationMs),
		otellog.String("status", status),
	)
	inst.Logger.Emit(ctx, rec)
}

var (
	_ lago.ImageProvider = (*ObservedImage)(nil)
	_ lago.Transcriber   = (*ObservedTranscriber)(nil)
)
