package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// configOTEL installs an OTLP HTTP trace exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set, eg http://localhost:4318. The other
// OTEL_EXPORTER_OTLP_* variables are honored by the exporter itself.
// MOLTGUARD_TRACE_SAMPLE_RATIO (0..1, default 1) samples root spans.
//
// The returned func flushes and stops the exporter. It is a no-op when tracing
// is not configured.
func configOTEL(ctx context.Context, serviceName string) func() {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep == "" {
		return func() {}
	}

	ratio := 1.0
	if v := os.Getenv("MOLTGUARD_TRACE_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			slog.Warn("ignoring invalid trace sample ratio", "value", v)
		} else {
			ratio = r
		}
	}
	slog.Info("setting up trace exporter", "endpoint", ep, "sample_ratio", ratio)

	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		slog.Error("failed to create trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(versioninfo.Short()),
		attribute.String("environment", os.Getenv("ENVIRONMENT")),
	)
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace exporter", "error", err)
		}
	}
}
