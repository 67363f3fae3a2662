// Package otel wires OpenTelemetry tracing for evaluation runs: one span per
// run, per representation and per cross-validation fold.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName          string
	ServiceVersion       string
	Environment          string
	CollectorEndpoint    string
	CollectorInsecure    bool
	SamplingRate         float64 // 0.0 to 1.0 (1.0 = always sample)
	MaxEventsPerSpan     int
	MaxAttributesPerSpan int
}

// DefaultConfig returns local-collector defaults
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:          serviceName,
		ServiceVersion:       "0.1.0",
		Environment:          "development",
		CollectorEndpoint:    "localhost:4317",
		CollectorInsecure:    true,
		SamplingRate:         1.0,
		MaxEventsPerSpan:     128,
		MaxAttributesPerSpan: 64,
	}
}

// InitTracer installs a batching OTLP/gRPC tracer provider as the global one.
func InitTracer(ctx context.Context, config *Config) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultConfig("nbeval")
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.CollectorEndpoint)}
	if config.CollectorInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
		sdktrace.WithSpanLimits(sdktrace.SpanLimits{
			EventCountLimit:     config.MaxEventsPerSpan,
			AttributeCountLimit: config.MaxAttributesPerSpan,
		}),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return tp.Shutdown(ctx)
}

// StartSpan starts a span on the named global tracer
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	return ctx, span
}

// RecordError records err on span and marks it failed
func RecordError(span trace.Span, err error, message string) {
	if span == nil || err == nil {
		return
	}

	if message != "" {
		span.RecordError(err, trace.WithAttributes(
			attribute.String("error.message", message),
		))
	} else {
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds an event to a span with optional attributes
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

const (
	// Run attributes
	AttrRunID       = attribute.Key("nbeval.run_id")
	AttrFingerprint = attribute.Key("nbeval.fingerprint")
	AttrDocuments   = attribute.Key("nbeval.documents")

	// Representation attributes
	AttrRepresentation = attribute.Key("nbeval.representation")
	AttrVocabSize      = attribute.Key("nbeval.vocab_size")

	// Fold attributes
	AttrFold      = attribute.Key("cv.fold")
	AttrTrainSize = attribute.Key("cv.train_size")
	AttrTestSize  = attribute.Key("cv.test_size")
	AttrAccuracy  = attribute.Key("eval.accuracy")

	// Service attributes
	AttrCacheHit = attribute.Key("results.cache_hit")
)

func RunAttributes(runID, fingerprint string, documents int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrDocuments.Int(documents),
	}
	if fingerprint != "" {
		attrs = append(attrs, AttrFingerprint.String(fingerprint))
	}
	return attrs
}

func RepresentationAttributes(name string, vocabSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRepresentation.String(name),
		AttrVocabSize.Int(vocabSize),
	}
}

func FoldAttributes(fold, trainSize, testSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrFold.Int(fold),
		AttrTrainSize.Int(trainSize),
		AttrTestSize.Int(testSize),
	}
}
