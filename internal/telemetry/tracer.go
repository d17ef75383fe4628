package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "mcp-pdftools"

var (
	// globalMutex protects access to global tracer variables
	globalMutex sync.RWMutex
	// global tracer instance
	globalTracer trace.Tracer = noop.NewTracerProvider().Tracer(tracerName)
	// global tracer provider for shutdown
	globalTracerProvider *sdktrace.TracerProvider
	// is tracing enabled
	tracingEnabled bool
)

// otelErrorHandler routes OTEL SDK errors to logrus so nothing is written to
// stdout in stdio mode
type otelErrorHandler struct {
	logger *logrus.Logger
}

func (h *otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	h.logger.WithError(err).Debug("OTEL: SDK error occurred")
}

// InitTracer configures tracing from the standard OTEL environment variables.
// OTEL_SDK_DISABLED=true forces a noop tracer, OTEL_EXPORTER_OTLP_ENDPOINT
// enables the OTLP exporter and OTEL_TRACES_EXPORTER=console writes spans to
// the logger's output. Anything else is a noop tracer.
// The returned shutdown function flushes pending spans.
func InitTracer(logger *logrus.Logger) (func() error, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	noopShutdown := func() error { return nil }
	useNoop := func() {
		globalTracer = noop.NewTracerProvider().Tracer(tracerName)
		globalTracerProvider = nil
		tracingEnabled = false
	}

	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL: Explicitly disabled via OTEL_SDK_DISABLED")
		useNoop()
		return noopShutdown, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	switch {
	case endpoint != "":
		protocol := getOTLPProtocol()
		logger.WithFields(logrus.Fields{"endpoint": endpoint, "protocol": protocol}).Info("OTEL: Initialising tracer")
		if protocol == "grpc" {
			exporter, err = otlptracegrpc.New(ctx)
		} else {
			exporter, err = otlptracehttp.New(ctx)
		}
	case strings.EqualFold(os.Getenv("OTEL_TRACES_EXPORTER"), "console"):
		logger.Debug("OTEL: Writing spans to the log output")
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(logger.Out))
	default:
		logger.Debug("OTEL: Not configured, using noop tracer")
		useNoop()
		return noopShutdown, nil
	}

	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create exporter, falling back to noop tracer")
		useNoop()
		return noopShutdown, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	otel.SetErrorHandler(&otelErrorHandler{logger: logger})

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(getServiceName()),
		semconv.ServiceVersion(getServiceVersion()),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(logger)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = tp.Tracer(tracerName)
	globalTracerProvider = tp
	tracingEnabled = true

	return func() error {
		globalMutex.Lock()
		defer globalMutex.Unlock()

		if globalTracerProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalTracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("OTEL: Failed to shutdown tracer provider")
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		logger.Debug("OTEL: Tracer provider shutdown successfully")
		return nil
	}, nil
}

// GetTracer returns the global tracer instance
func GetTracer() trace.Tracer {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalTracer
}

// IsEnabled reports whether spans are exported
func IsEnabled() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return tracingEnabled
}

// StartRunSpan opens the span for one tool run. The caller must end it with
// EndRunSpan.
func StartRunSpan(ctx context.Context, toolName, runID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, SpanPrefix+toolName, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(AttrToolName, toolName),
		attribute.String(AttrRunID, runID),
	)
	return ctx, span
}

// EndRunSpan records the outcome and ends span. errorKind is only used when
// err is set.
func EndRunSpan(span trace.Span, err error, errorKind string) {
	if span == nil {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool(AttrSuccess, false),
			attribute.String(AttrErrorKind, errorKind),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Bool(AttrSuccess, true))
	}
	span.End()
}

func getOTLPProtocol() string {
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	if protocol == "" {
		if strings.Contains(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), ":4317") {
			return "grpc" // Default gRPC port
		}
		return "http/protobuf"
	}
	return protocol
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return tracerName
}

func getServiceVersion() string {
	if version := os.Getenv("MCP_VERSION"); version != "" {
		return version
	}
	return "dev"
}

func createSampler(logger *logrus.Logger) sdktrace.Sampler {
	samplerArg := os.Getenv("OTEL_TRACES_SAMPLER_ARG")

	switch sampler := os.Getenv("OTEL_TRACES_SAMPLER"); sampler {
	case "", "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseRatio(samplerArg))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseRatio(samplerArg)))
	default:
		logger.WithField("sampler", sampler).Warn("OTEL: Unknown sampler type, using always_on")
		return sdktrace.AlwaysSample()
	}
}

// parseRatio clamps a sampler ratio to [0, 1], defaulting to 1
func parseRatio(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 1.0
	}
	return min(max(f, 0.0), 1.0)
}
