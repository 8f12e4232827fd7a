// Package instrumentation provides OpenTelemetry tracing and Prometheus
// metrics for the monitor-and-grab engine, adapted from the enrollment
// client's own request instrumentation: one span per enrollment call plus
// counters for the outcomes that matter operationally here — logins,
// heartbeats, grabs, and swaps.
package instrumentation

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

const (
	ServiceName    = "xkmonitor-engine"
	ServiceVersion = "1.0.0"
)

var (
	tracer trace.Tracer
	meter  metric.Meter

	requestCounter       metric.Int64Counter
	requestDuration      metric.Float64Histogram
	activeRequests       metric.Int64UpDownCounter
	loginAttemptCounter  metric.Int64Counter
	heartbeatCounter     metric.Int64Counter
	grabCounter          metric.Int64Counter
	swapCounter          metric.Int64Counter
	rollbackDuration     metric.Float64Histogram
	captchaSolveCounter  metric.Int64Counter
	captchaSolveDuration metric.Float64Histogram
)

// Config controls sampling, exporter endpoint, and whether the Prometheus
// reader is attached at all.
type Config struct {
	OTLPEndpoint   string
	Environment    string
	SampleRate     float64
	MetricsEnabled bool
}

// productionEnvNames lists the Environment values that tighten sampling to
// SampleRate; anything else is treated as a development box and samples every
// trace. The OTLP exporter uses plain HTTP in every environment.
var productionEnvNames = map[string]bool{"production": true, "prod": true}

func isProductionEnv(env string) bool { return productionEnvNames[env] }

// DefaultConfig reads the bootstrap knobs this engine cares about straight
// from the environment, for callers that run Init outside the cobra/viper
// harness (e.g. ad-hoc tooling or tests).
func DefaultConfig() Config {
	env := firstNonEmpty(os.Getenv("ENVIRONMENT"), "development")
	cfg := Config{
		OTLPEndpoint:   firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4318"),
		Environment:    env,
		SampleRate:     1.0,
		MetricsEnabled: os.Getenv("METRICS_ENABLED") != "false",
	}
	if isProductionEnv(env) {
		cfg.SampleRate = 0.1
	}
	return cfg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// bootstrap holds the two SDK providers Init assembles, so shutdown can be
// expressed as a method on a value rather than a closure capturing locals.
type bootstrap struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

func (b *bootstrap) shutdown(ctx context.Context) error {
	var errs []error
	if b.tracerProvider != nil {
		errs = append(errs, b.tracerProvider.Shutdown(ctx))
	}
	if b.meterProvider != nil {
		errs = append(errs, b.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// buildResource describes this process to every exporter: fixed service
// identity plus whatever resource.Default() detects about the host/process.
func buildResource(cfg Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

// buildTracerProvider tries to stand up an OTLP-backed provider; a failure
// to dial the collector degrades to a resource-tagged provider that never
// samples, rather than failing Init outright — tracing is diagnostic, not
// load-bearing for the engine's enrollment logic.
func buildTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) *sdktrace.TracerProvider {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		klog.Warningf("instrumentation: OTLP exporter unavailable (%v), tracing disabled", err)
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		)
	}

	sampler := sdktrace.AlwaysSample()
	if isProductionEnv(cfg.Environment) {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
}

// buildMeterProvider returns nil when metrics are disabled or the
// Prometheus exporter can't be constructed; callers must handle a nil
// provider by leaving the package-level meter as a no-op.
func buildMeterProvider(cfg Config, res *resource.Resource) *sdkmetric.MeterProvider {
	if !cfg.MetricsEnabled {
		return nil
	}
	exporter, err := prometheus.New()
	if err != nil {
		klog.Warningf("instrumentation: Prometheus exporter unavailable (%v), metrics disabled", err)
		return nil
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
}

// Init wires up OTel tracing + Prometheus metrics and returns a shutdown
// func. Tracing and metrics are assembled independently: a broken collector
// or scrape endpoint degrades its own signal rather than preventing the
// other from starting.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return nil, err
	}

	b := &bootstrap{
		tracerProvider: buildTracerProvider(ctx, cfg, res),
		meterProvider:  buildMeterProvider(cfg, res),
	}
	otel.SetTracerProvider(b.tracerProvider)
	tracer = otel.Tracer(ServiceName)
	if b.meterProvider != nil {
		otel.SetMeterProvider(b.meterProvider)
	}
	meter = otel.Meter(ServiceName)

	if err := initMetrics(); err != nil {
		return nil, err
	}

	return b.shutdown, nil
}

func initMetrics() error {
	var err error

	if requestCounter, err = meter.Int64Counter("xkmonitor.requests.total",
		metric.WithDescription("Total enrollment API calls"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if requestDuration, err = meter.Float64Histogram("xkmonitor.request.duration",
		metric.WithDescription("Enrollment API call duration"), metric.WithUnit("ms")); err != nil {
		return err
	}
	if activeRequests, err = meter.Int64UpDownCounter("xkmonitor.requests.active",
		metric.WithDescription("In-flight enrollment API calls"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if loginAttemptCounter, err = meter.Int64Counter("xkmonitor.login.attempts",
		metric.WithDescription("Login attempts"), metric.WithUnit("{attempt}")); err != nil {
		return err
	}
	if heartbeatCounter, err = meter.Int64Counter("xkmonitor.heartbeat.total",
		metric.WithDescription("Scheduler heartbeat increments"), metric.WithUnit("{tick}")); err != nil {
		return err
	}
	if grabCounter, err = meter.Int64Counter("xkmonitor.grabs.total",
		metric.WithDescription("Grab attempts by outcome"), metric.WithUnit("{attempt}")); err != nil {
		return err
	}
	if swapCounter, err = meter.Int64Counter("xkmonitor.swaps.total",
		metric.WithDescription("Swap protocol runs by outcome"), metric.WithUnit("{run}")); err != nil {
		return err
	}
	if rollbackDuration, err = meter.Float64Histogram("xkmonitor.rollback.duration",
		metric.WithDescription("Emergency rollback duration"), metric.WithUnit("s")); err != nil {
		return err
	}
	if captchaSolveCounter, err = meter.Int64Counter("xkmonitor.captcha.solves",
		metric.WithDescription("Captcha solve attempts by outcome"), metric.WithUnit("{attempt}")); err != nil {
		return err
	}
	if captchaSolveDuration, err = meter.Float64Histogram("xkmonitor.captcha.duration",
		metric.WithDescription("Captcha solve latency"), metric.WithUnit("ms")); err != nil {
		return err
	}
	return nil
}

// RequestTrace instruments one enrollment HTTP call.
type RequestTrace struct {
	ctx       context.Context
	span      trace.Span
	startTime time.Time
	endpoint  string
	method    string
}

// StartRequest begins tracing an outbound enrollment call.
func StartRequest(ctx context.Context, method, endpoint string) *RequestTrace {
	if tracer == nil {
		return &RequestTrace{ctx: ctx, startTime: time.Now(), endpoint: endpoint, method: method}
	}
	ctx, span := tracer.Start(ctx, "xkmonitor.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			attribute.String("xkmonitor.endpoint", endpoint),
		),
	)
	if activeRequests != nil {
		activeRequests.Add(ctx, 1)
	}
	return &RequestTrace{ctx: ctx, span: span, startTime: time.Now(), endpoint: endpoint, method: method}
}

// End completes the request trace and records outcome metrics.
func (rt *RequestTrace) End(statusCode int, err error) {
	duration := time.Since(rt.startTime).Milliseconds()

	if rt.span != nil {
		rt.span.SetAttributes(attribute.Int("http.status_code", statusCode), attribute.Int64("http.duration_ms", duration))
		if err != nil {
			rt.span.RecordError(err)
			rt.span.SetStatus(codes.Error, err.Error())
		} else {
			rt.span.SetStatus(codes.Ok, "")
		}
		rt.span.End()
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", rt.method),
		attribute.String("endpoint", rt.endpoint),
		attribute.Bool("success", err == nil && statusCode < 400 && statusCode != 0),
	}
	if requestCounter != nil {
		requestCounter.Add(rt.ctx, 1, metric.WithAttributes(attrs...))
	}
	if requestDuration != nil {
		requestDuration.Record(rt.ctx, float64(duration), metric.WithAttributes(attrs...))
	}
	if activeRequests != nil && rt.span != nil {
		activeRequests.Add(rt.ctx, -1)
	}
}

// RecordLogin records a login attempt's outcome.
func RecordLogin(ctx context.Context, outcome string) {
	if loginAttemptCounter != nil {
		loginAttemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RecordHeartbeat records a scheduler heartbeat tick.
func RecordHeartbeat(ctx context.Context, count int64) {
	if heartbeatCounter != nil {
		heartbeatCounter.Add(ctx, count)
	}
}

// RecordGrab records a grab attempt's outcome for one course type.
func RecordGrab(ctx context.Context, outcome string, courseType string) {
	if grabCounter != nil {
		grabCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("course_type", courseType),
		))
	}
}

// RecordSwap records a swap protocol run's outcome.
func RecordSwap(ctx context.Context, outcome string) {
	if swapCounter != nil {
		swapCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RecordRollback records emergency-rollback duration.
func RecordRollback(ctx context.Context, d time.Duration, succeeded bool) {
	if rollbackDuration != nil {
		rollbackDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("succeeded", succeeded)))
	}
}

// RecordCaptchaSolve records a captcha-solve attempt.
func RecordCaptchaSolve(ctx context.Context, d time.Duration, succeeded bool) {
	if captchaSolveCounter != nil {
		captchaSolveCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("succeeded", succeeded)))
	}
	if captchaSolveDuration != nil {
		captchaSolveDuration.Record(ctx, float64(d.Milliseconds()))
	}
}
