package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xraph/batis/orm"
)

var (
	_ orm.Interceptor = Tracing{}
	_ orm.Interceptor = (*Metrics)(nil)
	_ orm.Interceptor = Logging{}
)

func testInvocation() *orm.Invocation {
	return &orm.Invocation{
		Operation:   orm.OperationQuery,
		StatementID: "UserMapper.FindAll",
		SQL:         "SELECT id FROM users",
		SessionID:   "session-1",
	}
}

func okHandler(ctx context.Context, inv *orm.Invocation) (any, error) {
	return []int{1}, nil
}

func failingHandler(err error) orm.Handler {
	return func(ctx context.Context, inv *orm.Invocation) (any, error) {
		return nil, err
	}
}

// setupTracingTest creates a tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})

	return exporter, tp
}

func TestTracing_Span(t *testing.T) {
	exporter, tp := setupTracingTest(t)

	out, err := Tracing{TracerProvider: tp}.Intercept(context.Background(), testInvocation(), okHandler)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "batis.query UserMapper.FindAll", s.Name)
	assert.Equal(t, codes.Ok, s.Status.Code)

	attrs := make(map[string]string)
	for _, attr := range s.Attributes {
		attrs[string(attr.Key)] = attr.Value.AsString()
	}

	assert.Equal(t, "SELECT id FROM users", attrs["db.statement"])
	assert.Equal(t, "query", attrs["db.operation"])
	assert.Equal(t, "session-1", attrs["batis.session_id"])
}

func TestTracing_Error(t *testing.T) {
	exporter, tp := setupTracingTest(t)
	expectedErr := errors.New("no such table")

	_, err := Tracing{TracerProvider: tp}.Intercept(context.Background(), testInvocation(), failingHandler(expectedErr))
	assert.ErrorIs(t, err, expectedErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "no such table", spans[0].Status.Description)
	assert.NotEmpty(t, spans[0].Events, "error recorded as event")
}

func TestTracing_GlobalProvider(t *testing.T) {
	exporter, tp := setupTracingTest(t)

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	inv := testInvocation()
	inv.StatementID = ""

	_, err := Tracing{}.Intercept(context.Background(), inv, okHandler)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "batis.query", spans[0].Name)
}

// setupMetricsTest creates a meter provider backed by a manual reader.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})

	return reader, provider
}

// findMetric finds a metric by name in the collected data.
func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestMetrics_Record(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m := &Metrics{MeterProvider: provider}
	ctx := context.Background()

	_, err := m.Intercept(ctx, testInvocation(), okHandler)
	require.NoError(t, err)

	_, err = m.Intercept(ctx, testInvocation(), failingHandler(errors.New("boom")))
	require.Error(t, err)

	assert.Equal(t, int64(2), sumOf(t, findMetric(t, reader, "batis.statements")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(t, reader, "batis.statement.errors")))

	latency := findMetric(t, reader, "batis.statement.latency_ms")
	require.NotNil(t, latency)

	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestMetrics_ZeroValue(t *testing.T) {
	var m Metrics

	out, err := m.Intercept(context.Background(), testInvocation(), okHandler)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out)
}

type brokenMeterProvider struct {
	noop.MeterProvider
}

func (brokenMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return brokenMeter{}
}

type brokenMeter struct {
	noop.Meter
}

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("instrument rejected")
}

func TestMetrics_InstrumentErrorIsHandled(t *testing.T) {
	var handled []error

	original := otel.GetErrorHandler()
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		handled = append(handled, err)
	}))
	t.Cleanup(func() { otel.SetErrorHandler(original) })

	m := &Metrics{MeterProvider: brokenMeterProvider{}}

	out, err := m.Intercept(context.Background(), testInvocation(), okHandler)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out)

	require.Len(t, handled, 1)
	assert.EqualError(t, handled[0], "instrument rejected")
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Logging{Logger: zap.New(core)}
	ctx := context.Background()

	_, err := l.Intercept(ctx, testInvocation(), okHandler)
	require.NoError(t, err)

	_, err = l.Intercept(ctx, testInvocation(), failingHandler(errors.New("boom")))
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "statement executed", entries[0].Message)
	assert.Equal(t, "UserMapper.FindAll", entries[0].ContextMap()["statement_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestLogging_ZeroValue(t *testing.T) {
	_, err := Logging{}.Intercept(context.Background(), testInvocation(), okHandler)
	assert.NoError(t, err)
}
