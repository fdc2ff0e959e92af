package interceptors

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/batis/orm"
)

// Metrics records statement counts, errors and latency with OpenTelemetry.
// Instruments are created on first use; when that fails statements run
// unmeasured.
type Metrics struct {
	// MeterProvider overrides the global meter provider.
	MeterProvider metric.MeterProvider

	once        sync.Once
	instruments *statementInstruments
}

type statementInstruments struct {
	statements metric.Int64Counter
	errors     metric.Int64Counter
	latency    metric.Float64Histogram
}

func newStatementInstruments(provider metric.MeterProvider) (*statementInstruments, error) {
	meter := provider.Meter(instrumentationName)

	statements, err := meter.Int64Counter("batis.statements",
		metric.WithDescription("Number of statements executed"),
	)
	if err != nil {
		return nil, err
	}

	errors, err := meter.Int64Counter("batis.statement.errors",
		metric.WithDescription("Number of failed statements"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("batis.statement.latency_ms",
		metric.WithDescription("Statement latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &statementInstruments{
		statements: statements,
		errors:     errors,
		latency:    latency,
	}, nil
}

// Intercept implements orm.Interceptor.
func (m *Metrics) Intercept(ctx context.Context, inv *orm.Invocation, next orm.Handler) (any, error) {
	m.once.Do(func() {
		provider := m.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}

		instruments, err := newStatementInstruments(provider)
		if err != nil {
			otel.Handle(err)

			return
		}

		m.instruments = instruments
	})

	if m.instruments == nil {
		return next(ctx, inv)
	}

	start := time.Now()
	out, err := next(ctx, inv)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(
		attribute.String("operation", string(inv.Operation)),
		attribute.String("statement_id", inv.StatementID),
	)

	m.instruments.statements.Add(ctx, 1, attrs)
	m.instruments.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if err != nil {
		m.instruments.errors.Add(ctx, 1, attrs)
	}

	return out, err
}
