// Package interceptors provides statement interceptors for batis sessions.
//
// Every interceptor is usable as its zero value, so it can be bound by type
// with Binder.AddInterceptorsClasses:
//
//	b.AddInterceptorsClasses(
//	    reflect.TypeOf(interceptors.Tracing{}),
//	    reflect.TypeOf(interceptors.Metrics{}),
//	    reflect.TypeOf(interceptors.Logging{}),
//	)
package interceptors

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/batis/orm"
)

const instrumentationName = "github.com/xraph/batis"

// Tracing starts an OpenTelemetry span around every statement.
type Tracing struct {
	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider
}

// Intercept implements orm.Interceptor.
func (t Tracing) Intercept(ctx context.Context, inv *orm.Invocation, next orm.Handler) (any, error) {
	provider := t.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	ctx, span := provider.Tracer(instrumentationName).Start(ctx, spanName(inv),
		trace.WithAttributes(statementAttributes(inv)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	out, err := next(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return out, err
}

func spanName(inv *orm.Invocation) string {
	if inv.StatementID != "" {
		return "batis." + string(inv.Operation) + " " + inv.StatementID
	}

	return "batis." + string(inv.Operation)
}

func statementAttributes(inv *orm.Invocation) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.operation", string(inv.Operation)),
		attribute.String("db.statement", inv.SQL),
		attribute.String("batis.statement_id", inv.StatementID),
		attribute.String("batis.session_id", inv.SessionID),
	}
}
