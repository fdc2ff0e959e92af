package orm

import "context"

// Operation is the kind of statement an invocation runs.
type Operation string

const (
	// OperationQuery is a statement returning rows.
	OperationQuery Operation = "query"

	// OperationExec is a statement returning a result summary.
	OperationExec Operation = "exec"
)

// Invocation describes one statement passing through the interceptor chain.
// Interceptors may rewrite SQL and Args before calling the next handler.
type Invocation struct {
	Operation   Operation
	StatementID string
	SQL         string
	Args        []any
	SessionID   string
}

// Handler runs an invocation. For queries the result is the mapped rows
// (a slice); for execs it is a sql.Result.
type Handler func(ctx context.Context, inv *Invocation) (any, error)

// Interceptor wraps statement execution.
// Interceptors can be used for logging, metrics, tracing, auditing, etc.
type Interceptor interface {
	// Intercept is called around every statement. It must call next to run
	// the statement, or return without calling it to short-circuit.
	Intercept(ctx context.Context, inv *Invocation, next Handler) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, inv *Invocation, next Handler) (any, error)

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(ctx context.Context, inv *Invocation, next Handler) (any, error) {
	return f(ctx, inv, next)
}

// interceptorChain manages multiple interceptors.
type interceptorChain struct {
	interceptors []Interceptor
}

// newInterceptorChain creates a chain. The first interceptor is the outermost.
func newInterceptorChain(interceptors []Interceptor) *interceptorChain {
	return &interceptorChain{
		interceptors: interceptors,
	}
}

// wrap builds the handler that runs every interceptor around final.
func (c *interceptorChain) wrap(final Handler) Handler {
	h := final
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := h
		h = func(ctx context.Context, inv *Invocation) (any, error) {
			return interceptor.Intercept(ctx, inv, next)
		}
	}

	return h
}
