package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xraph/batis/orm"
)

// Logging logs every statement at debug level and failures at warn level.
type Logging struct {
	// Logger defaults to zap.L().
	Logger *zap.Logger
}

// Intercept implements orm.Interceptor.
func (l Logging) Intercept(ctx context.Context, inv *orm.Invocation, next orm.Handler) (any, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.L()
	}

	start := time.Now()
	out, err := next(ctx, inv)

	fields := []zap.Field{
		zap.String("operation", string(inv.Operation)),
		zap.String("statement_id", inv.StatementID),
		zap.String("sql", inv.SQL),
		zap.Int("args", len(inv.Args)),
		zap.String("session_id", inv.SessionID),
		zap.Duration("elapsed", time.Since(start)),
	}

	if err != nil {
		logger.Warn("statement failed", append(fields, zap.Error(err))...)

		return out, err
	}

	logger.Debug("statement executed", fields...)

	return out, nil
}
