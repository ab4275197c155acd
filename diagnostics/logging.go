package diagnostics

import (
	"go.uber.org/zap"

	"github.com/centraunit/digo"
)

// Logging returns a request-start stage that logs each request at debug
// level and failures of outermost requests at error level.
func Logging(logger *zap.Logger) digo.ResolveMiddleware {
	return digo.NewMiddleware("Logging", digo.PhaseRequestStart,
		func(ctx *digo.ResolveRequestContext, next func(*digo.ResolveRequestContext) error) error {
			fields := []zap.Field{
				zap.String("service", ctx.Service.Description()),
				zap.Stringer("registration", ctx.Registration.ID()),
				zap.Int("depth", ctx.Depth()),
			}
			err := next(ctx)
			if err != nil {
				if ctx.Depth() == 1 {
					logger.Error("resolve failed", append(fields, zap.Error(err))...)
				}
				return err
			}
			logger.Debug("resolved", append(fields, zap.Bool("new_instance", ctx.NewInstanceActivated()))...)
			return nil
		})
}
