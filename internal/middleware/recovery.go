package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/kubegate/kubegate/internal/errors"
	"github.com/kubegate/kubegate/internal/logging"
)

// RecoveryConfig configures the recovery middleware
type RecoveryConfig struct {
	// Development includes panic details and the stack trace in the
	// response envelope
	Development bool
	// LogFunc is called when a panic occurs
	LogFunc func(err interface{}, stack []byte)
}

func defaultLogFunc(err interface{}, stack []byte) {
	logging.Error("Panic recovered",
		zap.Any("error", err),
		zap.ByteString("stack", stack),
	)
}

// Recovery creates a panic recovery middleware. A panicking request is
// answered with the same gateway error envelope as an upstream failure.
func Recovery(development bool) Middleware {
	return RecoveryWithConfig(RecoveryConfig{
		Development: development,
		LogFunc:     defaultLogFunc,
	})
}

// RecoveryWithConfig creates a recovery middleware with custom config
func RecoveryWithConfig(cfg RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					if cfg.LogFunc != nil {
						cfg.LogFunc(err, stack)
					}

					gwErr := errors.ErrGateway
					if reqID := GetRequestID(r); reqID != "" {
						gwErr = gwErr.WithRequestID(reqID)
					}
					if cfg.Development {
						gwErr = gwErr.
							WithDetails(fmt.Sprintf("panic: %v", err)).
							WithStack(string(stack))
					}
					gwErr.WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
