package audit

import (
	"context"
	"time"

	"github.com/hazyhaar/relocate/kit"
)

// Detailer is implemented by requests that can summarise themselves for
// the trail. The summary must not carry page content.
type Detailer interface {
	AuditDetail() string
}

// Middleware returns a factory of kit middlewares recording each call of
// op asynchronously.
func Middleware(l *Logger) func(op string) kit.Middleware {
	return func(op string) kit.Middleware {
		return func(next kit.Endpoint) kit.Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				start := time.Now()
				resp, err := next(ctx, req)

				e := &Entry{
					Op:         op,
					Transport:  kit.GetTransport(ctx),
					UserID:     kit.GetUserID(ctx),
					RequestID:  kit.GetRequestID(ctx),
					DurationMs: time.Since(start).Milliseconds(),
				}
				if d, ok := req.(Detailer); ok {
					e.Detail = d.AuditDetail()
				}
				if err != nil {
					e.Error = err.Error()
				}
				l.LogAsync(e)
				return resp, err
			}
		}
	}
}
