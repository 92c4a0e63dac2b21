package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID tags ctx so Time can correlate operations of one request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Time logs the duration of an operation; call the returned func via defer
// with a pointer to the named error result.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Warn().
				Str("req_id", reqID).
				Str("op", name).
				Int64("dur_ms", dur.Milliseconds()).
				Err(*errp).
				Msg("operation failed")
			return
		}
		log.Debug().
			Str("req_id", reqID).
			Str("op", name).
			Int64("dur_ms", dur.Milliseconds()).
			Msg("operation done")
	}
}
