package api

import (
	"net/http"
	"restock-route-service/internal/platform/obs"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// loggingMiddleware tags the request with an ID and logs its outcome.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(obs.WithRequestID(r.Context(), reqID)))

		log.Info().
			Str("req_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Int64("dur_ms", time.Since(start).Milliseconds()).
			Msg("request")
	})
}
