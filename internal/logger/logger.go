package logger

import (
	"net/http"
	"os"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global zerolog logger at the given level.
// Unknown or empty levels fall back to info.
func InitLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger().
		Level(lvl)
}

// RequestLogger logs one line per HTTP call with request and response metadata.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := NewResponseWriter(w)

		next.ServeHTTP(ww, r)

		event := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}

		if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}

		event.
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", ww.Status()).
			Int("size", ww.Size()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})
}

// ResponseWriter wraps http.ResponseWriter to capture status code and size.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// NewResponseWriter creates a ResponseWriter wrapper.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Status returns the captured HTTP status code.
func (rw *ResponseWriter) Status() int {
	return rw.statusCode
}

// Size returns the total number of bytes written to the response.
func (rw *ResponseWriter) Size() int {
	return rw.size
}
