package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

// SlowRequestThreshold raises the access log level to warning.
const SlowRequestThreshold = 5 * time.Second

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Logging writes one access log record per request and turns a handler
// panic into a 500 response.
func Logging(log *slog.Logger) Middleware {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					log.ErrorContext(r.Context(), "handler panic",
						logger.Error(fmt.Errorf("panic: %v", v)),
						slog.String("stack", string(debug.Stack())))
					if sw.status == 0 {
						http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}

				status := sw.status
				if status == 0 {
					status = http.StatusOK
				}
				elapsed := time.Since(start)
				level := slog.LevelInfo
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400, elapsed > SlowRequestThreshold:
					level = slog.LevelWarn
				}
				log.LogAttrs(r.Context(), level, "request",
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.StatusCode(status),
					logger.ClientIP(RequestClientIP(r)),
					slog.Int("bytes", sw.size),
					logger.Duration(elapsed))
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
