package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestTimer reports the handler duration in the X-Response-Time header.
// The header is set just before the status line goes out.
func RequestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &timedWriter{
			WrapResponseWriter: middleware.NewWrapResponseWriter(w, r.ProtoMajor),
			start:              start,
		}
		next.ServeHTTP(ww, r)
		if !ww.stamped {
			ww.stamp()
		}
	})
}

type timedWriter struct {
	middleware.WrapResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	w.stamped = true
	w.Header().Set(HeaderResponseTime, time.Since(w.start).String())
}

func (w *timedWriter) WriteHeader(code int) {
	if !w.stamped {
		w.stamp()
	}
	w.WrapResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	if !w.stamped {
		w.stamp()
	}
	return w.WrapResponseWriter.Write(b)
}
