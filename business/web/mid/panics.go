package mid

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Panics recovers from panics inside a handler, reports them, and keeps
// the service running.
func Panics(log *zap.SugaredLogger) func(http.Handler) http.Handler {

	// This is the actual middleware function to be executed.
	m := func(handler http.Handler) http.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					trace := debug.Stack()
					log.Errorw("PANIC", "path", r.URL.Path, "message", rec, "stack", string(trace))

					panics.Add(1)

					w.WriteHeader(http.StatusInternalServerError)
				}
			}()

			// Call the next handler.
			handler.ServeHTTP(w, r)
		}

		return http.HandlerFunc(h)
	}

	return m
}
