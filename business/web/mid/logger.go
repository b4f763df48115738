package mid

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger writes some information about the request to the logs. Both lines
// share a trace id so they can be matched up.
func Logger(log *zap.SugaredLogger) func(http.Handler) http.Handler {

	// This is the actual middleware function to be executed.
	m := func(handler http.Handler) http.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(w http.ResponseWriter, r *http.Request) {
			traceID := uuid.NewString()
			now := time.Now()

			log.Infow("request started", "traceid", traceID, "method", r.Method, "path", r.URL.Path,
				"remoteaddr", r.RemoteAddr)

			// Call the next handler.
			handler.ServeHTTP(w, r)

			log.Infow("request completed", "traceid", traceID, "method", r.Method, "path", r.URL.Path,
				"remoteaddr", r.RemoteAddr, "since", time.Since(now))
		}

		return http.HandlerFunc(h)
	}

	return m
}
