package mid

import (
	"expvar"
	"net/http"
	"runtime"
)

// Counters published on the debug endpoint's /debug/vars route.
var (
	goroutines = expvar.NewInt("goroutines")
	requests   = expvar.NewInt("requests")
	panics     = expvar.NewInt("panics")
)

// Metrics updates the request counters the debug endpoint exposes.
func Metrics() func(http.Handler) http.Handler {

	// This is the actual middleware function to be executed.
	m := func(handler http.Handler) http.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)

			// Sampling the goroutine count on every request would be
			// too expensive.
			if requests.Value()%100 == 0 {
				goroutines.Set(int64(runtime.NumGoroutine()))
			}

			// Call the next handler.
			handler.ServeHTTP(w, r)
		}

		return http.HandlerFunc(h)
	}

	return m
}
