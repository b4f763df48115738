package mid

import "net/http"

// Wrap applies the middleware to the handler in order, so the first
// middleware listed is the outermost.
func Wrap(handler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}

	return handler
}
