// Package errs provides the typed errors the viewer API responds with.
package errs

import "errors"

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted carries an error through a request with the HTTP status the
// client should see. Handlers use it for expected failures whose message
// is safe to return.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the service's logs.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// IsTrusted checks whether a Trusted error exists in the chain.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted extracts the Trusted error from the chain, or nil.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}

	return t
}
