package wordpress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransportExhausted is returned when every transport of the fallback
	// chain failed for one request.
	ErrTransportExhausted = errors.New("all transports exhausted")
	// ErrMalformedResponse marks a body that is not JSON shaped or does not
	// match the expected response schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// Attempt records the outcome of one transport of the fallback chain.
type Attempt struct {
	Method Method
	Status int
	Err    error
}

func (a Attempt) String() string {
	if a.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", a.Method, a.Status, a.Err)
	}
	return fmt.Sprintf("%s: %v", a.Method, a.Err)
}

// TransportError is returned by Client.FetchJSON when the whole chain failed.
type TransportError struct {
	URL           string
	Authenticated bool
	Attempts      []Attempt
	Skipped       []Method
}

// AuthRejected reports whether the failure most likely comes from rejected
// credentials rather than connectivity. Authenticated requests never reach
// the header stripping relay, so a failure of every remaining transport
// points at the credentials.
func (e *TransportError) AuthRejected() bool {
	if !e.Authenticated {
		return false
	}
	for _, a := range e.Attempts {
		if a.Status == http.StatusUnauthorized || a.Status == http.StatusForbidden {
			return true
		}
	}
	return len(e.Attempts) >= 2
}

// Methods returns the attempted transports in order.
func (e *TransportError) Methods() []Method {
	methods := make([]Method, len(e.Attempts))
	for i, a := range e.Attempts {
		methods[i] = a.Method
	}
	return methods
}

func (e *TransportError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	reason := "connection failed"
	if e.AuthRejected() {
		reason = "authentication likely rejected"
	}
	return fmt.Sprintf("fetch %s: %s: %s [%s]", e.URL, ErrTransportExhausted, reason, strings.Join(parts, "; "))
}

// Unwrap exposes ErrTransportExhausted and every attempt error to errors.Is.
func (e *TransportError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrTransportExhausted)
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
