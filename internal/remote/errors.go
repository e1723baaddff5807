package remote

import "fmt"

// NetworkError indicates a request never produced an HTTP response
// (DNS failure, refused connection, timeout). Transient: queued writes
// that hit one are retried on the next online transition.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError indicates the remote answered with a non-2xx status.
// Permanent: a queued write rejected this way is abandoned, not
// retried.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error during %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}
