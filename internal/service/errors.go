package service

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TimeoutError marks an upstream call that exceeded its connect or total
// budget. The Failure Mapper turns it into HTTP 504 before streaming starts,
// or an inline SSE error event after.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("upstream timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectError marks any non-timeout transport failure on the way to the
// upstream (DNS, TCP, TLS, connection reset). Mapped to HTTP 502 before
// streaming starts, or an inline SSE error event after.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("upstream connection failed: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// ClassifyUpstreamError sorts a transport error into the proxy's taxonomy.
// Deadline and net timeouts become TimeoutError; everything else, including
// a canceled inbound context (client gone), becomes ConnectError.
func ClassifyUpstreamError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &ConnectError{Err: err}
}

// IsTimeout reports whether err is a TimeoutError anywhere in its chain.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
