package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies transport failures for the retry policy.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindConnection   ErrorKind = "connection"
	KindRedirectLoop ErrorKind = "redirect_loop"
	KindOther        ErrorKind = "other"
)

// errTooManyRedirects marks a fetch aborted by the redirect cap.
var errTooManyRedirects = errors.New("too many redirects")

// NetError is a transport-level fetch failure. HTTP status codes are
// never represented as a NetError; a completed exchange is data.
type NetError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

// ExhaustedError reports that every allowed attempt failed at the
// transport layer. LastErr is the failure of the final attempt.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// classify maps a transport error onto an ErrorKind.
func classify(err error) ErrorKind {
	if errors.Is(err, errTooManyRedirects) {
		return KindRedirectLoop
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	return KindOther
}
