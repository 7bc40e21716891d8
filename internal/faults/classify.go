package faults

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"
)

// Classify maps an arbitrary failure to a fault. A recognized typed fault is
// returned verbatim, its declared kind and retryability untouched. Untyped
// errors are matched heuristically against their message, in priority order:
// auth, rate limit, network/timeout, validation, then a retryable network
// default for anything unrecognized.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, KindTimeout, "operation timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(err, KindTimeout, "network operation timed out")
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return Wrap(err, KindFileSystem, "file system operation failed").
			With("path", pathErr.Path)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "invalid token", "authentication failed"):
		return Wrap(err, KindAuth, "authentication rejected by remote")

	case containsAny(msg, "429", "rate limit", "too many requests", "quota exceeded"):
		return Wrap(err, KindRateLimit, "remote rate limit hit")

	case containsAny(msg, "timeout", "timed out", "etimedout", "deadline exceeded"):
		return Wrap(err, KindTimeout, "operation timed out")

	case containsAny(msg, "500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable",
		"econnreset", "enotfound", "econnrefused",
		"connection reset", "connection refused", "no such host", "network"):
		return Wrap(err, KindNetwork, "transient network failure")

	case containsAny(msg, "400", "bad request", "validation", "malformed"):
		return Wrap(err, KindValidation, "remote rejected the request as invalid")

	case containsAny(msg, "404", "not found"):
		return Wrap(err, KindAPI, "remote resource not found")
	}

	// Unknown failures are treated as transient so the retry budget gets a
	// chance to ride out blips we have no signature for.
	return Wrap(err, KindNetwork, "unclassified failure, assuming transient")
}

// IsRetryable reports whether the error, after classification, may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// KindOf returns the classified kind of an error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// FromHTTPStatus maps a non-2xx HTTP response to a fault. retryAfter comes from
// the Retry-After header when the server supplied one.
func FromHTTPStatus(status int, url string, retryAfter time.Duration) *Fault {
	var f *Fault
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		f = Newf(KindAuth, "remote returned %d", status)
	case status == http.StatusTooManyRequests:
		f = Newf(KindRateLimit, "remote returned %d", status).WithRetryAfter(retryAfter)
	case status == http.StatusRequestTimeout:
		f = Newf(KindTimeout, "remote returned %d", status)
	case status >= 500:
		f = Newf(KindAPI, "remote returned %d", status).WithRetryable(true)
	case status == http.StatusBadRequest:
		f = Newf(KindValidation, "remote returned %d", status)
	default:
		f = Newf(KindAPI, "remote returned %d", status)
	}
	return f.With("status", status).With("url", url)
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
