package errors

// Network helpers for mapping net/syscall errors to project ErrorCode and retry semantics

import (
	stderrs "errors"
	"io"
	"net"
	"os"
	"syscall"
)

// FromNet maps a raw network error onto our taxonomy, keeping the original as the cause
// op is free-form ("listen", "read", "dial") and ends up in Op()
func FromNet(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return WithOp(err, op)
	}

	var code ErrorCode
	var msg string
	var addrErr *net.AddrError
	var dnsErr *net.DNSError
	var parseErr *net.ParseError
	var ne net.Error

	switch {
	case stderrs.Is(err, syscall.EADDRINUSE):
		code, msg = ErrorCodeUnavailable, "address already in use"
	case stderrs.Is(err, syscall.EADDRNOTAVAIL):
		code, msg = ErrorCodeUnavailable, "address not available"
	case stderrs.Is(err, syscall.ECONNREFUSED):
		code, msg = ErrorCodeUnavailable, "connection refused"
	case stderrs.Is(err, syscall.EACCES), stderrs.Is(err, os.ErrPermission):
		code, msg = ErrorCodeUnavailable, "permission denied"
	case stderrs.As(err, &addrErr), stderrs.As(err, &parseErr), stderrs.As(err, &dnsErr):
		code, msg = ErrorCodeInvalidArgument, "invalid address"
	case stderrs.Is(err, io.ErrUnexpectedEOF):
		code, msg = ErrorCodeTruncated, "stream ended mid-frame"
	case stderrs.As(err, &ne) && ne.Timeout():
		code, msg = ErrorCodeIO, "i/o timeout"
	default:
		code, msg = ErrorCodeIO, "network error"
	}
	return &Error{code: code, msg: op + ": " + msg, op: op, orig: err}
}

// IsClosed reports whether err is the result of using a closed listener/conn
func IsClosed(err error) bool { return stderrs.Is(err, net.ErrClosed) }

// IsRetryable reports whether a retry may succeed (refused/unavailable, timeouts)
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCode(err, ErrorCodeUnavailable) && !stderrs.Is(err, syscall.EACCES) {
		return true
	}
	var ne net.Error
	return stderrs.As(err, &ne) && ne.Timeout()
}

// Retryable reports whether the error is retryable. Delegates to the network helpers above
func Retryable(err error) bool { return IsRetryable(err) }
