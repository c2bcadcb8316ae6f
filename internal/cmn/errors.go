package cmn

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Error kinds, per the request-fulfillment error-handling design:
// configuration and index errors are fatal and propagate to the caller;
// transient I/O, not-found/ambiguous, and authoritative-unavailability
// errors are caught locally by the resolver/cache and folded into Request
// status and message.
type (
	// ConfigError reports a structural or semantic problem discovered while
	// validating the catalog, archive set, or scheduler configuration.
	ConfigError struct {
		Section string
		Msg     string
	}

	// RetryableError is a transient per-fetch failure (network timeout,
	// HTTP 5xx, FTP login refused, ...) carrying a suggested next-attempt
	// time. The archive variants set it to one minute after the failure;
	// it is not bounded by the request's fail_time.
	RetryableError struct {
		Archive   string
		Cause     error
		RetryTime time.Time
	}

	// NotFoundError reports that a wildcard resolved to zero files.
	NotFoundError struct {
		Path, Pattern string
	}

	// AmbiguousError reports that a wildcard resolved to more than one file.
	AmbiguousError struct {
		Path, Pattern string
		Matches       []string
	}

	// IndexError wraps a failure of the cache's persistent index. It is
	// fatal to the operation in progress and must propagate rather than be
	// silently absorbed, since durability cannot otherwise be guaranteed.
	IndexError struct {
		Op    string
		Cause error
	}

	// AbortedError reports that an in-flight operation was cancelled via a
	// stop channel or context.
	AbortedError struct {
		What string
	}

	// CodecError reports a failed compress/decompress stage during
	// pipeline conversion (§4.3). Treated as retryable by the archive
	// layer: a codec failure on one file aborts the current candidate
	// without being fatal to the Request.
	CodecError struct {
		Op, Codec string
		Cause     error
	}
)

func NewConfigError(section, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Section: section, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Section, e.Msg)
}

func NewRetryableError(archive string, cause error, retryTime time.Time) *RetryableError {
	return &RetryableError{Archive: archive, Cause: cause, RetryTime: retryTime}
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: transient failure (retry at %s): %v", e.Archive, e.RetryTime.Format(time.RFC3339), e.Cause)
}
func (e *RetryableError) Unwrap() error { return e.Cause }

func NewNotFoundError(path, pattern string) *NotFoundError {
	return &NotFoundError{Path: path, Pattern: pattern}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no file in %q matches %q", e.Path, e.Pattern)
}

func NewAmbiguousError(path, pattern string, matches []string) *AmbiguousError {
	return &AmbiguousError{Path: path, Pattern: pattern, Matches: matches}
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d files in %q match %q: %v", len(e.Matches), e.Path, e.Pattern, e.Matches)
}

func NewIndexError(op string, cause error) *IndexError {
	return &IndexError{Op: op, Cause: errors.WithStack(cause)}
}

func (e *IndexError) Error() string  { return fmt.Sprintf("index error during %s: %v", e.Op, e.Cause) }
func (e *IndexError) Unwrap() error  { return e.Cause }

func NewAbortedError(what string) *AbortedError { return &AbortedError{What: what} }
func (e *AbortedError) Error() string            { return e.What + " aborted" }

func NewCodecError(op, codec string, cause error) *CodecError {
	return &CodecError{Op: op, Codec: codec, Cause: errors.WithStack(cause)}
}
func (e *CodecError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Op, e.Codec, e.Cause)
}
func (e *CodecError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err (or any error it wraps) is a
// RetryableError, not-found, or ambiguous failure - the three kinds the
// resolver treats as "this archive can't serve this request right now"
// rather than fatal.
func IsRetryable(err error) bool {
	var re *RetryableError
	var nf *NotFoundError
	var ae *AmbiguousError
	var ce *CodecError
	return errors.As(err, &re) || errors.As(err, &nf) || errors.As(err, &ae) || errors.As(err, &ce)
}
