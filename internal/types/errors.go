package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned (wrapped) by strategies, the extractor and the resolver.
var (
	ErrUnknownGenre           = errors.New("unknown genre")
	ErrNotFound               = errors.New("not found")
	ErrTimeout                = errors.New("timeout")
	ErrUpstream               = errors.New("upstream error")
	ErrParse                  = errors.New("parse error")
	ErrEnvironmentUnsupported = errors.New("environment unsupported")
)

// ErrorKind is the caller-visible classification of a failed scrape
type ErrorKind int

const (
	KindUpstreamError ErrorKind = iota
	KindUnknownGenre
	KindNotFound
	KindTimeout
	KindParseError
	KindEnvironmentUnsupported
)

// String returns the stable error code of the kind
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownGenre:
		return "unknown_genre"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindParseError:
		return "parse_error"
	case KindEnvironmentUnsupported:
		return "environment_unsupported"
	default:
		return "upstream_error"
	}
}

// HTTPStatus maps the kind to the single response status used for it
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnknownGenre:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindParseError:
		return http.StatusInternalServerError
	case KindEnvironmentUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

// Retryable reports whether a caller may safely repeat the request
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindUpstreamError
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnknownGenre:
		return ErrUnknownGenre
	case KindNotFound:
		return ErrNotFound
	case KindTimeout:
		return ErrTimeout
	case KindParseError:
		return ErrParse
	case KindEnvironmentUnsupported:
		return ErrEnvironmentUnsupported
	default:
		return ErrUpstream
	}
}

// ScrapeError is the only error type that leaves the orchestrator
type ScrapeError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *ScrapeError) Error() string {
	if e.Detail == "" {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.sentinel(), e.Detail)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Is matches the sentinel error of the kind, so errors.Is(err, ErrNotFound) holds
// for a classified NotFound regardless of what it wraps.
func (e *ScrapeError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Classify translates any error into a ScrapeError
func Classify(err error) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}

	kind := KindUpstreamError
	switch {
	case errors.Is(err, ErrUnknownGenre):
		kind = KindUnknownGenre
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, ErrParse):
		kind = KindParseError
	case errors.Is(err, ErrEnvironmentUnsupported):
		kind = KindEnvironmentUnsupported
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = KindTimeout
	}
	return &ScrapeError{Kind: kind, Detail: err.Error(), Err: err}
}
