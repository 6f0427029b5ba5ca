package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrValidation            = errors.New("validation failed")
	ErrUpstreamTimeout       = errors.New("upstream timeout")
	ErrAllParticipantsFailed = errors.New("all participants failed")
	ErrArbiterFailed         = errors.New("arbiter failed")
	ErrInternal              = errors.New("internal error")
)

// UpstreamError carries the provider's HTTP status code verbatim for
// diagnostics. User-facing surfaces must not leak the raw body.
type UpstreamError struct {
	Code int
	Body string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// IsUpstream reports whether err is any provider-side failure (timeout or
// non-success status).
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.Is(err, ErrUpstreamTimeout) || errors.As(err, &ue)
}
