package fetch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidVideoID        = errors.New("invalid video id")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrMetadataNotFound      = errors.New("metadata not found")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrTranscriptTooShort    = fmt.Errorf("%w: too short", ErrTranscriptUnavailable)
	ErrConceptMappingFailed  = errors.New("concept mapping failed")
)

// StatusError records a non-2xx answer of a collaborator. It only ends up in
// logs.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}
