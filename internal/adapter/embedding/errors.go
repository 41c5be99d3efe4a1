package embedding

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned before any network call when no API key is set.
var ErrMissingCredential = errors.New("embedding API key not configured")

// ErrDimensionMismatch is returned when two vectors of different length are compared.
var ErrDimensionMismatch = errors.New("vectors must have same dimensions")

// Reason classifies a ProviderError.
type Reason string

const (
	// ReasonUpstream means the provider answered with an error or an unusable body.
	ReasonUpstream Reason = "upstream"

	// ReasonTransport means the request never completed (network, timeout).
	ReasonTransport Reason = "transport"
)

// ProviderError describes a failed call to the embeddings endpoint.
type ProviderError struct {
	Reason     Reason
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Reason == ReasonTransport:
		return fmt.Sprintf("embedding request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("embedding API error: %s: %v", e.Detail, e.Err)
	default:
		return fmt.Sprintf("embedding API error: %s", e.Detail)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
