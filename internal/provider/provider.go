// Package provider defines the uniform capability contract for external
// language-model services. The pipeline only ever sees this interface; which
// vendor sits behind a role is wiring decided at startup.
package provider

import (
	"context"
	"errors"
)

// Role selects generation parameters for a call without changing the
// interface shape.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleExecutor Role = "executor"
	RoleReviewer Role = "reviewer"
)

// Temperature returns the sampling temperature for a role: planning wants
// determinism, review wants a critical eye with more spread.
func (r Role) Temperature() float64 {
	switch r {
	case RolePlanner:
		return 0.3
	case RoleReviewer:
		return 0.9
	default:
		return 0.7
	}
}

// Classified failure modes of a provider call.
var (
	// ErrRateLimited means the provider rejected the call for quota reasons;
	// retryable after backoff.
	ErrRateLimited = errors.New("provider: rate limited")

	// ErrProvider covers transport failures, timeouts and provider-side
	// errors; retryable.
	ErrProvider = errors.New("provider: upstream error")

	// ErrAuth means the provider rejected the configured credentials.
	ErrAuth = errors.New("provider: authentication failed")

	// ErrUnavailable means no credentials are configured at all. Permanent
	// for the current call; callers substitute a labeled fallback instead
	// of retrying.
	ErrUnavailable = errors.New("provider: not configured")

	// ErrUnknown is the catch-all for unclassified failures.
	ErrUnknown = errors.New("provider: unknown error")
)

// Service is the uniform interface wrapping one external model provider.
type Service interface {
	// Generate produces text for a prompt. The role tunes generation
	// parameters only; the call shape is identical for all roles.
	Generate(ctx context.Context, prompt string, role Role) (string, error)

	// Name identifies the provider for logging and health reporting.
	Name() string
}

// Settings configures a provider client. An empty APIKey produces a client
// whose calls fail with ErrUnavailable.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
}
