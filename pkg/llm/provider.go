package llm

import (
	"context"
)

// Provider defines the interface for interacting with the text-generation backend.
type Provider interface {
	// GenerateText sends a prompt and returns the text response.
	// Errors are classified; see IsRateLimited and IsTransient.
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// GenerateImage renders an accompanying image for a prompt and returns
	// the raw image bytes.
	GenerateImage(ctx context.Context, name, prompt string) ([]byte, error)

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// HasProfile checks if the provider has a specific profile configured.
	HasProfile(name string) bool
}
