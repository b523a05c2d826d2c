// Package adaptor defines the vendor-neutral generation capability interface
// and the registry/resolver machinery that turns a configured adaptor id and
// model id into a ready instance.
package adaptor

import (
	"context"
	"fmt"
	"time"

	"creatorlab/internal/domain"
)

// Usage reports token accounting for one text generation call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// GenerationConfig carries the provider knobs passed at instantiation time.
// Pointers distinguish "unset" from zero values (IGRINI-style).
type GenerationConfig struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Validate performs structural and range validation with no network calls.
func (c GenerationConfig) Validate() error {
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0,2]", *c.Temperature)
	}
	if c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1) {
		return fmt.Errorf("top_p %v out of range [0,1]", *c.TopP)
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens %d must be positive", *c.MaxTokens)
	}
	return nil
}

// Credentials are environment-supplied per-vendor secrets. The core treats
// them as opaque beyond presence checks.
type Credentials struct {
	APIKey        string
	KeyFilePath   string
	StorageBucket string
	BaseURL       string
}

// TextRequest is a resolved prompt pair ready for a text generation call.
type TextRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// TextResult carries the generated text plus token usage.
type TextResult struct {
	Text  string
	Usage Usage
}

// ImageRequest describes one image generation call. Reference image URLs are
// fetched and encoded by the adaptor; a fetch failure for any single
// reference is skipped, not fatal.
type ImageRequest struct {
	Prompt             string
	AspectRatio        string
	ReferenceImageURLs []string
}

// ImageResult is a generated image. URL may be a data URI for providers that
// return inline bytes; the orchestrator rewrites those to durable URLs.
type ImageResult struct {
	URL    string
	Format string
}

// VideoRequest describes one video synthesis call.
type VideoRequest struct {
	Prompt     string
	Duration   int
	Resolution string
}

// VideoResult is a finished video. Adaptors own the provider's async shape:
// by the time this returns, the underlying operation has reached a terminal
// state.
type VideoResult struct {
	URL        string
	Duration   int
	Resolution string
}

// Health is the outcome of a monitoring probe. Never used for correctness
// gating, so it carries a status instead of an error.
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Detail  string        `json:"detail,omitempty"`
}

// Adaptor is the capability interface every vendor binding implements. A
// capability the vendor does not support returns a ProviderError wrapping
// ErrUnsupported-style detail; callers select adaptors by capability first.
type Adaptor interface {
	ID() string
	ModelID() string
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error)
	ValidateConfig(cfg GenerationConfig) error
	HealthCheck(ctx context.Context) Health
	EstimateCost(inputTokens, outputTokens int) float64
}

// Constructor builds a concrete adaptor for one model. Registered once per
// adaptor id at process start.
type Constructor func(modelID string, creds Credentials, cfg GenerationConfig) (Adaptor, error)

// Unsupported is a convenience for adaptors that lack a capability.
func Unsupported(adaptorID, op string) error {
	return &domain.ProviderError{
		AdaptorID: adaptorID,
		Op:        op,
		Cause:     fmt.Errorf("capability not supported"),
	}
}
