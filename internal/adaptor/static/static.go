// Package static provides a deterministic offline adaptor. It serves local
// development and integration tests where no vendor credentials exist: the
// same prompt always yields the same output, no network is touched.
package static

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
)

const AdaptorID = "static"

const ModelID = "static-v1"

// Descriptor returns the static model catalog for registration. The single
// model claims every capability so a full pipeline can run offline.
func Descriptor() adaptor.Descriptor {
	return adaptor.Descriptor{
		ID: AdaptorID,
		Capabilities: []domain.Capability{
			domain.CapabilityText,
			domain.CapabilityImage,
			domain.CapabilityVideo,
		},
		Models: []adaptor.ModelInfo{
			{
				ID:              ModelID,
				ContextWindow:   32_768,
				MaxOutputTokens: 8_192,
				Capabilities: []domain.Capability{
					domain.CapabilityText,
					domain.CapabilityImage,
					domain.CapabilityVideo,
				},
			},
		},
	}
}

var themes = []string{"Signature", "Classic", "Premium", "Artisan", "Modern", "Heritage"}

// NewConstructor returns the adaptor.Constructor registered for AdaptorID.
// Credentials are ignored; there is nothing to authenticate against.
func NewConstructor() adaptor.Constructor {
	return func(modelID string, _ adaptor.Credentials, cfg adaptor.GenerationConfig) (adaptor.Adaptor, error) {
		return &Adaptor{modelID: modelID, cfg: cfg}, nil
	}
}

// Adaptor derives every response from a digest of the prompt, so output is
// stable across runs and hosts.
type Adaptor struct {
	modelID string
	cfg     adaptor.GenerationConfig
}

func (a *Adaptor) ID() string      { return AdaptorID }
func (a *Adaptor) ModelID() string { return a.modelID }

func (a *Adaptor) ValidateConfig(cfg adaptor.GenerationConfig) error {
	return cfg.Validate()
}

// EstimateCost is always zero; nothing is billed.
func (a *Adaptor) EstimateCost(inputTokens, outputTokens int) float64 { return 0 }

type idea struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// GenerateText emits a JSON array of three ideas derived from the prompt.
func (a *Adaptor) GenerateText(ctx context.Context, req adaptor.TextRequest) (*adaptor.TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := promptSeed(req.SystemPrompt + "\n" + req.UserPrompt)
	subject := promptSubject(req.UserPrompt)
	titler := cases.Title(language.Und)

	ideas := make([]idea, 3)
	for i := range ideas {
		theme := themes[(seed+uint64(i))%uint64(len(themes))]
		ideas[i] = idea{
			Title:       fmt.Sprintf("%s %s", titler.String(subject), theme),
			Description: fmt.Sprintf("A %s take on %s.", strings.ToLower(theme), subject),
			Keywords:    []string{strings.ToLower(theme), subject},
		}
	}

	raw, err := json.Marshal(ideas)
	if err != nil {
		return nil, err
	}

	text := string(raw)
	words := len(strings.Fields(req.SystemPrompt)) + len(strings.Fields(req.UserPrompt))
	return &adaptor.TextResult{
		Text: text,
		Usage: adaptor.Usage{
			InputTokens:  words,
			OutputTokens: len(strings.Fields(text)),
			TotalTokens:  words + len(strings.Fields(text)),
		},
	}, nil
}

// GenerateImage returns a synthetic asset URL keyed by the prompt digest.
func (a *Adaptor) GenerateImage(ctx context.Context, req adaptor.ImageRequest) (*adaptor.ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := promptSeed(req.Prompt + "|" + req.AspectRatio)
	return &adaptor.ImageResult{
		URL:    fmt.Sprintf("https://cdn.example.com/static/%016x.png", seed),
		Format: "image/png",
	}, nil
}

// GenerateVideo returns a synthetic asset URL keyed by the prompt digest.
func (a *Adaptor) GenerateVideo(ctx context.Context, req adaptor.VideoRequest) (*adaptor.VideoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 8
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = "720p"
	}
	seed := promptSeed(req.Prompt)
	return &adaptor.VideoResult{
		URL:        fmt.Sprintf("https://cdn.example.com/static/%016x.mp4", seed),
		Duration:   duration,
		Resolution: resolution,
	}, nil
}

// HealthCheck always reports healthy.
func (a *Adaptor) HealthCheck(ctx context.Context) adaptor.Health {
	return adaptor.Health{Healthy: true, Latency: time.Millisecond}
}

func promptSeed(s string) uint64 {
	digest := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint64(digest[:8])
}

// promptSubject picks a short subject phrase from the prompt tail, where
// resolved variable values usually land.
func promptSubject(prompt string) string {
	fields := strings.Fields(prompt)
	if len(fields) == 0 {
		return "content"
	}
	start := len(fields) - 3
	if start < 0 {
		start = 0
	}
	return strings.ToLower(strings.Join(fields[start:], " "))
}
