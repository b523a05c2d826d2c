// Package gemini binds the generation capability interface to the Google
// generative language API. Text and image calls are synchronous
// generateContent invocations; video goes through the long-running
// operation flow (see video.go).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/metrics"
	"creatorlab/internal/poller"
)

// AdaptorID is the registry key for this vendor binding.
const AdaptorID = "gemini"

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
)

// Descriptor returns the static catalog registered at process start.
func Descriptor() adaptor.Descriptor {
	return adaptor.Descriptor{
		ID:           AdaptorID,
		Capabilities: []domain.Capability{domain.CapabilityText, domain.CapabilityImage, domain.CapabilityVideo},
		Models: []adaptor.ModelInfo{
			{
				ID:                "gemini-2.5-flash",
				ContextWindow:     1_048_576,
				MaxOutputTokens:   65_536,
				InputCostPerMTok:  0.30,
				OutputCostPerMTok: 2.50,
				Capabilities:      []domain.Capability{domain.CapabilityText},
			},
			{
				ID:                "gemini-2.5-pro",
				ContextWindow:     1_048_576,
				MaxOutputTokens:   65_536,
				InputCostPerMTok:  1.25,
				OutputCostPerMTok: 10.00,
				Capabilities:      []domain.Capability{domain.CapabilityText},
			},
			{
				ID:                "gemini-2.0-flash-preview-image-generation",
				ContextWindow:     32_768,
				MaxOutputTokens:   8_192,
				InputCostPerMTok:  0.10,
				OutputCostPerMTok: 0.40,
				Capabilities:      []domain.Capability{domain.CapabilityImage},
			},
			{
				ID:           "veo-3.0-generate-preview",
				Capabilities: []domain.Capability{domain.CapabilityVideo},
			},
			{
				ID:           "gemini-1.5-flash",
				Deprecated:   true,
				Capabilities: []domain.Capability{domain.CapabilityText},
			},
		},
	}
}

// Options configure the constructor closure bound at registration time.
type Options struct {
	HTTPClient   *http.Client
	Logger       zerolog.Logger
	Poller       *poller.Poller
	PollInterval time.Duration
	MaxWait      time.Duration
}

// NewConstructor returns the adaptor.Constructor registered for AdaptorID.
func NewConstructor(opts Options) adaptor.Constructor {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	jobPoller := opts.Poller
	if jobPoller == nil {
		jobPoller = poller.New(opts.Logger)
	}
	return func(modelID string, creds adaptor.Credentials, cfg adaptor.GenerationConfig) (adaptor.Adaptor, error) {
		apiKey := strings.TrimSpace(creds.APIKey)
		if apiKey == "" {
			return nil, errors.New("gemini api key is required")
		}
		baseURL := strings.TrimRight(creds.BaseURL, "/")
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		info, _ := Descriptor().Model(modelID)
		return &Adaptor{
			modelID:      modelID,
			modelInfo:    info,
			apiKey:       apiKey,
			baseURL:      baseURL,
			httpClient:   httpClient,
			logger:       opts.Logger.With().Str("adaptor", AdaptorID).Str("model", modelID).Logger(),
			cfg:          cfg,
			poller:       jobPoller,
			pollInterval: opts.PollInterval,
			maxWait:      opts.MaxWait,
		}, nil
	}
}

// Adaptor is one instantiated (model, credentials) binding.
type Adaptor struct {
	modelID      string
	modelInfo    adaptor.ModelInfo
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
	cfg          adaptor.GenerationConfig
	poller       *poller.Poller
	pollInterval time.Duration
	maxWait      time.Duration
}

func (a *Adaptor) ID() string      { return AdaptorID }
func (a *Adaptor) ModelID() string { return a.modelID }

// ValidateConfig checks ranges only; no network.
func (a *Adaptor) ValidateConfig(cfg adaptor.GenerationConfig) error {
	return cfg.Validate()
}

// EstimateCost prices a call against the model catalog. Unknown models fall
// into the zero-priced default tier.
func (a *Adaptor) EstimateCost(inputTokens, outputTokens int) float64 {
	return adaptor.CostPerTokens(a.modelInfo, inputTokens, outputTokens)
}

// GenerateText issues a single generateContent call.
func (a *Adaptor) GenerateText(ctx context.Context, req adaptor.TextRequest) (*adaptor.TextResult, error) {
	payload := generateContentRequest{
		Contents: textContents(req),
		GenerationConfig: &generationConfig{
			Temperature:     a.cfg.Temperature,
			TopP:            a.cfg.TopP,
			MaxOutputTokens: a.cfg.MaxTokens,
			CandidateCount:  1,
		},
	}

	started := time.Now()
	var resp generateContentResponse
	if err := a.invoke(ctx, fmt.Sprintf("models/%s:generateContent", a.modelID), payload, &resp); err != nil {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "error", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateText", Cause: err}
	}

	text := firstText(resp)
	if text == "" {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "empty", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateText", Cause: errors.New("empty response")}
	}

	usage := adaptor.Usage{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  resp.UsageMetadata.TotalTokenCount,
	}
	metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "success", time.Since(started))
	metrics.ObserveUsage(AdaptorID, a.modelID, usage.InputTokens, usage.OutputTokens, a.EstimateCost(usage.InputTokens, usage.OutputTokens))

	return &adaptor.TextResult{Text: text, Usage: usage}, nil
}

// GenerateImage issues a generateContent call with image response modality.
// Reference images are fetched and attached inline; a failed fetch skips
// that reference and the call proceeds with the rest.
func (a *Adaptor) GenerateImage(ctx context.Context, req adaptor.ImageRequest) (*adaptor.ImageResult, error) {
	parts := []part{{Text: imagePrompt(req)}}
	for _, ref := range req.ReferenceImageURLs {
		inline, err := a.fetchReferenceImage(ctx, ref)
		if err != nil {
			a.logger.Warn().Err(err).Str("reference", ref).Msg("gemini: skipping reference image")
			continue
		}
		parts = append(parts, part{InlineData: inline})
	}

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	started := time.Now()
	var resp generateContentResponse
	if err := a.invoke(ctx, fmt.Sprintf("models/%s:generateContent", a.modelID), payload, &resp); err != nil {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "error", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateImage", Cause: err}
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "success", time.Since(started))
			return &adaptor.ImageResult{
				URL:    fmt.Sprintf("data:%s;base64,%s", mime, p.InlineData.Data),
				Format: mime,
			}, nil
		}
	}

	metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "empty", time.Since(started))
	return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateImage", Cause: errors.New("no image content returned")}
}

// HealthCheck lists models as a minimal authenticated probe. It reports
// status and latency and never raises; monitoring only.
func (a *Adaptor) HealthCheck(ctx context.Context) adaptor.Health {
	started := time.Now()
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	err := a.get(ctx, "models?pageSize=1", &out)
	latency := time.Since(started)
	if err != nil {
		return adaptor.Health{Healthy: false, Latency: latency, Detail: err.Error()}
	}
	return adaptor.Health{Healthy: true, Latency: latency}
}

func textContents(req adaptor.TextRequest) []content {
	var contents []content
	if strings.TrimSpace(req.SystemPrompt) != "" {
		// v1beta carries the system prompt as the leading user turn when no
		// dedicated systemInstruction is configured
		contents = append(contents, content{Role: "user", Parts: []part{{Text: req.SystemPrompt}}})
	}
	if strings.TrimSpace(req.UserPrompt) != "" {
		contents = append(contents, content{Role: "user", Parts: []part{{Text: req.UserPrompt}}})
	}
	return contents
}

func imagePrompt(req adaptor.ImageRequest) string {
	b := &strings.Builder{}
	b.WriteString(strings.TrimSpace(req.Prompt))
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Aspect ratio: ")
		b.WriteString(aspect)
	}
	return b.String()
}

func firstText(resp generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}
