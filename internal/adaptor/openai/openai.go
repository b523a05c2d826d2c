// Package openai binds the OpenAI API as a generation adaptor. Text goes
// through chat completions, images through the image endpoint; video is not
// supported by this vendor.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	sdk "github.com/sashabaranov/go-openai"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/metrics"
)

const AdaptorID = "openai"

const defaultTimeout = 120 * time.Second

// Descriptor returns the static model catalog for registration.
func Descriptor() adaptor.Descriptor {
	return adaptor.Descriptor{
		ID:           AdaptorID,
		Capabilities: []domain.Capability{domain.CapabilityText, domain.CapabilityImage},
		Models: []adaptor.ModelInfo{
			{
				ID:                "gpt-4o",
				ContextWindow:     128_000,
				MaxOutputTokens:   16_384,
				InputCostPerMTok:  2.50,
				OutputCostPerMTok: 10.00,
				Capabilities:      []domain.Capability{domain.CapabilityText},
			},
			{
				ID:                "gpt-4o-mini",
				ContextWindow:     128_000,
				MaxOutputTokens:   16_384,
				InputCostPerMTok:  0.15,
				OutputCostPerMTok: 0.60,
				Capabilities:      []domain.Capability{domain.CapabilityText},
			},
			{
				ID:           "dall-e-3",
				Capabilities: []domain.Capability{domain.CapabilityImage},
			},
			{
				ID:                "gpt-3.5-turbo",
				ContextWindow:     16_385,
				MaxOutputTokens:   4_096,
				InputCostPerMTok:  0.50,
				OutputCostPerMTok: 1.50,
				Capabilities:      []domain.Capability{domain.CapabilityText},
				Deprecated:        true,
			},
		},
	}
}

// Options configure the constructor closure bound at registration time.
type Options struct {
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewConstructor returns the adaptor.Constructor registered for AdaptorID.
func NewConstructor(opts Options) adaptor.Constructor {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return func(modelID string, creds adaptor.Credentials, cfg adaptor.GenerationConfig) (adaptor.Adaptor, error) {
		apiKey := strings.TrimSpace(creds.APIKey)
		if apiKey == "" {
			return nil, errors.New("openai api key is required")
		}
		clientCfg := sdk.DefaultConfig(apiKey)
		clientCfg.HTTPClient = httpClient
		if base := strings.TrimRight(creds.BaseURL, "/"); base != "" {
			clientCfg.BaseURL = base
		}
		info, _ := Descriptor().Model(modelID)
		return &Adaptor{
			modelID:   modelID,
			modelInfo: info,
			client:    sdk.NewClientWithConfig(clientCfg),
			logger:    opts.Logger.With().Str("adaptor", AdaptorID).Str("model", modelID).Logger(),
			cfg:       cfg,
		}, nil
	}
}

// Adaptor is one instantiated (model, credentials) binding.
type Adaptor struct {
	modelID   string
	modelInfo adaptor.ModelInfo
	client    *sdk.Client
	logger    zerolog.Logger
	cfg       adaptor.GenerationConfig
}

func (a *Adaptor) ID() string      { return AdaptorID }
func (a *Adaptor) ModelID() string { return a.modelID }

// ValidateConfig checks ranges only; no network.
func (a *Adaptor) ValidateConfig(cfg adaptor.GenerationConfig) error {
	return cfg.Validate()
}

// EstimateCost prices a call against the model catalog.
func (a *Adaptor) EstimateCost(inputTokens, outputTokens int) float64 {
	return adaptor.CostPerTokens(a.modelInfo, inputTokens, outputTokens)
}

// GenerateText issues one chat completion with a system + user message pair.
func (a *Adaptor) GenerateText(ctx context.Context, req adaptor.TextRequest) (*adaptor.TextResult, error) {
	var messages []sdk.ChatCompletionMessage
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, sdk.ChatCompletionMessage{
			Role:    sdk.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, sdk.ChatCompletionMessage{
		Role:    sdk.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	chatReq := sdk.ChatCompletionRequest{Model: a.modelID, Messages: messages}
	if a.cfg.Temperature != nil {
		chatReq.Temperature = float32(*a.cfg.Temperature)
	}
	if a.cfg.TopP != nil {
		chatReq.TopP = float32(*a.cfg.TopP)
	}
	if a.cfg.MaxTokens != nil {
		chatReq.MaxTokens = *a.cfg.MaxTokens
	}

	started := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "error", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateText", Cause: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "empty", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateText", Cause: errors.New("empty response")}
	}

	text := resp.Choices[0].Message.Content
	usage := adaptor.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		// some proxies strip the usage block; fall back to local counting
		usage.InputTokens = a.CountTokens(req.SystemPrompt) + a.CountTokens(req.UserPrompt)
		usage.OutputTokens = a.CountTokens(text)
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityText), "success", time.Since(started))
	metrics.ObserveUsage(AdaptorID, a.modelID, usage.InputTokens, usage.OutputTokens, a.EstimateCost(usage.InputTokens, usage.OutputTokens))

	return &adaptor.TextResult{Text: text, Usage: usage}, nil
}

// GenerateImage issues one image generation call and returns the result as a
// data URI so the orchestrator can persist it like inline vendor output.
func (a *Adaptor) GenerateImage(ctx context.Context, req adaptor.ImageRequest) (*adaptor.ImageResult, error) {
	imgReq := sdk.ImageRequest{
		Prompt:         req.Prompt,
		Model:          a.modelID,
		N:              1,
		Size:           imageSize(req.AspectRatio),
		ResponseFormat: sdk.CreateImageResponseFormatB64JSON,
	}

	started := time.Now()
	resp, err := a.client.CreateImage(ctx, imgReq)
	if err != nil {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "error", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateImage", Cause: err}
	}
	if len(resp.Data) == 0 {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "empty", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateImage", Cause: errors.New("no image content returned")}
	}

	metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityImage), "success", time.Since(started))
	data := resp.Data[0]
	if data.B64JSON != "" {
		return &adaptor.ImageResult{
			URL:    fmt.Sprintf("data:image/png;base64,%s", data.B64JSON),
			Format: "image/png",
		}, nil
	}
	return &adaptor.ImageResult{URL: data.URL, Format: "image/png"}, nil
}

// GenerateVideo is not available from this vendor.
func (a *Adaptor) GenerateVideo(ctx context.Context, req adaptor.VideoRequest) (*adaptor.VideoResult, error) {
	return nil, adaptor.Unsupported(AdaptorID, "generateVideo")
}

// HealthCheck lists models as a minimal authenticated probe.
func (a *Adaptor) HealthCheck(ctx context.Context) adaptor.Health {
	started := time.Now()
	_, err := a.client.ListModels(ctx)
	latency := time.Since(started)
	if err != nil {
		return adaptor.Health{Healthy: false, Latency: latency, Detail: err.Error()}
	}
	return adaptor.Health{Healthy: true, Latency: latency}
}

// CountTokens estimates the token count of text with the model's tokenizer,
// falling back to cl100k_base when the model has no registered encoding.
func (a *Adaptor) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(a.modelID)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			// rough heuristic when both lookups fail
			return len(text) / 4
		}
	}
	return len(enc.Encode(text, nil, nil))
}

func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9":
		return sdk.CreateImageSize1792x1024
	case "9:16":
		return sdk.CreateImageSize1024x1792
	default:
		return sdk.CreateImageSize1024x1024
	}
}
