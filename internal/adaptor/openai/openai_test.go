package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
)

func newAdaptor(t *testing.T, server *httptest.Server, modelID string) adaptor.Adaptor {
	t.Helper()
	ctor := NewConstructor(Options{HTTPClient: server.Client(), Logger: zerolog.Nop()})
	a, err := ctor(modelID, adaptor.Credentials{APIKey: "test-key", BaseURL: server.URL + "/v1"}, adaptor.GenerationConfig{})
	require.NoError(t, err)
	return a
}

func TestConstructorRequiresAPIKey(t *testing.T) {
	ctor := NewConstructor(Options{Logger: zerolog.Nop()})
	_, err := ctor("gpt-4o", adaptor.Credentials{}, adaptor.GenerationConfig{})
	require.Error(t, err)
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `[{"title":"A"}]`}},
			},
			"usage": map[string]any{
				"prompt_tokens":     200,
				"completion_tokens": 50,
				"total_tokens":      250,
			},
		})
	}))
	defer server.Close()

	a := newAdaptor(t, server, "gpt-4o")
	res, err := a.GenerateText(context.Background(), adaptor.TextRequest{SystemPrompt: "sys", UserPrompt: "user"})
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"A"}]`, res.Text)
	assert.Equal(t, 200, res.Usage.InputTokens)
	assert.Equal(t, 50, res.Usage.OutputTokens)
	assert.Equal(t, 250, res.Usage.TotalTokens)
}

func TestGenerateTextProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	a := newAdaptor(t, server, "gpt-4o")
	_, err := a.GenerateText(context.Background(), adaptor.TextRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestGenerateImageB64(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("image-bytes"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/images/generations", r.URL.Path)

		var req struct {
			Model string `json:"model"`
			Size  string `json:"size"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dall-e-3", req.Model)
		assert.Equal(t, "1792x1024", req.Size)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"b64_json": png}},
		})
	}))
	defer server.Close()

	a := newAdaptor(t, server, "dall-e-3")
	res, err := a.GenerateImage(context.Background(), adaptor.ImageRequest{Prompt: "a castle", AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/png;base64,"))
	assert.Equal(t, "image/png", res.Format)
}

func TestGenerateVideoUnsupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	a := newAdaptor(t, server, "gpt-4o")
	_, err := a.GenerateVideo(context.Background(), adaptor.VideoRequest{Prompt: "waves"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEstimateCost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	a := newAdaptor(t, server, "gpt-4o-mini")
	assert.InDelta(t, 1_000_000*0.15/1e6+500_000*0.60/1e6, a.EstimateCost(1_000_000, 500_000), 1e-9)
}

func TestImageSizeMapping(t *testing.T) {
	assert.Equal(t, "1024x1024", imageSize("1:1"))
	assert.Equal(t, "1792x1024", imageSize("16:9"))
	assert.Equal(t, "1024x1792", imageSize("9:16"))
	assert.Equal(t, "1024x1024", imageSize(""))
}
