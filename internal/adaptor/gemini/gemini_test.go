package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/poller"
)

type instantClock struct {
	now time.Time
}

func (c *instantClock) Now() time.Time { return c.now }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func newAdaptor(t *testing.T, server *httptest.Server, modelID string) adaptor.Adaptor {
	t.Helper()
	clock := &instantClock{now: time.Now()}
	ctor := NewConstructor(Options{
		HTTPClient:   server.Client(),
		Logger:       zerolog.Nop(),
		Poller:       poller.New(zerolog.Nop(), poller.WithClock(clock)),
		PollInterval: time.Second,
		MaxWait:      time.Minute,
	})
	a, err := ctor(modelID, adaptor.Credentials{APIKey: "test-key", BaseURL: server.URL}, adaptor.GenerationConfig{})
	require.NoError(t, err)
	return a
}

func TestConstructorRequiresAPIKey(t *testing.T) {
	ctor := NewConstructor(Options{Logger: zerolog.Nop()})
	_, err := ctor("gemini-2.5-flash", adaptor.Credentials{}, adaptor.GenerationConfig{})
	require.Error(t, err)
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": `[{"title":"A"}]`}}}},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     120,
				"candidatesTokenCount": 40,
				"totalTokenCount":      160,
			},
		})
	}))
	defer server.Close()

	a := newAdaptor(t, server, "gemini-2.5-flash")
	res, err := a.GenerateText(context.Background(), adaptor.TextRequest{SystemPrompt: "sys", UserPrompt: "user"})
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"A"}]`, res.Text)
	assert.Equal(t, 120, res.Usage.InputTokens)
	assert.Equal(t, 40, res.Usage.OutputTokens)
	assert.Equal(t, 160, res.Usage.TotalTokens)
}

func TestGenerateTextProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 429, "message": "quota exceeded"}})
	}))
	defer server.Close()

	a := newAdaptor(t, server, "gemini-2.5-flash")
	_, err := a.GenerateText(context.Background(), adaptor.TextRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateImageSkipsFailedReference(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("ref-bytes"))
	var sawParts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/refs/good.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("ref-bytes"))
	})
	mux.HandleFunc("/refs/broken.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/models/gemini-2.0-flash-preview-image-generation:generateContent", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []json.RawMessage `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		sawParts.Store(int32(len(req.Contents[0].Parts)))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"inlineData": map[string]any{"mimeType": "image/png", "data": png}},
				}}},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := newAdaptor(t, server, "gemini-2.0-flash-preview-image-generation")
	res, err := a.GenerateImage(context.Background(), adaptor.ImageRequest{
		Prompt:      "a castle",
		AspectRatio: "16:9",
		ReferenceImageURLs: []string{
			server.URL + "/refs/good.png",
			server.URL + "/refs/broken.png",
		},
	})
	require.NoError(t, err)

	// prompt text + the one reference that fetched; the broken one skipped
	assert.Equal(t, int32(2), sawParts.Load())
	assert.Equal(t, "image/png", res.Format)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/png;base64,"))
}

func TestGenerateVideoPollsToCompletion(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/models/veo-3.0-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1", "done": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/op-1",
			"done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples": []map[string]any{
						{"video": map[string]any{"uri": "https://cdn.example.com/final.mp4"}},
					},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := newAdaptor(t, server, "veo-3.0-generate-preview")
	res, err := a.GenerateVideo(context.Background(), adaptor.VideoRequest{Prompt: "waves", Duration: 8, Resolution: "720p"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/final.mp4", res.URL)
	assert.Equal(t, 8, res.Duration)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestGenerateVideoProviderRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/veo-3.0-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-2"})
	})
	mux.HandleFunc("/operations/op-2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":  "operations/op-2",
			"done":  true,
			"error": map[string]any{"code": 3, "message": "prompt rejected"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := newAdaptor(t, server, "veo-3.0-generate-preview")
	_, err := a.GenerateVideo(context.Background(), adaptor.VideoRequest{Prompt: "waves"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobFailed)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	a := newAdaptor(t, server, "veo-3.0-generate-preview")
	assert.Equal(t, float64(0), a.EstimateCost(1000, 1000))

	priced := newAdaptor(t, server, "gemini-2.5-flash")
	assert.InDelta(t, 0.30/1000+2.50/1000, priced.EstimateCost(1000, 1000), 1e-9)
}
