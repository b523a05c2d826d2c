package static

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlab/internal/adaptor"
)

func newAdaptor(t *testing.T) adaptor.Adaptor {
	t.Helper()
	a, err := NewConstructor()(ModelID, adaptor.Credentials{}, adaptor.GenerationConfig{})
	require.NoError(t, err)
	return a
}

func TestGenerateTextIsDeterministic(t *testing.T) {
	a := newAdaptor(t)
	req := adaptor.TextRequest{SystemPrompt: "You are concise.", UserPrompt: "ideas for artisan coffee"}

	first, err := a.GenerateText(context.Background(), req)
	require.NoError(t, err)
	second, err := a.GenerateText(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)

	other, err := a.GenerateText(context.Background(), adaptor.TextRequest{UserPrompt: "something else entirely"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Text, other.Text)
}

func TestGenerateTextIsParseableArray(t *testing.T) {
	a := newAdaptor(t)
	res, err := a.GenerateText(context.Background(), adaptor.TextRequest{UserPrompt: "ideas for artisan coffee"})
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Text), &items))
	require.Len(t, items, 3)
	for _, item := range items {
		assert.NotEmpty(t, item["title"])
		assert.NotEmpty(t, item["description"])
	}
	assert.Positive(t, res.Usage.TotalTokens)
}

func TestGenerateImageStableURL(t *testing.T) {
	a := newAdaptor(t)
	req := adaptor.ImageRequest{Prompt: "a castle", AspectRatio: "16:9"}

	first, err := a.GenerateImage(context.Background(), req)
	require.NoError(t, err)
	second, err := a.GenerateImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, "image/png", first.Format)

	other, err := a.GenerateImage(context.Background(), adaptor.ImageRequest{Prompt: "a castle", AspectRatio: "9:16"})
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, other.URL)
}

func TestGenerateVideoDefaults(t *testing.T) {
	a := newAdaptor(t)
	res, err := a.GenerateVideo(context.Background(), adaptor.VideoRequest{Prompt: "waves"})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Duration)
	assert.Equal(t, "720p", res.Resolution)
	assert.Contains(t, res.URL, ".mp4")
}

func TestZeroCostAndHealthy(t *testing.T) {
	a := newAdaptor(t)
	assert.Zero(t, a.EstimateCost(1_000_000, 1_000_000))
	assert.True(t, a.HealthCheck(context.Background()).Healthy)
}
