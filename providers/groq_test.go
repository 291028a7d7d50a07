package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groqModelsFixture = `<html><body>
<h2 id="production-models">Production Models</h2>
<table>
<thead><tr><th>Model ID</th><th>Developer</th><th>Context Window (tokens)</th><th>Max Completion Tokens</th></tr></thead>
<tbody>
<tr><td>llama-3.3-70b-versatile</td><td>Meta</td><td>131,072</td><td>32,768</td></tr>
<tr><td>whisper-large-v3</td><td>OpenAI</td><td>448</td><td>448</td></tr>
</tbody>
</table>
</body></html>`

const groqRateLimitsEmpty = `<html><body>
<table>
<thead><tr><th>Model ID</th><th>RPM</th><th>RPD</th><th>TPM</th><th>TPD</th></tr></thead>
<tbody><tr><td></td><td></td><td></td><td></td><td></td></tr></tbody>
</table>
</body></html>`

const groqRateLimitsPopulated = `<html><body>
<table>
<thead><tr><th>Model ID</th><th>RPM</th><th>RPD</th><th>TPM</th><th>TPD</th></tr></thead>
<tbody>
<tr><td>llama-3.3-70b-versatile</td><td>30</td><td>14.4K</td><td>6K</td><td>500K</td></tr>
</tbody>
</table>
</body></html>`

const groqLlamaDetail = `<html><body>
<div><span>INPUT</span><p>Text, Image</p></div>
<div><span>OUTPUT</span><p>Text</p></div>
</body></html>`

func newGroqExtractor(t *testing.T, rateLimitAttemptsUntilData int32) *GroqExtractor {
	t.Helper()
	var rateLimitCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs/models":
			w.Write([]byte(groqModelsFixture))
		case "/docs/rate-limits":
			if rateLimitCalls.Add(1) < rateLimitAttemptsUntilData {
				w.Write([]byte(groqRateLimitsEmpty))
				return
			}
			w.Write([]byte(groqRateLimitsPopulated))
		case "/docs/model/llama-3.3-70b-versatile":
			w.Write([]byte(groqLlamaDetail))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	config := &configs.GroqConfig{
		ModelsURL:      server.URL + "/docs/models",
		RateLimitsURL:  server.URL + "/docs/rate-limits",
		ModelDetailURL: server.URL + "/docs/model",
		TableRetries:   3,
	}
	fetcher := network.NewFetcher(network.FetcherConfig{}, nopLogger{})
	return NewGroqExtractor(config, fetcher, nopLogger{})
}

func TestGroqExtract_ModelTable(t *testing.T) {
	extractor := newGroqExtractor(t, 1)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, result.RawModels, 2)
	llama := result.RawModels[0]
	assert.Equal(t, "llama-3.3-70b-versatile", llama.CanonicalSlug)
	assert.Equal(t, schemas.SourceHTMLTable, llama.SourceSection)
	require.NotNil(t, llama.ContextWindow)
	assert.Equal(t, 131072, *llama.ContextWindow)
	require.NotNil(t, llama.MaxCompletionTokens)
	assert.Equal(t, 32768, *llama.MaxCompletionTokens)
}

func TestGroqExtract_RateLimitsRetryUntilPopulated(t *testing.T) {
	extractor := newGroqExtractor(t, 3)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	raw, ok := result.RateLimits["llama-3.3-70b-versatile"]
	require.True(t, ok, "diagnostics: %v", result.Diagnostics)
	assert.Equal(t, "RPM: 30, RPD: 14.4K, TPM: 6K, TPD: 500K", raw)
	// Two empty polls were recorded before the table filled in.
	assert.Len(t, result.Diagnostics, 3)
}

func TestGroqExtract_LabeledModalities(t *testing.T) {
	extractor := newGroqExtractor(t, 1)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	llama, ok := result.Modalities["llama-3.3-70b-versatile"]
	require.True(t, ok)
	assert.Equal(t, []string{"text", "image"}, llama.Inputs)
	assert.Equal(t, []string{"text"}, llama.Outputs)
}

func TestGroqExtract_WhisperHeuristic(t *testing.T) {
	// whisper-large-v3 has no detail page; the name heuristic decides.
	extractor := newGroqExtractor(t, 1)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	whisper, ok := result.Modalities["whisper-large-v3"]
	require.True(t, ok)
	assert.Equal(t, []string{"Audio"}, whisper.Inputs)
	assert.Equal(t, []string{"Text"}, whisper.Outputs)
}

func TestHeuristicModalities(t *testing.T) {
	tts := heuristicModalities("playai-tts")
	assert.Equal(t, []string{"Text"}, tts.Inputs)
	assert.Equal(t, []string{"Audio"}, tts.Outputs)

	guard := heuristicModalities("meta-llama/llama-guard-4-12b")
	assert.Equal(t, []string{"Image", "Text"}, guard.Inputs)
	assert.Equal(t, []string{"Text"}, guard.Outputs)

	plain := heuristicModalities("qwen/qwen3-32b")
	assert.Equal(t, []string{"Text"}, plain.Inputs)
	assert.Equal(t, []string{"Text"}, plain.Outputs)
}

func TestGroqExtract_MissingTableIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
	}))
	t.Cleanup(server.Close)
	config := &configs.GroqConfig{
		ModelsURL:      server.URL + "/docs/models",
		RateLimitsURL:  server.URL + "/docs/rate-limits",
		ModelDetailURL: server.URL + "/docs/model",
		TableRetries:   1,
	}
	fetcher := network.NewFetcher(network.FetcherConfig{}, nopLogger{})
	extractor := NewGroqExtractor(config, fetcher, nopLogger{})

	_, err := extractor.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production-models table not found")
}
