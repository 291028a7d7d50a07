package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const googleListFixture = `{"models":[
	{"name": "models/gemini-2.5-flash", "displayName": "Gemini 2.5 Flash", "inputTokenLimit": 1048576, "outputTokenLimit": 65536},
	{"name": "models/gemini-2.5-pro", "displayName": "Gemini 2.5 Pro", "inputTokenLimit": 1048576, "outputTokenLimit": 65536}
]}`

const geminiDocFixture = `<html><body>
<devsite-selector active="gemini-2.5-flash-latest-001">
	<table><tr>
		<td>Supported data types</td>
		<td>Inputs
Audio, video, and text
Output
Audio and text</td>
	</tr></table>
</devsite-selector>
</body></html>`

func newGoogleExtractor(t *testing.T, minModalities int) (*GoogleExtractor, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1beta/models":
			if r.URL.Query().Get("key") == "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte(googleListFixture))
		case "/docs/models":
			w.Write([]byte(geminiDocFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	config := &configs.GoogleConfig{
		ListURL:       server.URL + "/v1beta/models",
		MinModalities: minModalities,
		ScrapePages: []configs.ScrapePage{
			{Name: "gemini", URL: server.URL + "/docs/models", Kind: configs.PageKindDevsite, PanelPrefix: "gemini"},
		},
	}
	fetcher := network.NewFetcher(network.FetcherConfig{}, nopLogger{})
	return NewGoogleExtractor(config, "g-test-key", fetcher, nopLogger{}), server.URL
}

func TestGoogleExtract_ListAndScrape(t *testing.T) {
	extractor, _ := newGoogleExtractor(t, 1)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, result.RawModels, 2)
	assert.Equal(t, "google/gemini-2.5-flash", result.RawModels[0].CanonicalSlug)
	assert.Equal(t, "gemini-2.5-flash", result.RawModels[0].ProviderSlug)
	assert.Equal(t, "Gemini 2.5 Flash", result.RawModels[0].DisplayName)
	require.NotNil(t, result.RawModels[0].ContextWindow)
	assert.Equal(t, 1048576, *result.RawModels[0].ContextWindow)

	// The versioned selector id normalizes to the base model key.
	fact, ok := result.Modalities["google/gemini-2.5-flash"]
	require.True(t, ok)
	assert.Equal(t, []string{"audio", "video", "text"}, fact.Inputs)
	assert.Equal(t, []string{"audio", "text"}, fact.Outputs)
}

func TestGoogleExtract_QualityGatePreservesPreviousArtifact(t *testing.T) {
	extractor, _ := newGoogleExtractor(t, 15)
	artifactPath := filepath.Join(t.TempDir(), "b-modalities.json")
	previous := schemas.NewArtifact("google-modalities", []ModalityEntry{
		{Key: "google/gemini-2.5-flash", Inputs: []string{"text", "image"}, Outputs: []string{"text"}},
		{Key: "google/gemini-2.5-pro", Inputs: []string{"text"}, Outputs: []string{"text"}},
	})
	data, err := sonic.Marshal(previous)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(artifactPath, data, 0o644))
	extractor.ModalityArtifactPath = artifactPath

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	// One scraped entry is below the floor of 15; the previous artifact wins.
	assert.Len(t, result.Modalities, 2)
	assert.Equal(t, []string{"text", "image"}, result.Modalities["google/gemini-2.5-flash"].Inputs)

	foundGateLine := false
	for _, line := range result.Diagnostics {
		if strings.Contains(line, "quality gate") && strings.Contains(line, "preserving previous artifact") {
			foundGateLine = true
		}
	}
	assert.True(t, foundGateLine, "missing quality-gate diagnostic: %v", result.Diagnostics)
}

func TestGoogleExtract_QualityGateWithoutArtifactKeepsScrape(t *testing.T) {
	extractor, _ := newGoogleExtractor(t, 15)

	result, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Modalities, 1)
}

func TestGoogleGateFailure_PDFOnGemini20(t *testing.T) {
	extractor, _ := newGoogleExtractor(t, 1)
	entries := []ModalityEntry{
		{Key: "google/gemini-2.0-flash", Inputs: []string{"text", "pdf"}, Outputs: []string{"text"}},
	}
	assert.Contains(t, extractor.gateFailure(entries), "PDF modality on google/gemini-2.0-flash")

	clean := []ModalityEntry{
		{Key: "google/gemini-2.5-flash", Inputs: []string{"text", "pdf"}, Outputs: []string{"text"}},
	}
	assert.Empty(t, extractor.gateFailure(clean))
}
