package license

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

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

// hubHandler simulates the Hub: metadata API plus HEAD-probeable repo pages.
type hubHandler struct {
	licenses map[string]string // repo -> cardData.license
	missing  map[string]bool   // paths that 404
	pages    map[string]string // path -> HTML body
}

func (h *hubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.missing[r.URL.Path] {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if body, ok := h.pages[r.URL.Path]; ok {
		fmt.Fprint(w, body)
		return
	}
	const apiPrefix = "/api/models/"
	if len(r.URL.Path) > len(apiPrefix) && r.URL.Path[:len(apiPrefix)] == apiPrefix {
		repo := r.URL.Path[len(apiPrefix):]
		license, ok := h.licenses[repo]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"cardData":{"license":%q}}`, license)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestResolver(t *testing.T, handler http.Handler) (*Resolver, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	fetcher := network.NewFetcher(network.FetcherConfig{}, nopLogger{})
	resolver := NewResolver(fetcher, "", nopLogger{})
	resolver.Hub().BaseURL = server.URL
	return resolver, server
}

func TestResolve_ProprietarySlugWinsFirst(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{})

	fact := resolver.Resolve(context.Background(), "openai/gpt-oss-120b", "openai/gpt-oss-120b")
	assert.Equal(t, schemas.LicenseProprietary, fact.Category)
	assert.Equal(t, "Apache 2.0", fact.Name)
	assert.Equal(t, "info", fact.InfoText)
}

func TestResolve_GoogleFamilies(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{})

	gemini := resolver.Resolve(context.Background(), "google/gemini-2.5-flash", "")
	assert.Equal(t, schemas.LicenseProprietary, gemini.Category)
	assert.Equal(t, "Gemini API Terms of Service", gemini.Name)
	assert.Empty(t, gemini.InfoText)

	gemma := resolver.Resolve(context.Background(), "google/gemma-3-27b-it", "")
	assert.Equal(t, "Gemma Terms of Use", gemma.Name)
	assert.Equal(t, "info", gemma.InfoText)
}

func TestResolve_LlamaByPrefixAndByName(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{})

	byPrefix := resolver.Resolve(context.Background(), "meta-llama/llama-4-maverick", "")
	assert.Equal(t, "Llama Community License", byPrefix.Name)

	byName := resolver.Resolve(context.Background(), "groq/llama-guard-4-12b", "")
	assert.Equal(t, "Llama Community License", byName.Name)
	assert.Equal(t, "https://www.llama.com/faq/", byName.InfoURL)
}

func TestResolve_OpensourceFromHubCard(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{
		licenses: map[string]string{"mistralai/Mistral-7B-v0.1": "apache-2.0"},
	})

	fact := resolver.Resolve(context.Background(), "mistralai/mistral-7b", "mistralai/Mistral-7B-v0.1")
	assert.Equal(t, schemas.LicenseOpenSource, fact.Category)
	assert.Equal(t, "Apache 2.0", fact.Name)
	assert.Equal(t, "https://www.apache.org/licenses/LICENSE-2.0", fact.URL)
	assert.Equal(t, "info", fact.InfoText)
	assert.Contains(t, fact.InfoURL, "mistralai/Mistral-7B-v0.1")
}

func TestResolve_CustomLicenseProbesLicenseFile(t *testing.T) {
	resolver, server := newTestResolver(t, &hubHandler{
		licenses: map[string]string{"NousResearch/Hermes-3-8B": "llama3.1"},
	})

	fact := resolver.Resolve(context.Background(), "nousresearch/hermes-3-8b", "NousResearch/Hermes-3-8B")
	assert.Equal(t, schemas.LicenseCustom, fact.Category)
	assert.Equal(t, "Llama 3.1", fact.Name)
	assert.Equal(t, server.URL+"/NousResearch/Hermes-3-8B/blob/main/LICENSE", fact.URL)
	assert.Equal(t, "LICENSE file", fact.URLLabel)
	assert.Empty(t, fact.InfoText)
	assert.Empty(t, fact.InfoURL)
}

func TestResolve_CustomProbeFallsThroughTiers(t *testing.T) {
	resolver, server := newTestResolver(t, &hubHandler{
		licenses: map[string]string{"acme/model": "llama3.2"},
		missing:  map[string]bool{"/acme/model/blob/main/LICENSE": true},
	})

	fact := resolver.Resolve(context.Background(), "acme/model", "acme/model")
	assert.Equal(t, server.URL+"/acme/model/blob/main/README.md", fact.URL)
	assert.Equal(t, "README.md file", fact.URLLabel)
}

func TestScrapeLicenseName_LicenseFileWinsOverRepoPage(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{
		pages: map[string]string{
			"/acme/model/blob/main/LICENSE": `License: <span>Acme Model License</span>`,
			"/acme/model":                   `License: <span>Something Else</span>`,
		},
	})

	name, ok := resolver.Hub().ScrapeLicenseName(context.Background(), "acme/model")
	require.True(t, ok)
	assert.Equal(t, "Acme Model License", name)
}

func TestScrapeLicenseName_FallsThroughToReadme(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{
		missing: map[string]bool{"/acme/model/blob/main/LICENSE": true},
		pages: map[string]string{
			"/acme/model/blob/main/README.md": `"license": "acme-community"`,
		},
	})

	name, ok := resolver.Hub().ScrapeLicenseName(context.Background(), "acme/model")
	require.True(t, ok)
	assert.Equal(t, "acme-community", name)
}

func TestResolve_CustomCuratedOverride(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{
		licenses: map[string]string{"Qwen/Qwen2.5-72B": "qwen-research"},
	})

	fact := resolver.Resolve(context.Background(), "qwen/qwen2.5-72b", "Qwen/Qwen2.5-72B")
	assert.Equal(t, schemas.LicenseCustom, fact.Category)
	assert.Equal(t, "Qwen Research License", fact.Name)
	assert.Equal(t, customURLOverrides["Qwen Research License"], fact.URL)
}

func TestResolve_NoHFIDIsUnknown(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{})

	fact := resolver.Resolve(context.Background(), "someone/new-model", "")
	assert.Equal(t, schemas.LicenseUnknown, fact.Category)
	assert.Equal(t, schemas.Unknown, fact.Name)
	assert.Equal(t, schemas.Unknown, fact.URL)
}

func TestResolve_MissingCardIsUnknown(t *testing.T) {
	resolver, _ := newTestResolver(t, &hubHandler{})

	fact := resolver.Resolve(context.Background(), "someone/ghost", "someone/ghost")
	assert.Equal(t, schemas.LicenseUnknown, fact.Category)
}

func TestStandardize_Idempotent(t *testing.T) {
	inputs := []string{"apache-2.0", "MIT", "llama3.1", "Some Unrecognized License", "", "HTTP 404: not found"}
	for _, raw := range inputs {
		once := Standardize(raw)
		assert.Equal(t, once, Standardize(once), "raw=%q", raw)
	}
}

func TestStandardize_ErrorStringsCollapse(t *testing.T) {
	for _, raw := range []string{"HTTP 404", "http 500 internal", "Error: timeout", "Not found", "no hf id"} {
		assert.Equal(t, schemas.Unknown, Standardize(raw), "raw=%q", raw)
	}
}

func TestStandardize_Mappings(t *testing.T) {
	assert.Equal(t, "Apache 2.0", Standardize("apache-2.0"))
	assert.Equal(t, "Llama 3.1", Standardize("llama3.1"))
	assert.Equal(t, "Tongyi Qianwen License", Standardize("qwen"))
	// Unrecognized names pass through verbatim.
	assert.Equal(t, "Stability AI License", Standardize("Stability AI License"))
}

func TestIsOpenSource_CaseInsensitive(t *testing.T) {
	url, ok := IsOpenSource("apache 2.0")
	require.True(t, ok)
	assert.Equal(t, "https://www.apache.org/licenses/LICENSE-2.0", url)

	_, ok = IsOpenSource("Llama 3.1")
	assert.False(t, ok)
}
