package license

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bytedance/sonic"
	"github.com/modelatlas/pipeline/network"
	"github.com/valyala/fasthttp"
)

// DefaultHubBaseURL is the HuggingFace Hub endpoint.
const DefaultHubBaseURL = "https://huggingface.co"

// HubClient reads license metadata for HuggingFace repositories: the Hub
// metadata API first, page scraping as the fallback for repos whose card
// declares the literal "other" license.
type HubClient struct {
	BaseURL string
	APIKey  string
	Fetcher *network.Fetcher
}

// modelCard is the slice of the Hub metadata response the resolver needs.
type modelCard struct {
	CardData struct {
		License any `json:"license"`
	} `json:"cardData"`
}

// CardLicense queries the Hub metadata API for cardData.license. The Hub
// publishes either a string or a list; the first entry wins.
func (h *HubClient) CardLicense(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("%s/api/models/%s", h.BaseURL, repo)
	headers := map[string]string{}
	if h.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.APIKey
	}
	result, err := h.Fetcher.Fetch(ctx, network.FetchOptions{
		URL:     url,
		Timeout: 15 * time.Second,
		Headers: headers,
	})
	if err != nil {
		return "", fmt.Errorf("hub metadata for %s: %w", repo, err)
	}
	var card modelCard
	if err := sonic.Unmarshal(result.Body, &card); err != nil {
		return "", fmt.Errorf("hub metadata for %s: %w", repo, err)
	}
	switch v := card.CardData.License.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("no license in card data for %s", repo)
}

// License-name extraction patterns, tried in order; the first match wins.
var licensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`License:\s*<span[^>]*>([^<]+)</span>`),
	regexp.MustCompile(`"license"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`<dt>License</dt>\s*<dd[^>]*>([^<]+)</dd>`),
}

// ScrapeLicenseName extracts an explicit license name from the repo's pages.
// The LICENSE file is tried first; 404/429 fall through to README.md, then
// to the repo root.
func (h *HubClient) ScrapeLicenseName(ctx context.Context, repo string) (string, bool) {
	urls := []string{
		fmt.Sprintf("%s/%s/blob/main/LICENSE", h.BaseURL, repo),
		fmt.Sprintf("%s/%s/blob/main/README.md", h.BaseURL, repo),
		fmt.Sprintf("%s/%s", h.BaseURL, repo),
	}
	for _, url := range urls {
		result, err := h.Fetcher.Fetch(ctx, network.FetchOptions{
			URL:     url,
			Timeout: 15 * time.Second,
		})
		if err != nil || result == nil {
			continue
		}
		if result.StatusCode == fasthttp.StatusNotFound || result.StatusCode == fasthttp.StatusTooManyRequests {
			continue
		}
		for _, pattern := range licensePatterns {
			if match := pattern.FindSubmatch(result.Body); match != nil {
				return string(match[1]), true
			}
		}
	}
	return "", false
}

// ProbeRepoURL resolves the best reachable documentation URL for a repo via
// HEAD probes: LICENSE file, then README.md, then the repo root. The label
// names which tier answered.
func (h *HubClient) ProbeRepoURL(ctx context.Context, repo string) (url, label string) {
	tiers := []struct {
		url   string
		label string
	}{
		{fmt.Sprintf("%s/%s/blob/main/LICENSE", h.BaseURL, repo), "LICENSE file"},
		{fmt.Sprintf("%s/%s/blob/main/README.md", h.BaseURL, repo), "README.md file"},
		{fmt.Sprintf("%s/%s", h.BaseURL, repo), "Base repository"},
	}
	for _, tier := range tiers {
		if accessible, _ := h.Fetcher.Head(ctx, tier.url); accessible {
			return tier.url, tier.label
		}
	}
	return "", "Inaccessible"
}
