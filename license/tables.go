// Package license resolves a model's license identity: category, a
// standardized short name, and an authoritative URL with tiered fallbacks.
package license

import "github.com/modelatlas/pipeline/schemas"

// proprietaryBySlug is the exact canonical-slug lookup, the highest-priority
// strategy. Entries here short-circuit every other resolution path.
var proprietaryBySlug = map[string]schemas.LicenseFact{
	"openai/gpt-oss-120b": {
		Category: schemas.LicenseProprietary,
		Name:     "Apache 2.0",
		URL:      "https://www.apache.org/licenses/LICENSE-2.0",
		InfoText: "info",
		InfoURL:  "https://huggingface.co/openai/gpt-oss-120b",
	},
	"openai/gpt-oss-20b": {
		Category: schemas.LicenseProprietary,
		Name:     "Apache 2.0",
		URL:      "https://www.apache.org/licenses/LICENSE-2.0",
		InfoText: "info",
		InfoURL:  "https://huggingface.co/openai/gpt-oss-20b",
	},
	"x-ai/grok-4-fast": {
		Category: schemas.LicenseProprietary,
		Name:     "Grok Terms of Service",
		URL:      "https://x.ai/legal/terms-of-service",
	},
}

// Google family mappings, keyed by sub-pattern of the model segment.
var googleLicenses = map[string]schemas.LicenseFact{
	"gemini": {
		Category: schemas.LicenseProprietary,
		Name:     "Gemini API Terms of Service",
		URL:      "https://ai.google.dev/gemini-api/terms",
	},
	"gemma": {
		Category: schemas.LicenseProprietary,
		Name:     "Gemma Terms of Use",
		URL:      "https://ai.google.dev/gemma/terms",
		InfoText: "info",
		InfoURL:  "https://ai.google.dev/gemma/docs",
	},
}

// metaLicense covers meta-llama models and anything whose name mentions
// llama; versioned community licenses all land on the same terms page.
var metaLicense = schemas.LicenseFact{
	Category: schemas.LicenseProprietary,
	Name:     "Llama Community License",
	URL:      "https://www.llama.com/llama3_1/license/",
	InfoText: "info",
	InfoURL:  "https://www.llama.com/faq/",
}

// opensourceURLs is the curated table of authoritative URLs for recognized
// opensource licenses. Presence of a standardized name here is what makes a
// model category=opensource; the URL is used directly, never probed.
var opensourceURLs = map[string]string{
	"Apache 2.0":           "https://www.apache.org/licenses/LICENSE-2.0",
	"MIT":                  "https://opensource.org/licenses/MIT",
	"BSD 3-Clause":         "https://opensource.org/licenses/BSD-3-Clause",
	"GPL 3.0":              "https://www.gnu.org/licenses/gpl-3.0.html",
	"AGPL 3.0":             "https://www.gnu.org/licenses/agpl-3.0.html",
	"CC BY 4.0":            "https://creativecommons.org/licenses/by/4.0/",
	"CC BY-SA 4.0":         "https://creativecommons.org/licenses/by-sa/4.0/",
	"CC BY-NC 4.0":         "https://creativecommons.org/licenses/by-nc/4.0/",
	"CC0 1.0":              "https://creativecommons.org/publicdomain/zero/1.0/",
	"OpenRAIL":             "https://www.licenses.ai/ai-licenses",
	"CreativeML OpenRAIL-M": "https://huggingface.co/spaces/CompVis/stable-diffusion-license",
}

// customURLOverrides maps standardized custom-license names to curated URLs,
// tier 1 of the custom URL resolution.
var customURLOverrides = map[string]string{
	"Qwen Research License":  "https://huggingface.co/Qwen/Qwen2.5-72B-Instruct/blob/main/LICENSE",
	"DeepSeek License":       "https://github.com/deepseek-ai/DeepSeek-LLM/blob/main/LICENSE-MODEL",
	"Tongyi Qianwen License": "https://github.com/QwenLM/Qwen/blob/main/Tongyi%20Qianwen%20LICENSE%20AGREEMENT",
}

// standardNames maps lowercased raw license identifiers to their
// standardized short names. Values are fixed points of Standardize.
var standardNames = map[string]string{
	"apache-2.0":            "Apache 2.0",
	"apache 2.0":            "Apache 2.0",
	"apache2":               "Apache 2.0",
	"mit":                   "MIT",
	"bsd-3-clause":          "BSD 3-Clause",
	"gpl-3.0":               "GPL 3.0",
	"agpl-3.0":              "AGPL 3.0",
	"cc-by-4.0":             "CC BY 4.0",
	"cc-by-sa-4.0":          "CC BY-SA 4.0",
	"cc-by-nc-4.0":          "CC BY-NC 4.0",
	"cc0-1.0":               "CC0 1.0",
	"openrail":              "OpenRAIL",
	"creativeml-openrail-m": "CreativeML OpenRAIL-M",
	"llama2":                "Llama 2",
	"llama3":                "Llama 3",
	"llama3.1":              "Llama 3.1",
	"llama3.2":              "Llama 3.2",
	"llama3.3":              "Llama 3.3",
	"llama4":                "Llama 4",
	"gemma":                 "Gemma",
	"qwen":                  "Tongyi Qianwen License",
	"qwen-research":         "Qwen Research License",
	"deepseek":              "DeepSeek License",
}
