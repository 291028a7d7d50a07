// Package configs loads the pipeline's JSON configuration artifacts and the
// process credentials. Credentials are read once at startup and passed by
// value; no component reads the environment after that.
package configs

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelatlas/pipeline/schemas"
)

// Credentials holds every secret the pipeline needs, resolved once.
type Credentials struct {
	// DatabaseDSN is the PostgreSQL DSN for the pipeline-writer role.
	DatabaseDSN string
	// SupabaseURL and SupabaseAnonKey identify the secret store. They are
	// carried for the orchestration scripts; key material itself resolves
	// from the environment.
	SupabaseURL     string
	SupabaseAnonKey string

	GoogleAPIKey      string
	OpenRouterAPIKey  string
	GroqAPIKey        string
	HuggingFaceAPIKey string

	// NonInteractive is set under CI so no component prompts.
	NonInteractive bool
}

// LoadCredentials reads a .env file when present and resolves the credential
// environment variables. Only the database DSN is required; provider keys
// are validated by the extractors that need them.
func LoadCredentials(logger schemas.Logger) (*Credentials, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to load .env file: %v", err)
		}
	}

	creds := &Credentials{
		DatabaseDSN:       os.Getenv("PIPELINE_SUPABASE_URL"),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		HuggingFaceAPIKey: os.Getenv("HUGGINGFACE_API_KEY"),
		NonInteractive: os.Getenv("GITHUB_ACTIONS") != "" ||
			os.Getenv("CI") != "" ||
			os.Getenv("AUTOMATED_EXECUTION") != "",
	}
	return creds, nil
}

// KeyFor returns the API key for a provider.
func (c *Credentials) KeyFor(provider schemas.InferenceProvider) (string, error) {
	var key string
	switch provider {
	case schemas.Google:
		key = c.GoogleAPIKey
	case schemas.Groq:
		key = c.GroqAPIKey
	case schemas.OpenRouter:
		key = c.OpenRouterAPIKey
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	if key == "" {
		return "", fmt.Errorf("no API key configured for %s", provider)
	}
	return key, nil
}
