package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelatlas/pipeline/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"provider": "OpenRouter",
		"openrouter": {"models_url": "https://openrouter.ai/api/v1/models"}
	}`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, schemas.OpenRouter, config.Provider)
	assert.Equal(t, "outputs", config.OutputDir)
	// Defaults fill the optional filter sections.
	assert.Equal(t, []string{"0", "0.0"}, config.OpenRouter.FreeMarkers)
	assert.Contains(t, config.OpenRouter.ExcludeKeywords, "preview")
	assert.NotEmpty(t, config.ProviderFacts)
}

func TestLoad_DatabaseDSNEnvReference(t *testing.T) {
	t.Setenv("TEST_PIPELINE_DSN", "postgres://writer@localhost/db")
	path := writeConfig(t, `{
		"provider": "OpenRouter",
		"database_dsn": "env.TEST_PIPELINE_DSN",
		"openrouter": {"models_url": "https://openrouter.ai/api/v1/models"}
	}`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://writer@localhost/db", config.DatabaseDSN.GetValue())
}

func TestLoad_DatabaseDSNAbsent(t *testing.T) {
	path := writeConfig(t, `{
		"provider": "OpenRouter",
		"openrouter": {"models_url": "https://openrouter.ai/api/v1/models"}
	}`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, config.DatabaseDSN.GetValue())
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidProviderRejected(t *testing.T) {
	path := writeConfig(t, `{"provider": "Anthropic"}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_GroqDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"provider": "Groq",
		"groq": {
			"models_url": "https://console.groq.com/docs/models",
			"rate_limits_url": "https://console.groq.com/docs/rate-limits",
			"model_detail_url": "https://console.groq.com/docs/model"
		}
	}`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, config.Groq.TableRetries)
	assert.Equal(t, 3, config.Groq.TableRetryDelaySeconds)
}

func TestStageTimeout_Default(t *testing.T) {
	config := Default(schemas.Google)
	assert.Equal(t, 15*time.Minute, config.StageTimeout())

	config.StageTimeoutSeconds = 90
	assert.Equal(t, 90*time.Second, config.StageTimeout())
}

func TestDefault_GoogleQualityGateFloor(t *testing.T) {
	config := Default(schemas.Google)
	assert.Equal(t, 15, config.Google.MinModalities)
	assert.Len(t, config.Google.ScrapePages, 5)
}

func TestResolveProviderFact_GoogleFamilies(t *testing.T) {
	config := Default(schemas.Google)

	gemini := config.ResolveProviderFact("google/gemini-2.5-flash")
	assert.Equal(t, "Google", gemini.ModelProvider)
	assert.Contains(t, gemini.OfficialURL, "gemini")

	gemma := config.ResolveProviderFact("google/gemma-3-27b-it")
	assert.Contains(t, gemma.OfficialURL, "gemma")
}

func TestResolveProviderFact_UnknownSentinel(t *testing.T) {
	config := Default(schemas.OpenRouter)
	fact := config.ResolveProviderFact("someone/new-model")
	assert.Equal(t, schemas.Unknown, fact.ModelProvider)
	assert.Equal(t, schemas.Unknown, fact.Country)
	assert.Equal(t, schemas.Unknown, fact.OfficialURL)
}

func TestLoadCredentials_ReadsEnv(t *testing.T) {
	t.Setenv("PIPELINE_SUPABASE_URL", "postgres://writer@localhost/db")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("CI", "true")

	creds, err := LoadCredentials(nopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://writer@localhost/db", creds.DatabaseDSN)
	assert.True(t, creds.NonInteractive)

	key, err := creds.KeyFor(schemas.Groq)
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", key)
}

func TestKeyFor_MissingKey(t *testing.T) {
	creds := &Credentials{}
	_, err := creds.KeyFor(schemas.Google)
	require.Error(t, err)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
