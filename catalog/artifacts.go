package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/modelatlas/pipeline/schemas"
)

// WriteArtifact persists a stage's model set as "<name>.json" in the
// enveloped artifact shape. The directory is created on demand.
func WriteArtifact[T any](dir, name, stage string, models []T) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	artifact := schemas.NewArtifact(stage, models)
	data, err := sonic.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact %s: %w", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return path, nil
}

// ReadArtifact loads a stage artifact, accepting both the envelope shape and
// legacy bare arrays.
func ReadArtifact[T any](path string) (*schemas.Artifact[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return schemas.DecodeArtifact[T](data)
}

// WriteReport persists a stage's human-readable report as "<name>.txt".
// A report is written for every stage that ran, even on failure.
func WriteReport(dir, name string, lines []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".txt")
	body := strings.Join(lines, "\n")
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}
