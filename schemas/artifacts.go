package schemas

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// istZone is the fixed offset used for artifact timestamps.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// ArtifactMetadata is the envelope header of a stage artifact.
type ArtifactMetadata struct {
	GeneratedAt   string `json:"generated_at"`
	TotalModels   int    `json:"total_models"`
	PipelineStage string `json:"pipeline_stage"`
}

// Artifact is the stable on-disk JSON shape written by every stage:
// { "metadata": {...}, "models": [...] }. Legacy artifacts are a bare
// array; readers must accept both shapes.
type Artifact[T any] struct {
	Metadata ArtifactMetadata `json:"metadata"`
	Models   []T              `json:"models"`
}

// NewArtifact wraps models in an envelope stamped with the current IST time.
// A nil slice becomes an empty one so the file carries [] rather than null;
// zero models is a legal stage outcome.
func NewArtifact[T any](stage string, models []T) *Artifact[T] {
	if models == nil {
		models = []T{}
	}
	return &Artifact[T]{
		Metadata: ArtifactMetadata{
			GeneratedAt:   time.Now().In(istZone).Format("2006-01-02T15:04:05-07:00"),
			TotalModels:   len(models),
			PipelineStage: stage,
		},
		Models: models,
	}
}

// DecodeArtifact decodes either the envelope shape or a legacy bare array.
// The leading token decides the shape, so an envelope whose models field is
// null (a zero-model stage written by an older run) still decodes.
func DecodeArtifact[T any](data []byte) (*Artifact[T], error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope Artifact[T]
		if err := sonic.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode artifact envelope: %w", err)
		}
		if envelope.Models == nil {
			envelope.Models = []T{}
		}
		return &envelope, nil
	}
	var bare []T
	if err := sonic.Unmarshal(trimmed, &bare); err != nil {
		return nil, fmt.Errorf("artifact is neither an envelope nor a bare array: %w", err)
	}
	return &Artifact[T]{
		Metadata: ArtifactMetadata{TotalModels: len(bare)},
		Models:   bare,
	}, nil
}

func sonicUnmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
