// Package embed provides the embedding collaborator: text in, 384-dim
// mean-pooled L2-normalized vector out.
package embed

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrEmbeddingFailed indicates the provider errored or returned
	// malformed output.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embeddings. Implementations normalize, so cosine scores
// of provider output are directly comparable.
type Provider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "remote" (TEI-compatible HTTP endpoint) or "fastembed"
	// (local ONNX runtime, requires cgo).
	Provider string
	// BaseURL is the remote endpoint base URL.
	BaseURL string
	// Model names the embedding model; must be a 384-dimension model.
	Model string
	// CacheDir caches downloaded model files for the local provider.
	CacheDir string
}

// NewProvider builds the configured embedding provider.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "remote", "":
		return NewRemoteProvider(cfg.BaseURL)
	case "fastembed":
		return newFastEmbedProvider(cfg.Model, cfg.CacheDir)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
