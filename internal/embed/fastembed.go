//go:build cgo

package embed

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// fastEmbedProvider runs the model locally through ONNX runtime. The default
// model is all-MiniLM-L6-v2, the same 384-dim family the ingestion pipeline
// was built around.
type fastEmbedProvider struct {
	model *fastembed.FlagEmbedding
	mu    sync.RWMutex
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
}

func newFastEmbedProvider(modelName, cacheDir string) (Provider, error) {
	if modelName == "" {
		modelName = "fast-all-MiniLM-L6-v2"
	}
	model, ok := fastEmbedModels[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, modelName)
	}
	if cacheDir == "" {
		cacheDir = "./data/models"
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("init fastembed: %w", err)
	}
	return &fastEmbedProvider{model: flagEmbed}, nil
}

func (p *fastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	vector, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

func (p *fastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	vectors, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

func (p *fastEmbedProvider) Dimension() int {
	return 384
}

func (p *fastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}
