package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"filehaven/api/internal/store"
)

// ErrEmbedQuery wraps failures of the embedding collaborator so callers can
// tell them apart from store failures.
var ErrEmbedQuery = errors.New("query embedding failed")

// Embedder turns text into the fixed-length vector used for ranking. The
// provider is expected to mean-pool and L2-normalize.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// FileSource enumerates candidate file nodes. Folders are never results, so
// only files are read. Each query reads the live tree; there is no persistent
// index to keep in sync.
type FileSource interface {
	FileNodes(ctx context.Context) ([]store.Node, error)
}

type Service struct {
	embedder Embedder
	files    FileSource
}

func NewService(embedder Embedder, files FileSource) *Service {
	return &Service{embedder: embedder, files: files}
}

// Search ranks every file visible to userID against the query. topK and
// threshold fall back to the defaults when non-positive.
func (s *Service) Search(ctx context.Context, query, userID string, topK int, threshold float64) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	queryLower := strings.ToLower(query)
	queryVec, err := s.embedder.EmbedQuery(ctx, queryLower)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedQuery, err)
	}

	files, err := s.files.FileNodes(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(queryVec, queryLower, userID, files, topK, threshold), nil
}
