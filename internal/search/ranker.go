package search

import (
	"math"
	"sort"
	"strings"

	"filehaven/api/internal/store"
)

// CosineSimilarity computes dot(a,b)/(|a|*|b|), or 0 when either vector has
// zero magnitude. Vectors of unequal length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Rank scores candidate file nodes against an embedded query for one user.
// A node is eligible when it is public, lists the user, or is owned by the
// user; nodes without a full-length embedding are skipped. Similarity is
// cosine plus a fixed lexical boost per query token found in the extracted
// text, rounded to four decimals. The returned slice is sorted descending and
// truncated to topK regardless of the included flags.
func Rank(queryVec []float32, queryLower, userID string, files []store.Node, topK int, threshold float64) []Result {
	results := make([]Result, 0, len(files))
	tokens := strings.Fields(queryLower)

	for _, file := range files {
		if !file.IsPublic() && !file.Allows(userID) && file.OwnerID != userID {
			continue
		}
		if len(file.Embedding) != store.EmbeddingDim {
			continue
		}

		similarity := CosineSimilarity(queryVec, file.Embedding)
		text := strings.ToLower(file.Content)
		for _, token := range tokens {
			if strings.Contains(text, token) {
				similarity += lexicalBoost
			}
		}
		similarity = math.Round(similarity*10000) / 10000

		results = append(results, Result{
			Name:       file.Name,
			Path:       file.Path,
			Similarity: similarity,
			Included:   similarity >= threshold,
			Confidence: classify(similarity),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
