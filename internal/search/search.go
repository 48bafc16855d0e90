package search

// Confidence buckets a similarity score for display.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	// DefaultTopK is how many ranked hits a search returns when unspecified.
	DefaultTopK = 5
	// DefaultThreshold is the similarity floor for the included flag.
	DefaultThreshold = 0.2
	// lexicalBoost is added once per query token found in the document text.
	// Accumulation is deliberately uncapped, so a many-token match can push
	// the score past 1.0.
	lexicalBoost = 0.03
)

// Result is a single ranked search hit. Included reflects the threshold;
// callers that only want above-threshold hits filter on it themselves. The
// ranked list always carries topK entries when that many candidates exist.
type Result struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Similarity float64    `json:"similarity"`
	Included   bool       `json:"included"`
	Confidence Confidence `json:"confidence"`
}

func classify(similarity float64) Confidence {
	switch {
	case similarity >= 0.75:
		return ConfidenceHigh
	case similarity >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
