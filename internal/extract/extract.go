// Package extract pulls plain text out of uploaded documents for indexing.
// Unsupported formats yield empty text, not an error: files without
// extractable text simply never enter the semantic index.
package extract

import "strings"

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Text extracts plain text from raw bytes according to the declared file
// type. The kind comparison is case-insensitive ("PDF" uploads happen).
func (e *Extractor) Text(raw []byte, kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "txt", "md", "csv":
		return string(raw), nil
	case "pdf":
		return pdfText(raw)
	case "docx":
		return docxText(raw)
	default:
		return "", nil
	}
}
