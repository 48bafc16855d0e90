//go:build !cgo

package embed

import "fmt"

// The local provider needs ONNX runtime bindings, which need cgo. Builds
// without cgo fall back to the remote provider.
func newFastEmbedProvider(modelName, cacheDir string) (Provider, error) {
	return nil, fmt.Errorf("%w: fastembed provider requires cgo; use EMBED_PROVIDER=remote", ErrInvalidConfig)
}
