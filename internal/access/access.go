// Package access implements permission propagation and visibility resolution
// over the node tree. All algorithms are iterative worklist traversals so
// recursion depth never tracks tree depth.
package access

import (
	"context"
	"errors"

	"filehaven/api/internal/store"
)

// Store is the slice of the node store the access algorithms need.
type Store interface {
	GetNode(ctx context.Context, id string) (store.Node, error)
	Children(ctx context.Context, parentID *string) ([]store.Node, error)
	AllNodes(ctx context.Context) ([]store.Node, error)
	SetAllowedUsers(ctx context.Context, id string, users []string) error
}

// ErrConflictingChange is returned when a single call both grants and revokes,
// or does neither. Each propagation edits in exactly one direction.
var ErrConflictingChange = errors.New("exactly one of add or remove must be set")
