package access

import (
	"context"
	"errors"

	"filehaven/api/internal/store"
)

// CommonUsers returns the users present in the explicit allowed list of the
// folder and of every node beneath it. Public nodes contribute the empty set,
// so a single public node anywhere in the subtree annihilates the
// intersection and the result is always empty. That is the intended contract:
// "public" is not reinterpreted as "everyone" for this computation.
//
// An unresolvable folder id yields an empty result rather than an error, and
// the traversal carries a visited set so a structural anomaly cannot loop it.
func CommonUsers(ctx context.Context, st Store, folderID string) ([]string, error) {
	visited := make(map[string]bool)
	collected := make([]store.Node, 0)

	worklist := []string{folderID}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		node, err := st.GetNode(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		collected = append(collected, node)

		children, err := st.Children(ctx, &id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			worklist = append(worklist, child.ID)
		}
	}

	if len(collected) == 0 {
		return []string{}, nil
	}

	common := append([]string(nil), collected[0].AllowedUsers...)
	for _, node := range collected[1:] {
		members := make(map[string]bool, len(node.AllowedUsers))
		for _, uid := range node.AllowedUsers {
			members[uid] = true
		}
		kept := common[:0]
		for _, uid := range common {
			if members[uid] {
				kept = append(kept, uid)
			}
		}
		common = kept
		if len(common) == 0 {
			break
		}
	}
	return common, nil
}
