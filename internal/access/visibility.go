package access

import (
	"context"

	"filehaven/api/internal/store"
)

// VisibleChildren resolves the single-level listing for one folder. A file is
// visible when it is public or lists the user. A folder is visible under the
// same direct rule, or when anything in its subtree satisfies it. Ownership
// grants no extra visibility here. Only the whole-tree listing honors the
// owner override, and the asymmetry is a fixed contract, not an oversight.
func VisibleChildren(ctx context.Context, st Store, parentID *string, userID string) ([]store.Node, error) {
	children, err := st.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}

	visible := make([]store.Node, 0, len(children))
	for _, child := range children {
		direct := child.IsPublic() || child.Allows(userID)
		if child.Kind == store.KindFile {
			if direct {
				visible = append(visible, child)
			}
			continue
		}
		if direct {
			visible = append(visible, child)
			continue
		}
		reachable, err := hasAccessibleDescendant(ctx, st, child.ID, userID)
		if err != nil {
			return nil, err
		}
		if reachable {
			visible = append(visible, child)
		}
	}
	return visible, nil
}

// hasAccessibleDescendant walks the folder's subtree until it finds a node the
// user may observe directly. O(subtree) in store round-trips; scoped listings
// accept that cost in exchange for always-fresh reads.
func hasAccessibleDescendant(ctx context.Context, st Store, folderID, userID string) (bool, error) {
	worklist := []string{folderID}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		children, err := st.Children(ctx, &id)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if child.IsPublic() || child.Allows(userID) {
				return true, nil
			}
			if child.Kind == store.KindFolder {
				worklist = append(worklist, child.ID)
			}
		}
	}
	return false, nil
}

// VisibleTree resolves the whole-tree listing. Unlike VisibleChildren it
// treats ownership as a visibility condition at every level, and it amortizes
// the descendant checks over a single parent->children index built from one
// full read of the store.
func VisibleTree(ctx context.Context, st Store, userID string) ([]store.Node, error) {
	nodes, err := st.AllNodes(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]*store.Node, len(nodes))
	for i := range nodes {
		if nodes[i].ParentID != nil {
			index[*nodes[i].ParentID] = append(index[*nodes[i].ParentID], &nodes[i])
		}
	}

	observes := func(n *store.Node) bool {
		return n.IsPublic() || n.Allows(userID) || n.OwnerID == userID
	}

	visible := make([]store.Node, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		if observes(node) {
			visible = append(visible, *node)
			continue
		}
		if node.Kind == store.KindFolder && subtreeObserves(index, node.ID, observes) {
			visible = append(visible, *node)
		}
	}
	return visible, nil
}

func subtreeObserves(index map[string][]*store.Node, folderID string, observes func(*store.Node) bool) bool {
	worklist := []string{folderID}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		for _, child := range index[id] {
			if observes(child) {
				return true
			}
			if child.Kind == store.KindFolder {
				worklist = append(worklist, child.ID)
			}
		}
	}
	return false
}
