package access

import "context"

// Propagate applies a grant or revocation of addUserID/removeUserID at
// targetID and floods it through the entire subtree. Every node's set is
// edited independently: users are appended or filtered out, never overwritten
// wholesale. Returns the ids of nodes whose set actually changed.
//
// Propagation is not atomic across the subtree; a failure partway through
// leaves earlier nodes updated (callers get the ids changed so far).
func Propagate(ctx context.Context, st Store, targetID, addUserID, removeUserID string) ([]string, error) {
	if (addUserID == "") == (removeUserID == "") {
		return nil, ErrConflictingChange
	}

	changed := make([]string, 0)
	worklist := []string{targetID}

	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		node, err := st.GetNode(ctx, id)
		if err != nil {
			return changed, err
		}

		users := node.AllowedUsers
		edited := false
		if addUserID != "" && !node.Allows(addUserID) {
			users = append(append([]string(nil), users...), addUserID)
			edited = true
		}
		if removeUserID != "" {
			filtered := make([]string, 0, len(users))
			for _, uid := range users {
				if uid != removeUserID {
					filtered = append(filtered, uid)
				}
			}
			if len(filtered) != len(users) {
				users = filtered
				edited = true
			}
		}
		if edited {
			if err := st.SetAllowedUsers(ctx, id, users); err != nil {
				return changed, err
			}
			changed = append(changed, id)
		}

		children, err := st.Children(ctx, &id)
		if err != nil {
			return changed, err
		}
		for _, child := range children {
			worklist = append(worklist, child.ID)
		}
	}
	return changed, nil
}
