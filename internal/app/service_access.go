package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filehaven/api/internal/access"
	"filehaven/api/internal/notify"
	"filehaven/api/internal/store"
	"filehaven/api/internal/util"
)

type UpdateAccessResult struct {
	ChangedCount int          `json:"changedCount"`
	AllowedUsers []store.User `json:"allowedUsers"`
}

// UpdateAccess grants or revokes one user's visibility at targetID and floods
// the change through the subtree. Exactly one of addUserID/removeUserID must
// be set. Propagation is not rolled back on failure: nodes visited before the
// failing one keep their new sets, and the count of applied edits rides on the
// error details.
func (s *Service) UpdateAccess(ctx context.Context, targetID, addUserID, removeUserID, byID string) (UpdateAccessResult, error) {
	if strings.TrimSpace(targetID) == "" {
		return UpdateAccessResult{}, invalidReference("targetId is required")
	}
	if (addUserID == "") == (removeUserID == "") {
		return UpdateAccessResult{}, validationError("exactly one of addUserId or removeUserId must be set")
	}

	target, err := s.store.GetNode(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateAccessResult{}, notFound("target does not resolve")
	}
	if err != nil {
		return UpdateAccessResult{}, storageError("could not load target", nil)
	}

	affectedID := addUserID
	notifType := notifGiven
	if removeUserID != "" {
		affectedID = removeUserID
		notifType = notifRemoved
	}
	affectedName := "A user"
	if user, err := s.store.GetUserByID(ctx, affectedID); err == nil {
		affectedName = user.Name
	}

	changed, err := access.Propagate(ctx, s.store, targetID, addUserID, removeUserID)
	if errors.Is(err, access.ErrConflictingChange) {
		return UpdateAccessResult{}, validationError(err.Error())
	}
	if err != nil {
		return UpdateAccessResult{}, storageError("access propagation aborted partway",
			map[string]any{"changedCount": len(changed)})
	}

	message := fmt.Sprintf("%s was given access to %s", affectedName, target.Name)
	if notifType == notifRemoved {
		message = fmt.Sprintf("%s's access to %s was removed", affectedName, target.Name)
	}
	s.recordNotification(ctx, store.Notification{
		ID:         util.NewID("ntf"),
		Message:    message,
		Type:       notifType,
		By:         byID,
		FileType:   target.FileType,
		NodeID:     target.ID,
		SubjectID:  affectedID,
		Time:       time.Now().UTC(),
		Recipients: []store.Recipient{{UserID: affectedID}},
	})
	s.notifier.Notify(ctx, notify.EventStorageUpdated, map[string]any{"ownerId": target.OwnerID})

	updated, err := s.store.GetNode(ctx, targetID)
	if err != nil {
		return UpdateAccessResult{ChangedCount: len(changed), AllowedUsers: []store.User{}}, nil
	}
	users, err := s.store.UsersByIDs(ctx, updated.AllowedUsers)
	if err != nil {
		users = []store.User{}
	}
	return UpdateAccessResult{ChangedCount: len(changed), AllowedUsers: users}, nil
}

type CommonAccessResult struct {
	Count int          `json:"count"`
	Users []store.User `json:"users"`
}

// UsersWithFullAccess returns the users explicitly listed on every node in the
// folder's subtree. A public node anywhere beneath the folder empties the
// intersection, so the result is zero users whenever anything is public.
func (s *Service) UsersWithFullAccess(ctx context.Context, folderID string) (CommonAccessResult, error) {
	if strings.TrimSpace(folderID) == "" {
		return CommonAccessResult{}, invalidReference("folderId is required")
	}
	ids, err := access.CommonUsers(ctx, s.store, folderID)
	if err != nil {
		return CommonAccessResult{}, storageError("could not compute common access", nil)
	}
	users, err := s.store.UsersByIDs(ctx, ids)
	if err != nil {
		return CommonAccessResult{}, storageError("could not resolve users", nil)
	}
	return CommonAccessResult{Count: len(users), Users: users}, nil
}

// RequestAccess records an access request on a file and notifies its owner.
// The grant itself happens when the owner accepts.
func (s *Service) RequestAccess(ctx context.Context, fileID, userID string) (store.Notification, error) {
	node, err := s.GetNode(ctx, fileID)
	if err != nil {
		return store.Notification{}, err
	}
	requester, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Notification{}, notFound("requesting user does not resolve")
	}
	if err != nil {
		return store.Notification{}, storageError("could not resolve user", nil)
	}

	n := store.Notification{
		ID:         util.NewID("ntf"),
		Message:    fmt.Sprintf("%s requested access to %s", requester.Name, node.Name),
		Type:       notifAccessRequest,
		By:         requester.ID,
		FileType:   node.FileType,
		NodeID:     node.ID,
		SubjectID:  requester.ID,
		Time:       time.Now().UTC(),
		Recipients: []store.Recipient{{UserID: node.OwnerID}},
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return store.Notification{}, storageError("could not record request", nil)
	}
	s.notifier.Notify(ctx, notify.EventNewNotification, map[string]any{
		"id":      n.ID,
		"type":    n.Type,
		"message": n.Message,
	})
	return n, nil
}

// AcceptAccess resolves a pending access request: marks it accepted, grants
// the requester visibility on the requested node (propagated through any
// subtree), and notifies the requester.
func (s *Service) AcceptAccess(ctx context.Context, notificationID string) (UpdateAccessResult, error) {
	if strings.TrimSpace(notificationID) == "" {
		return UpdateAccessResult{}, invalidReference("notificationId is required")
	}
	request, err := s.store.GetNotification(ctx, notificationID)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateAccessResult{}, notFound("request does not resolve")
	}
	if err != nil {
		return UpdateAccessResult{}, storageError("could not load request", nil)
	}
	if request.Type != notifAccessRequest {
		return UpdateAccessResult{}, conflictError("notification is not a pending access request")
	}

	node, err := s.GetNode(ctx, request.NodeID)
	if err != nil {
		return UpdateAccessResult{}, err
	}

	if err := s.store.UpdateNotificationType(ctx, notificationID, notifAccepted); err != nil {
		return UpdateAccessResult{}, storageError("could not mark request accepted", nil)
	}

	changed, err := access.Propagate(ctx, s.store, node.ID, request.SubjectID, "")
	if err != nil {
		return UpdateAccessResult{}, storageError("access propagation aborted partway",
			map[string]any{"changedCount": len(changed)})
	}

	s.recordNotification(ctx, store.Notification{
		ID:         util.NewID("ntf"),
		Message:    fmt.Sprintf("You were granted access to %s", node.Name),
		Type:       notifGranted,
		By:         node.OwnerID,
		FileType:   node.FileType,
		NodeID:     node.ID,
		SubjectID:  request.SubjectID,
		Time:       time.Now().UTC(),
		Recipients: []store.Recipient{{UserID: request.SubjectID}},
	})
	return UpdateAccessResult{ChangedCount: len(changed), AllowedUsers: []store.User{}}, nil
}

func (s *Service) MarkNotificationSeen(ctx context.Context, notificationID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return validationError("userId is required")
	}
	n, err := s.store.GetNotification(ctx, notificationID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("notification does not resolve")
	}
	if err != nil {
		return storageError("could not load notification", nil)
	}

	found := false
	for i := range n.Recipients {
		if n.Recipients[i].UserID == userID {
			n.Recipients[i].Seen = true
			found = true
		}
	}
	if !found {
		return notFound("user is not a recipient of this notification")
	}
	if err := s.store.SetNotificationRecipients(ctx, notificationID, n.Recipients); err != nil {
		return storageError("could not update notification", nil)
	}
	return nil
}

func (s *Service) ListNotifications(ctx context.Context, userID string) ([]store.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("userId is required")
	}
	items, err := s.store.ListNotificationsFor(ctx, userID)
	if err != nil {
		return nil, storageError("could not list notifications", nil)
	}
	return items, nil
}
