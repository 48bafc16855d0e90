package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"path"
	"strings"
	"time"

	"filehaven/api/internal/access"
	"filehaven/api/internal/blob"
	"filehaven/api/internal/config"
	"filehaven/api/internal/embed"
	"filehaven/api/internal/extract"
	"filehaven/api/internal/notify"
	"filehaven/api/internal/search"
	"filehaven/api/internal/store"
	"filehaven/api/internal/util"
)

// Notification types, also used as event discriminators by subscribers.
const (
	notifAdded         = "added"
	notifGiven         = "given"
	notifRemoved       = "removed"
	notifDeleted       = "deleted"
	notifAccessRequest = "access_request"
	notifAccepted      = "accepted"
	notifGranted       = "granted"
)

const blobRoot = "uploads"

type dataStore interface {
	Ping(context.Context) error
	InsertNode(context.Context, store.Node) error
	GetNode(context.Context, string) (store.Node, error)
	Children(context.Context, *string) ([]store.Node, error)
	AllNodes(context.Context) ([]store.Node, error)
	SiblingExists(context.Context, string, string, *string) (bool, error)
	SetAllowedUsers(context.Context, string, []string) error
	DeleteNode(context.Context, string) error
	StorageUsage(context.Context, string) (int64, error)
	InsertUser(context.Context, store.User) error
	CountUsers(context.Context) (int, error)
	GetUserByID(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UsersByIDs(context.Context, []string) ([]store.User, error)
	InsertNotification(context.Context, store.Notification) error
	GetNotification(context.Context, string) (store.Notification, error)
	UpdateNotificationType(context.Context, string, string) error
	SetNotificationRecipients(context.Context, string, []store.Recipient) error
	ListNotificationsFor(context.Context, string) ([]store.Notification, error)
	InsertAccessLog(context.Context, store.AccessLogEntry) error
	RecentFiles(context.Context, string, int) ([]store.RecentFile, error)
}

type blobStore interface {
	Put(ctx context.Context, path string, raw []byte) error
	Delete(ctx context.Context, path string) error
}

type textExtractor interface {
	Text(raw []byte, kind string) (string, error)
}

type documentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type searcher interface {
	Search(ctx context.Context, query, userID string, topK int, threshold float64) ([]search.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    blobStore
	extract  textExtractor
	embedder documentEmbedder
	searcher searcher
	notifier notify.Notifier
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobs *blob.Store,
	extractor *extract.Extractor, embedder embed.Provider,
	searchService *search.Service, notifier notify.Notifier) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		blobs:    blobs,
		extract:  extractor,
		embedder: embedder,
		searcher: searchService,
		notifier: notifier,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds a usable user directory on an empty database so access
// pickers have something to offer on first run.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	seeds := []store.User{
		{Name: "Asha Raman", Email: "asha@filehaven.local", Role: "admin", Department: "Operations"},
		{Name: "Ben Okafor", Email: "ben@filehaven.local", Role: "user", Department: "Finance"},
		{Name: "Carla Mendes", Email: "carla@filehaven.local", Role: "user", Department: "Legal"},
		{Name: "Dmitri Volkov", Email: "dmitri@filehaven.local", Role: "user", Department: "Engineering"},
	}
	for _, seed := range seeds {
		seed.ID = util.NewID("usr")
		seed.CreatedAt = time.Now().UTC()
		if err := s.store.InsertUser(ctx, seed); err != nil {
			return err
		}
	}
	log.Printf("seeded %d users", len(seeds))
	return nil
}

type CreateFolderInput struct {
	Name         string
	ParentID     *string
	OwnerID      string
	AllowedUsers []string
}

func (s *Service) CreateFolder(ctx context.Context, in CreateFolderInput) (store.Node, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Node{}, validationError("name is required")
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return store.Node{}, validationError("ownerId is required")
	}

	owner, err := s.store.GetUserByID(ctx, in.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Node{}, notFound("owner does not resolve")
	}
	if err != nil {
		return store.Node{}, storageError("could not resolve owner", nil)
	}

	parentPath, err := s.resolveParentPath(ctx, in.ParentID)
	if err != nil {
		return store.Node{}, err
	}

	exists, err := s.store.SiblingExists(ctx, name, store.KindFolder, in.ParentID)
	if err != nil {
		return store.Node{}, storageError("could not check siblings", nil)
	}
	if exists {
		return store.Node{}, conflictError("a folder with this name already exists here")
	}

	node := store.Node{
		ID:           util.NewID("node"),
		Kind:         store.KindFolder,
		Name:         name,
		ParentID:     in.ParentID,
		OwnerID:      owner.ID,
		OwnerName:    owner.Name,
		AllowedUsers: normalizeUsers(in.AllowedUsers),
		Path:         path.Join(parentPath, name),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.blobs.Put(ctx, node.Path+"/", nil); err != nil {
		return store.Node{}, storageError("could not create folder backing path", nil)
	}
	if err := s.store.InsertNode(ctx, node); err != nil {
		return store.Node{}, storageError("could not persist folder", nil)
	}
	return node, nil
}

type IngestFileInput struct {
	Name         string
	ParentID     *string
	OwnerID      string
	FileType     string
	AllowedUsers []string
}

// IngestFile stores the raw bytes, extracts text, embeds it, and persists the
// node. Extraction and embedding run before any write so collaborator failures
// leave no partial state; only the insert-after-upload window needs cleanup.
func (s *Service) IngestFile(ctx context.Context, in IngestFileInput, raw []byte) (store.Node, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Node{}, validationError("name is required")
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return store.Node{}, validationError("ownerId is required")
	}

	owner, err := s.store.GetUserByID(ctx, in.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Node{}, notFound("owner does not resolve")
	}
	if err != nil {
		return store.Node{}, storageError("could not resolve owner", nil)
	}

	parentPath, err := s.resolveParentPath(ctx, in.ParentID)
	if err != nil {
		return store.Node{}, err
	}

	exists, err := s.store.SiblingExists(ctx, name, store.KindFile, in.ParentID)
	if err != nil {
		return store.Node{}, storageError("could not check siblings", nil)
	}
	if exists {
		return store.Node{}, conflictError("a file with this name already exists here")
	}

	text, err := s.extract.Text(raw, in.FileType)
	if err != nil {
		return store.Node{}, collaboratorError("text extraction failed", err.Error())
	}

	var embedding []float32
	if text != "" {
		vectors, err := s.embedder.EmbedDocuments(ctx, []string{text})
		if err != nil {
			return store.Node{}, collaboratorError("embedding failed", err.Error())
		}
		if len(vectors) != 1 || len(vectors[0]) != store.EmbeddingDim {
			return store.Node{}, collaboratorError(
				fmt.Sprintf("embedding must be %d floats", store.EmbeddingDim), nil)
		}
		embedding = vectors[0]
	}

	node := store.Node{
		ID:           util.NewID("node"),
		Kind:         store.KindFile,
		Name:         name,
		ParentID:     in.ParentID,
		OwnerID:      owner.ID,
		OwnerName:    owner.Name,
		AllowedUsers: normalizeUsers(in.AllowedUsers),
		SizeBytes:    int64(len(raw)),
		FileType:     strings.ToLower(strings.TrimSpace(in.FileType)),
		Path:         path.Join(parentPath, name),
		Content:      text,
		Embedding:    embedding,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.blobs.Put(ctx, node.Path, raw); err != nil {
		return store.Node{}, storageError("could not store file content", nil)
	}
	if err := s.store.InsertNode(ctx, node); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, node.Path); cleanupErr != nil {
			log.Printf("orphaned blob %s after failed insert: %v", node.Path, cleanupErr)
		}
		return store.Node{}, storageError("could not persist file", nil)
	}

	recipients := recipientsExcept(node.AllowedUsers, owner.ID)
	if len(recipients) > 0 {
		s.recordNotification(ctx, store.Notification{
			ID:         util.NewID("ntf"),
			Message:    fmt.Sprintf("%s shared %s with you", owner.Name, node.Name),
			Parent:     parentPath,
			Type:       notifAdded,
			By:         owner.ID,
			FileType:   node.FileType,
			NodeID:     node.ID,
			Time:       time.Now().UTC(),
			Recipients: recipients,
		})
	}
	s.notifier.Notify(ctx, notify.EventStorageUpdated, map[string]any{"ownerId": owner.ID})
	return node, nil
}

func (s *Service) GetNode(ctx context.Context, id string) (store.Node, error) {
	if strings.TrimSpace(id) == "" {
		return store.Node{}, invalidReference("node id is required")
	}
	node, err := s.store.GetNode(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Node{}, notFound("node does not resolve")
	}
	if err != nil {
		return store.Node{}, storageError("could not load node", nil)
	}
	return node, nil
}

func (s *Service) ListChildren(ctx context.Context, parentID *string, userID string) ([]store.Node, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("userId is required")
	}
	if parentID != nil {
		parent, err := s.store.GetNode(ctx, *parentID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("parent does not resolve")
		}
		if err != nil {
			return nil, storageError("could not load parent", nil)
		}
		if parent.Kind != store.KindFolder {
			return nil, validationError("parent must be a folder")
		}
	}
	nodes, err := access.VisibleChildren(ctx, s.store, parentID, userID)
	if err != nil {
		return nil, storageError("could not resolve visibility", nil)
	}
	return nodes, nil
}

func (s *Service) ListAll(ctx context.Context, userID string) ([]store.Node, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("userId is required")
	}
	nodes, err := access.VisibleTree(ctx, s.store, userID)
	if err != nil {
		return nil, storageError("could not resolve visibility", nil)
	}
	return nodes, nil
}

// NodeOutcome is the per-node result of a subtree deletion. Blob cleanup is
// best effort; a false BlobDeleted never blocks record removal.
type NodeOutcome struct {
	NodeID      string `json:"nodeId"`
	Name        string `json:"name"`
	BlobDeleted bool   `json:"blobDeleted"`
	BlobError   string `json:"blobError,omitempty"`
}

type DeleteResult struct {
	Deleted  int           `json:"deleted"`
	Outcomes []NodeOutcome `json:"outcomes"`
}

// DeleteSubtree removes the node and everything beneath it, children before
// parents. A failed record delete aborts the remaining traversal: nodes
// already processed stay deleted, and the partial outcomes travel back on the
// error so callers can inspect what happened.
func (s *Service) DeleteSubtree(ctx context.Context, id, deletedBy string) (DeleteResult, error) {
	root, err := s.GetNode(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	ordered, err := s.collectSubtree(ctx, root)
	if err != nil {
		return DeleteResult{}, storageError("could not walk subtree", nil)
	}

	result := DeleteResult{Outcomes: make([]NodeOutcome, 0, len(ordered))}
	for i := len(ordered) - 1; i >= 0; i-- {
		node := ordered[i]
		outcome := NodeOutcome{NodeID: node.ID, Name: node.Name, BlobDeleted: true}
		blobPath := node.Path
		if node.Kind == store.KindFolder {
			blobPath += "/"
		}
		if err := s.blobs.Delete(ctx, blobPath); err != nil {
			outcome.BlobDeleted = false
			outcome.BlobError = err.Error()
			log.Printf("blob cleanup failed for %s: %v", blobPath, err)
		}
		if err := s.store.DeleteNode(ctx, node.ID); err != nil {
			result.Outcomes = append(result.Outcomes, outcome)
			return result, storageError("subtree deletion aborted partway", result)
		}
		result.Deleted++
		result.Outcomes = append(result.Outcomes, outcome)
	}

	recipients := recipientsExcept(root.AllowedUsers, deletedBy)
	if len(recipients) > 0 {
		s.recordNotification(ctx, store.Notification{
			ID:         util.NewID("ntf"),
			Message:    fmt.Sprintf("%s was deleted", root.Name),
			Type:       notifDeleted,
			By:         deletedBy,
			FileType:   root.FileType,
			NodeID:     root.ID,
			Time:       time.Now().UTC(),
			Recipients: recipients,
		})
	}
	s.notifier.Notify(ctx, notify.EventStorageUpdated, map[string]any{"ownerId": root.OwnerID})
	return result, nil
}

// collectSubtree returns the subtree in parent-before-children order, so the
// reversed slice deletes children first.
func (s *Service) collectSubtree(ctx context.Context, root store.Node) ([]store.Node, error) {
	ordered := make([]store.Node, 0, 8)
	worklist := []store.Node{root}
	for len(worklist) > 0 {
		node := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		ordered = append(ordered, node)

		children, err := s.store.Children(ctx, &node.ID)
		if err != nil {
			return nil, err
		}
		worklist = append(worklist, children...)
	}
	return ordered, nil
}

func (s *Service) Search(ctx context.Context, query, userID string, topK int, threshold float64) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, validationError("query is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("userId is required")
	}
	results, err := s.searcher.Search(ctx, query, userID, topK, threshold)
	if errors.Is(err, search.ErrEmbedQuery) {
		return nil, collaboratorError("could not embed query", err.Error())
	}
	if err != nil {
		return nil, storageError("search failed", nil)
	}
	return results, nil
}

type StorageReport struct {
	Bytes     int64   `json:"bytes"`
	Megabytes float64 `json:"megabytes"`
	Readable  string  `json:"readable"`
}

func (s *Service) StorageUsage(ctx context.Context, ownerID string) (StorageReport, error) {
	if strings.TrimSpace(ownerID) == "" {
		return StorageReport{}, validationError("ownerId is required")
	}
	total, err := s.store.StorageUsage(ctx, ownerID)
	if err != nil {
		return StorageReport{}, storageError("could not compute storage usage", nil)
	}
	mb := float64(total) / (1024 * 1024)
	return StorageReport{
		Bytes:     total,
		Megabytes: math.Round(mb*100) / 100,
		Readable:  util.FormatBytes(total),
	}, nil
}

func (s *Service) TrackAccess(ctx context.Context, userID, fileID, eventType string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(fileID) == "" {
		return validationError("userId and fileId are required")
	}
	if eventType == "" {
		eventType = "view"
	}
	entry := store.AccessLogEntry{
		UserID:    userID,
		FileID:    fileID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.InsertAccessLog(ctx, entry); err != nil {
		return storageError("could not record access", nil)
	}
	return nil
}

func (s *Service) RecentFiles(ctx context.Context, userID string, limit int) ([]store.RecentFile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("userId is required")
	}
	if limit <= 0 {
		limit = 5
	}
	items, err := s.store.RecentFiles(ctx, userID, limit)
	if err != nil {
		return nil, storageError("could not load recent files", nil)
	}
	return items, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageError("could not list users", nil)
	}
	return users, nil
}

func (s *Service) resolveParentPath(ctx context.Context, parentID *string) (string, error) {
	if parentID == nil {
		return blobRoot, nil
	}
	if strings.TrimSpace(*parentID) == "" {
		return "", invalidReference("parentId must not be blank")
	}
	parent, err := s.store.GetNode(ctx, *parentID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound("parent does not resolve")
	}
	if err != nil {
		return "", storageError("could not load parent", nil)
	}
	if parent.Kind != store.KindFolder {
		return "", validationError("parent must be a folder")
	}
	return parent.Path, nil
}

// recordNotification persists the record and fires the event hook. Failures
// are logged, never surfaced: the operation that produced the notification has
// already succeeded.
func (s *Service) recordNotification(ctx context.Context, n store.Notification) {
	if err := s.store.InsertNotification(ctx, n); err != nil {
		log.Printf("notification %s not recorded: %v", n.Type, err)
		return
	}
	s.notifier.Notify(ctx, notify.EventNewNotification, map[string]any{
		"id":      n.ID,
		"type":    n.Type,
		"message": n.Message,
	})
}

func normalizeUsers(users []string) []string {
	out := make([]string, 0, len(users))
	seen := make(map[string]bool, len(users))
	for _, uid := range users {
		uid = strings.TrimSpace(uid)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		out = append(out, uid)
	}
	return out
}

func recipientsExcept(userIDs []string, excluded string) []store.Recipient {
	out := make([]store.Recipient, 0, len(userIDs))
	for _, uid := range userIDs {
		if uid == excluded {
			continue
		}
		out = append(out, store.Recipient{UserID: uid})
	}
	return out
}
