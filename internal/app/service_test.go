package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"filehaven/api/internal/extract"
	"filehaven/api/internal/search"
	"filehaven/api/internal/store"
)

type memStore struct {
	nodes         map[string]store.Node
	users         map[string]store.User
	notifications map[string]store.Notification
	logs          []store.AccessLogEntry

	insertNodeErr error
	deleteNodeErr func(id string) error
}

func newMemStore() *memStore {
	return &memStore{
		nodes:         make(map[string]store.Node),
		users:         make(map[string]store.User),
		notifications: make(map[string]store.Notification),
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) InsertNode(_ context.Context, node store.Node) error {
	if m.insertNodeErr != nil {
		return m.insertNodeErr
	}
	m.nodes[node.ID] = node
	return nil
}

func (m *memStore) GetNode(_ context.Context, id string) (store.Node, error) {
	node, ok := m.nodes[id]
	if !ok {
		return store.Node{}, store.ErrNotFound
	}
	return node, nil
}

func (m *memStore) Children(_ context.Context, parentID *string) ([]store.Node, error) {
	out := make([]store.Node, 0)
	for _, node := range m.nodes {
		if parentID == nil && node.ParentID == nil {
			out = append(out, node)
		}
		if parentID != nil && node.ParentID != nil && *node.ParentID == *parentID {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) AllNodes(_ context.Context) ([]store.Node, error) {
	out := make([]store.Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) SiblingExists(_ context.Context, name, kind string, parentID *string) (bool, error) {
	for _, node := range m.nodes {
		if node.Name != name || node.Kind != kind {
			continue
		}
		if parentID == nil && node.ParentID == nil {
			return true, nil
		}
		if parentID != nil && node.ParentID != nil && *node.ParentID == *parentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetAllowedUsers(_ context.Context, id string, users []string) error {
	node, ok := m.nodes[id]
	if !ok {
		return store.ErrNotFound
	}
	node.AllowedUsers = users
	m.nodes[id] = node
	return nil
}

func (m *memStore) DeleteNode(_ context.Context, id string) error {
	if m.deleteNodeErr != nil {
		if err := m.deleteNodeErr(id); err != nil {
			return err
		}
	}
	if _, ok := m.nodes[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.nodes, id)
	return nil
}

func (m *memStore) StorageUsage(_ context.Context, ownerID string) (int64, error) {
	var total int64
	for _, node := range m.nodes {
		if node.Kind == store.KindFile && node.OwnerID == ownerID {
			total += node.SizeBytes
		}
	}
	return total, nil
}

func (m *memStore) InsertUser(_ context.Context, user store.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memStore) CountUsers(context.Context) (int, error) { return len(m.users), nil }

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := m.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memStore) ListUsers(context.Context) ([]store.User, error) {
	out := make([]store.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UsersByIDs(_ context.Context, ids []string) ([]store.User, error) {
	out := make([]store.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) InsertNotification(_ context.Context, n store.Notification) error {
	m.notifications[n.ID] = n
	return nil
}

func (m *memStore) GetNotification(_ context.Context, id string) (store.Notification, error) {
	n, ok := m.notifications[id]
	if !ok {
		return store.Notification{}, store.ErrNotFound
	}
	return n, nil
}

func (m *memStore) UpdateNotificationType(_ context.Context, id, notifType string) error {
	n, ok := m.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	n.Type = notifType
	m.notifications[id] = n
	return nil
}

func (m *memStore) SetNotificationRecipients(_ context.Context, id string, recipients []store.Recipient) error {
	n, ok := m.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	n.Recipients = recipients
	m.notifications[id] = n
	return nil
}

func (m *memStore) ListNotificationsFor(_ context.Context, userID string) ([]store.Notification, error) {
	out := make([]store.Notification, 0)
	for _, n := range m.notifications {
		for _, r := range n.Recipients {
			if r.UserID == userID {
				out = append(out, n)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

func (m *memStore) InsertAccessLog(_ context.Context, entry store.AccessLogEntry) error {
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) RecentFiles(_ context.Context, userID string, limit int) ([]store.RecentFile, error) {
	latest := make(map[string]time.Time)
	for _, entry := range m.logs {
		if entry.UserID != userID {
			continue
		}
		if entry.Timestamp.After(latest[entry.FileID]) {
			latest[entry.FileID] = entry.Timestamp
		}
	}
	out := make([]store.RecentFile, 0, len(latest))
	for fileID, at := range latest {
		if node, ok := m.nodes[fileID]; ok {
			out = append(out, store.RecentFile{Node: node, LastAccessed: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAccessed.After(out[j].LastAccessed) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeBlob struct {
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr func(path string) error
}

func (f *fakeBlob) Put(_ context.Context, path string, raw []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[path] = raw
	return nil
}

func (f *fakeBlob) Delete(_ context.Context, path string) error {
	if f.deleteErr != nil {
		if err := f.deleteErr(path); err != nil {
			return err
		}
	}
	f.deleted = append(f.deleted, path)
	delete(f.objects, path)
	return nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event string, _ any) {
	f.events = append(f.events, event)
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		if f.dim > 0 {
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}

type fakeSearcher struct {
	results []search.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, string, int, float64) ([]search.Result, error) {
	return f.results, f.err
}

func newTestService(st *memStore) (*Service, *fakeBlob, *fakeNotifier) {
	blobs := &fakeBlob{objects: make(map[string][]byte)}
	notifier := &fakeNotifier{}
	svc := &Service{
		store:    st,
		blobs:    blobs,
		extract:  extract.New(),
		embedder: &fakeEmbedder{dim: store.EmbeddingDim},
		searcher: &fakeSearcher{},
		notifier: notifier,
	}
	return svc, blobs, notifier
}

func seedUser(st *memStore, id, name string) {
	st.users[id] = store.User{ID: id, Name: name, Email: id + "@example.com"}
}

func seedNode(st *memStore, node store.Node) {
	st.nodes[node.ID] = node
}

func strptr(s string) *string { return &s }

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s (message: %s)", domainErr.Code, code, domainErr.Message)
	}
}

func TestCreateFolderRejectsDuplicateName(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "reports", OwnerID: "u1", Path: "uploads/reports"})
	svc, _, _ := newTestService(st)

	_, err := svc.CreateFolder(context.Background(), CreateFolderInput{Name: "reports", OwnerID: "u1"})
	wantCode(t, err, "CONFLICT")
}

func TestCreateFolderBuildsPathUnderParent(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "reports", OwnerID: "u1", Path: "uploads/reports"})
	svc, blobs, _ := newTestService(st)

	node, err := svc.CreateFolder(context.Background(), CreateFolderInput{
		Name: "2026", ParentID: strptr("f1"), OwnerID: "u1", AllowedUsers: []string{"u2", "u2", " "},
	})
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if node.Path != "uploads/reports/2026" {
		t.Errorf("path = %s, want uploads/reports/2026", node.Path)
	}
	if len(node.AllowedUsers) != 1 || node.AllowedUsers[0] != "u2" {
		t.Errorf("allowed users not normalized: %v", node.AllowedUsers)
	}
	if _, ok := blobs.objects[node.Path+"/"]; !ok {
		t.Error("folder marker object missing")
	}
}

func TestIngestFileStoresTextAndEmbedding(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	svc, blobs, notifier := newTestService(st)

	node, err := svc.IngestFile(context.Background(), IngestFileInput{
		Name: "notes.txt", OwnerID: "u1", FileType: "txt", AllowedUsers: []string{"u1", "u2"},
	}, []byte("quarterly invoice summary"))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if node.Content != "quarterly invoice summary" {
		t.Errorf("content = %q", node.Content)
	}
	if len(node.Embedding) != store.EmbeddingDim {
		t.Errorf("embedding length = %d, want %d", len(node.Embedding), store.EmbeddingDim)
	}
	if _, ok := blobs.objects["uploads/notes.txt"]; !ok {
		t.Error("blob not stored")
	}

	// The non-owner in allowedUsers gets an "added" notification.
	items, _ := st.ListNotificationsFor(context.Background(), "u2")
	if len(items) != 1 || items[0].Type != notifAdded {
		t.Fatalf("expected one added notification for u2, got %v", items)
	}
	if len(notifier.events) == 0 {
		t.Error("no events published")
	}
}

func TestIngestFileUnsupportedTypeSkipsEmbedding(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	svc, _, _ := newTestService(st)

	node, err := svc.IngestFile(context.Background(), IngestFileInput{
		Name: "photo.png", OwnerID: "u1", FileType: "png",
	}, []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if node.Content != "" || len(node.Embedding) != 0 {
		t.Errorf("unsupported type should carry no text or embedding, got %q / %d floats",
			node.Content, len(node.Embedding))
	}
}

func TestIngestFileRejectsWrongEmbeddingLength(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	svc, blobs, _ := newTestService(st)
	svc.embedder = &fakeEmbedder{dim: 100}

	_, err := svc.IngestFile(context.Background(), IngestFileInput{
		Name: "notes.txt", OwnerID: "u1", FileType: "txt",
	}, []byte("some text"))
	wantCode(t, err, "COLLABORATOR_ERROR")
	if len(st.nodes) != 0 {
		t.Error("node persisted despite collaborator failure")
	}
	if len(blobs.objects) != 0 {
		t.Error("blob written despite collaborator failure")
	}
}

func TestIngestFileCleansBlobWhenInsertFails(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	st.insertNodeErr = fmt.Errorf("insert exploded")
	svc, blobs, _ := newTestService(st)

	_, err := svc.IngestFile(context.Background(), IngestFileInput{
		Name: "notes.txt", OwnerID: "u1", FileType: "txt",
	}, []byte("some text"))
	wantCode(t, err, "STORAGE_ERROR")
	if len(blobs.objects) != 0 {
		t.Error("orphaned blob left after failed insert")
	}
}

func TestDeleteSubtreeBestEffortBlobCleanup(t *testing.T) {
	st := newMemStore()
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "docs", OwnerID: "u1", Path: "uploads/docs"})
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a.txt", ParentID: strptr("f1"), OwnerID: "u1", Path: "uploads/docs/a.txt"})
	seedNode(st, store.Node{ID: "b", Kind: store.KindFile, Name: "b.txt", ParentID: strptr("f1"), OwnerID: "u1", Path: "uploads/docs/b.txt"})
	svc, blobs, _ := newTestService(st)
	blobs.deleteErr = func(path string) error {
		if strings.HasSuffix(path, "b.txt") {
			return fmt.Errorf("object store down")
		}
		return nil
	}

	result, err := svc.DeleteSubtree(context.Background(), "f1", "u1")
	if err != nil {
		t.Fatalf("DeleteSubtree failed: %v", err)
	}
	if result.Deleted != 3 {
		t.Errorf("deleted = %d, want 3", result.Deleted)
	}
	if len(st.nodes) != 0 {
		t.Errorf("%d node records left behind", len(st.nodes))
	}
	failures := 0
	for _, outcome := range result.Outcomes {
		if !outcome.BlobDeleted {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("blob failures = %d, want 1", failures)
	}
}

func TestDeleteSubtreeAbortsOnRecordFailure(t *testing.T) {
	st := newMemStore()
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "docs", OwnerID: "u1", Path: "uploads/docs"})
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a.txt", ParentID: strptr("f1"), OwnerID: "u1", Path: "uploads/docs/a.txt"})
	seedNode(st, store.Node{ID: "b", Kind: store.KindFile, Name: "b.txt", ParentID: strptr("f1"), OwnerID: "u1", Path: "uploads/docs/b.txt"})
	svc, _, _ := newTestService(st)
	st.deleteNodeErr = func(id string) error {
		if id == "b" {
			return fmt.Errorf("record delete failed")
		}
		return nil
	}

	// Deletion order is a, b, f1: a goes, b fails, f1 is never reached.
	_, err := svc.DeleteSubtree(context.Background(), "f1", "u1")
	wantCode(t, err, "STORAGE_ERROR")
	if _, ok := st.nodes["a"]; ok {
		t.Error("node a should have been deleted before the failure")
	}
	if _, ok := st.nodes["b"]; !ok {
		t.Error("node b should remain after its failed delete")
	}
	if _, ok := st.nodes["f1"]; !ok {
		t.Error("folder should remain after the aborted traversal")
	}
}

func TestUpdateAccessGrantFloodsSubtree(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	seedUser(st, "u2", "Ben")
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "docs", OwnerID: "u1", AllowedUsers: []string{"u1"}, Path: "uploads/docs"})
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a.txt", ParentID: strptr("f1"), OwnerID: "u1", AllowedUsers: []string{"u1"}, Path: "uploads/docs/a.txt"})
	seedNode(st, store.Node{ID: "outside", Kind: store.KindFile, Name: "z.txt", OwnerID: "u1", AllowedUsers: []string{"u1"}, Path: "uploads/z.txt"})
	svc, _, _ := newTestService(st)

	result, err := svc.UpdateAccess(context.Background(), "f1", "u2", "", "u1")
	if err != nil {
		t.Fatalf("UpdateAccess failed: %v", err)
	}
	if result.ChangedCount != 2 {
		t.Errorf("changedCount = %d, want 2", result.ChangedCount)
	}
	for _, id := range []string{"f1", "a"} {
		if !st.nodes[id].Allows("u2") {
			t.Errorf("node %s missing granted user", id)
		}
	}
	if st.nodes["outside"].Allows("u2") {
		t.Error("grant leaked outside the subtree")
	}

	items, _ := st.ListNotificationsFor(context.Background(), "u2")
	if len(items) != 1 || items[0].Type != notifGiven {
		t.Fatalf("expected one given notification for u2, got %v", items)
	}
}

func TestUpdateAccessRejectsBothDirections(t *testing.T) {
	st := newMemStore()
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "docs", OwnerID: "u1"})
	svc, _, _ := newTestService(st)

	_, err := svc.UpdateAccess(context.Background(), "f1", "u2", "u3", "u1")
	wantCode(t, err, "VALIDATION_ERROR")
	_, err = svc.UpdateAccess(context.Background(), "f1", "", "", "u1")
	wantCode(t, err, "VALIDATION_ERROR")
}

func TestUpdateAccessIdempotentGrant(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	seedUser(st, "u2", "Ben")
	seedNode(st, store.Node{ID: "f1", Kind: store.KindFolder, Name: "docs", OwnerID: "u1", AllowedUsers: []string{"u1"}})
	svc, _, _ := newTestService(st)

	if _, err := svc.UpdateAccess(context.Background(), "f1", "u2", "", "u1"); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}
	first := append([]string(nil), st.nodes["f1"].AllowedUsers...)
	result, err := svc.UpdateAccess(context.Background(), "f1", "u2", "", "u1")
	if err != nil {
		t.Fatalf("second grant failed: %v", err)
	}
	if result.ChangedCount != 0 {
		t.Errorf("second grant changed %d nodes, want 0", result.ChangedCount)
	}
	second := st.nodes["f1"].AllowedUsers
	if len(first) != len(second) {
		t.Errorf("allowed set changed on repeat grant: %v vs %v", first, second)
	}
}

func TestRequestAndAcceptAccess(t *testing.T) {
	st := newMemStore()
	seedUser(st, "u1", "Asha")
	seedUser(st, "u2", "Ben")
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a.txt", OwnerID: "u1", AllowedUsers: []string{"u1"}, Path: "uploads/a.txt"})
	svc, _, _ := newTestService(st)

	request, err := svc.RequestAccess(context.Background(), "a", "u2")
	if err != nil {
		t.Fatalf("RequestAccess failed: %v", err)
	}
	ownerItems, _ := st.ListNotificationsFor(context.Background(), "u1")
	if len(ownerItems) != 1 || ownerItems[0].Type != notifAccessRequest {
		t.Fatalf("owner should hold the request notification, got %v", ownerItems)
	}

	result, err := svc.AcceptAccess(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("AcceptAccess failed: %v", err)
	}
	if result.ChangedCount != 1 {
		t.Errorf("changedCount = %d, want 1", result.ChangedCount)
	}
	if !st.nodes["a"].Allows("u2") {
		t.Error("requester not granted access")
	}
	if st.notifications[request.ID].Type != notifAccepted {
		t.Errorf("request type = %s, want %s", st.notifications[request.ID].Type, notifAccepted)
	}

	// Accepting the same request twice is a conflict.
	_, err = svc.AcceptAccess(context.Background(), request.ID)
	wantCode(t, err, "CONFLICT")
}

func TestMarkNotificationSeen(t *testing.T) {
	st := newMemStore()
	st.notifications["n1"] = store.Notification{
		ID: "n1", Type: notifAdded,
		Recipients: []store.Recipient{{UserID: "u2"}},
	}
	svc, _, _ := newTestService(st)

	if err := svc.MarkNotificationSeen(context.Background(), "n1", "u2"); err != nil {
		t.Fatalf("MarkNotificationSeen failed: %v", err)
	}
	if !st.notifications["n1"].Recipients[0].Seen {
		t.Error("recipient not marked seen")
	}

	err := svc.MarkNotificationSeen(context.Background(), "n1", "u9")
	wantCode(t, err, "NOT_FOUND")
}

func TestStorageUsageReport(t *testing.T) {
	st := newMemStore()
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a", OwnerID: "u1", SizeBytes: 1024 * 1024})
	seedNode(st, store.Node{ID: "b", Kind: store.KindFile, Name: "b", OwnerID: "u1", SizeBytes: 512 * 1024})
	seedNode(st, store.Node{ID: "c", Kind: store.KindFile, Name: "c", OwnerID: "u2", SizeBytes: 999})
	svc, _, _ := newTestService(st)

	report, err := svc.StorageUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("StorageUsage failed: %v", err)
	}
	if report.Bytes != 1024*1024+512*1024 {
		t.Errorf("bytes = %d", report.Bytes)
	}
	if report.Megabytes != 1.5 {
		t.Errorf("megabytes = %v, want 1.5", report.Megabytes)
	}
	if report.Readable != "1.50 MB" {
		t.Errorf("readable = %s, want 1.50 MB", report.Readable)
	}
}

func TestSearchValidatesInput(t *testing.T) {
	st := newMemStore()
	svc, _, _ := newTestService(st)

	_, err := svc.Search(context.Background(), "", "u1", 0, 0)
	wantCode(t, err, "VALIDATION_ERROR")
	_, err = svc.Search(context.Background(), "invoice", "", 0, 0)
	wantCode(t, err, "VALIDATION_ERROR")
}

func TestSearchMapsEmbedFailure(t *testing.T) {
	st := newMemStore()
	svc, _, _ := newTestService(st)
	svc.searcher = &fakeSearcher{err: fmt.Errorf("%w: endpoint down", search.ErrEmbedQuery)}

	_, err := svc.Search(context.Background(), "invoice", "u1", 0, 0)
	wantCode(t, err, "COLLABORATOR_ERROR")
}

func TestTrackAccessAndRecentFiles(t *testing.T) {
	st := newMemStore()
	seedNode(st, store.Node{ID: "a", Kind: store.KindFile, Name: "a.txt", OwnerID: "u1"})
	seedNode(st, store.Node{ID: "b", Kind: store.KindFile, Name: "b.txt", OwnerID: "u1"})
	svc, _, _ := newTestService(st)

	ctx := context.Background()
	if err := svc.TrackAccess(ctx, "u2", "a", ""); err != nil {
		t.Fatalf("TrackAccess failed: %v", err)
	}
	if err := svc.TrackAccess(ctx, "u2", "b", "download"); err != nil {
		t.Fatalf("TrackAccess failed: %v", err)
	}
	if st.logs[0].EventType != "view" {
		t.Errorf("default event type = %s, want view", st.logs[0].EventType)
	}

	items, err := svc.RecentFiles(ctx, "u2", 0)
	if err != nil {
		t.Fatalf("RecentFiles failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("recent files = %d, want 2", len(items))
	}
}

func TestBootstrapSeedsOnlyOnce(t *testing.T) {
	st := newMemStore()
	svc, _, _ := newTestService(st)

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	seeded := len(st.users)
	if seeded == 0 {
		t.Fatal("no users seeded on empty store")
	}
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}
	if len(st.users) != seeded {
		t.Errorf("second bootstrap added users: %d -> %d", seeded, len(st.users))
	}
}
