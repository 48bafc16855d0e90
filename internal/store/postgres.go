package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a referenced record does not resolve.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const nodeColumns = `id, kind, name, parent_id, owner_id, owner_name, allowed_users, size_bytes, file_type, path, content, embedding, created_at`

func scanNode(row interface{ Scan(...any) error }) (Node, error) {
	var (
		node         Node
		parentID     sql.NullString
		allowedBlob  []byte
		embeddingRaw []byte
	)
	err := row.Scan(&node.ID, &node.Kind, &node.Name, &parentID, &node.OwnerID,
		&node.OwnerName, &allowedBlob, &node.SizeBytes, &node.FileType,
		&node.Path, &node.Content, &embeddingRaw, &node.CreatedAt)
	if err != nil {
		return Node{}, err
	}
	if parentID.Valid {
		node.ParentID = &parentID.String
	}
	if err := json.Unmarshal(allowedBlob, &node.AllowedUsers); err != nil {
		return Node{}, fmt.Errorf("decode allowed users: %w", err)
	}
	if err := json.Unmarshal(embeddingRaw, &node.Embedding); err != nil {
		return Node{}, fmt.Errorf("decode embedding: %w", err)
	}
	return node, nil
}

func (s *PostgresStore) InsertNode(ctx context.Context, node Node) error {
	allowed, err := json.Marshal(emptyIfNil(node.AllowedUsers))
	if err != nil {
		return fmt.Errorf("encode allowed users: %w", err)
	}
	embedding, err := json.Marshal(node.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if node.Embedding == nil {
		embedding = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, node.ID, node.Kind, node.Name, node.ParentID, node.OwnerID, node.OwnerName,
		allowed, node.SizeBytes, node.FileType, node.Path, node.Content,
		embedding, node.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNode(ctx context.Context, id string) (Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id=$1`, id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, ErrNotFound
	}
	if err != nil {
		return Node{}, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

func (s *PostgresStore) Children(ctx context.Context, parentID *string) ([]Node, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE parent_id IS NULL ORDER BY name`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE parent_id=$1 ORDER BY name`, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (s *PostgresStore) AllNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (s *PostgresStore) FileNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE kind='file'`)
	if err != nil {
		return nil, fmt.Errorf("list file nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func collectNodes(rows *sql.Rows) ([]Node, error) {
	items := make([]Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		items = append(items, node)
	}
	return items, rows.Err()
}

// SiblingExists reports whether a node of the same name and kind already
// lives under the given parent.
func (s *PostgresStore) SiblingExists(ctx context.Context, name, kind string, parentID *string) (bool, error) {
	var exists bool
	var err error
	if parentID == nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM nodes WHERE name=$1 AND kind=$2 AND parent_id IS NULL)`,
			name, kind).Scan(&exists)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM nodes WHERE name=$1 AND kind=$2 AND parent_id=$3)`,
			name, kind, *parentID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check sibling: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SetAllowedUsers(ctx context.Context, id string, users []string) error {
	allowed, err := json.Marshal(emptyIfNil(users))
	if err != nil {
		return fmt.Errorf("encode allowed users: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE nodes SET allowed_users=$2 WHERE id=$1`, id, allowed)
	if err != nil {
		return fmt.Errorf("update allowed users: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteNode(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// StorageUsage sums the sizes of all file nodes owned by ownerID.
func (s *PostgresStore) StorageUsage(ctx context.Context, ownerID string) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM nodes WHERE owner_id=$1 AND kind='file'`,
		ownerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("storage usage: %w", err)
	}
	return total.Int64, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, department, created_at FROM users WHERE id=$1`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Department, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, department, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, user.ID, user.Name, user.Email, user.Role, user.Department, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, role, department, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Department, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// UsersByIDs resolves a set of user ids to full records, skipping unknowns.
func (s *PostgresStore) UsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	blob, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, department, created_at
		FROM users
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
		ORDER BY name
	`, blob)
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0, len(ids))
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Department, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	if n.Recipients == nil {
		recipients = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, message, parent, type, by_id, file_type, node_id, subject_id, time, recipients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, n.ID, n.Message, n.Parent, n.Type, n.By, n.FileType, n.NodeID, n.SubjectID, n.Time, recipients)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, message, parent, type, by_id, file_type, node_id, subject_id, time, recipients
		FROM notifications WHERE id=$1
	`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateNotificationType(ctx context.Context, id, notifType string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET type=$2 WHERE id=$1`, id, notifType)
	if err != nil {
		return fmt.Errorf("update notification type: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetNotificationRecipients(ctx context.Context, id string, recipients []Recipient) error {
	blob, err := json.Marshal(recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET recipients=$2 WHERE id=$1`, id, blob)
	if err != nil {
		return fmt.Errorf("update recipients: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListNotificationsFor(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, parent, type, by_id, file_type, node_id, subject_id, time, recipients
		FROM notifications
		WHERE recipients @> $1::jsonb
		ORDER BY time DESC
	`, fmt.Sprintf(`[{"userId": %q}]`, userID))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var (
		n    Notification
		blob []byte
	)
	if err := row.Scan(&n.ID, &n.Message, &n.Parent, &n.Type, &n.By, &n.FileType, &n.NodeID, &n.SubjectID, &n.Time, &blob); err != nil {
		return Notification{}, err
	}
	if err := json.Unmarshal(blob, &n.Recipients); err != nil {
		return Notification{}, fmt.Errorf("decode recipients: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) InsertAccessLog(ctx context.Context, entry AccessLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_access_log (user_id, file_id, event_type, timestamp)
		VALUES ($1, $2, $3, $4)
	`, entry.UserID, entry.FileID, entry.EventType, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// RecentFiles returns the files the user touched most recently, newest first.
func (s *PostgresStore) RecentFiles(ctx context.Context, userID string, limit int) ([]RecentFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedNodeColumns("n")+`, r.last_accessed
		FROM (
			SELECT file_id, MAX(timestamp) AS last_accessed
			FROM file_access_log
			WHERE user_id=$1
			GROUP BY file_id
			ORDER BY last_accessed DESC
			LIMIT $2
		) r
		JOIN nodes n ON n.id = r.file_id
		ORDER BY r.last_accessed DESC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent files: %w", err)
	}
	defer rows.Close()

	items := make([]RecentFile, 0, limit)
	for rows.Next() {
		var (
			item         RecentFile
			parentID     sql.NullString
			allowedBlob  []byte
			embeddingRaw []byte
			lastAccessed time.Time
		)
		err := rows.Scan(&item.Node.ID, &item.Node.Kind, &item.Node.Name, &parentID,
			&item.Node.OwnerID, &item.Node.OwnerName, &allowedBlob, &item.Node.SizeBytes,
			&item.Node.FileType, &item.Node.Path, &item.Node.Content, &embeddingRaw,
			&item.Node.CreatedAt, &lastAccessed)
		if err != nil {
			return nil, fmt.Errorf("scan recent file: %w", err)
		}
		if parentID.Valid {
			item.Node.ParentID = &parentID.String
		}
		if err := json.Unmarshal(allowedBlob, &item.Node.AllowedUsers); err != nil {
			return nil, fmt.Errorf("decode allowed users: %w", err)
		}
		if err := json.Unmarshal(embeddingRaw, &item.Node.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		item.LastAccessed = lastAccessed
		items = append(items, item)
	}
	return items, rows.Err()
}

func prefixedNodeColumns(alias string) string {
	return alias + ".id, " + alias + ".kind, " + alias + ".name, " + alias + ".parent_id, " +
		alias + ".owner_id, " + alias + ".owner_name, " + alias + ".allowed_users, " +
		alias + ".size_bytes, " + alias + ".file_type, " + alias + ".path, " +
		alias + ".content, " + alias + ".embedding, " + alias + ".created_at"
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
