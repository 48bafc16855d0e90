package store

import "time"

const (
	KindFile   = "file"
	KindFolder = "folder"
)

// EmbeddingDim is the only embedding length a file node may carry besides zero.
const EmbeddingDim = 384

// Node is a file or folder in the hierarchical namespace. An empty
// AllowedUsers set means the node is public, not invisible.
type Node struct {
	ID           string
	Kind         string
	Name         string
	ParentID     *string
	OwnerID      string
	OwnerName    string
	AllowedUsers []string
	SizeBytes    int64
	FileType     string
	Path         string
	Content      string
	Embedding    []float32
	CreatedAt    time.Time
}

// IsPublic reports whether the node is visible to every user.
func (n Node) IsPublic() bool {
	return len(n.AllowedUsers) == 0
}

// Allows reports whether userID is explicitly listed on the node.
func (n Node) Allows(userID string) bool {
	for _, id := range n.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

type User struct {
	ID         string
	Name       string
	Email      string
	Role       string
	Department string
	CreatedAt  time.Time
}

// Recipient tracks per-user read state on a notification.
type Recipient struct {
	UserID string `json:"userId"`
	Seen   bool   `json:"seen"`
}

type Notification struct {
	ID         string
	Message    string
	Parent     string
	Type       string
	By         string
	FileType   string
	NodeID     string
	SubjectID  string
	Time       time.Time
	Recipients []Recipient
}

// AccessLogEntry records a single file interaction for the analytics views.
type AccessLogEntry struct {
	UserID    string
	FileID    string
	EventType string
	Timestamp time.Time
}

// RecentFile is a file joined with the moment the user last touched it.
type RecentFile struct {
	Node         Node
	LastAccessed time.Time
}
