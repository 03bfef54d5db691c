package database

import "time"

// ObjectState is the lifecycle state of a ledger row.
type ObjectState string

const (
	StateLive          ObjectState = "live"
	StatePendingDelete ObjectState = "pending_delete"
	StateDeleted       ObjectState = "deleted"
)

// Object is one ledger row.
type Object struct {
	Key         string      `json:"key"`
	Class       string      `json:"class"`
	SourceURL   string      `json:"sourceUrl,omitempty"`
	ContentType string      `json:"contentType"`
	Size        int64       `json:"size"`
	State       ObjectState `json:"state"`
	Attempts    int         `json:"attempts"`
	LastError   string      `json:"lastError,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
