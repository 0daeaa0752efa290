package domain

import "time"

// BatchItemStatus represents the manifest state of one album item
type BatchItemStatus string

const (
	ItemPending   BatchItemStatus = "pending"
	ItemCompleted BatchItemStatus = "completed"
	ItemFailed    BatchItemStatus = "failed"
)

// BatchRun records one album invocation so a partially completed run can be
// resumed. URL is the normalized album URL.
type BatchRun struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	URL       string     `json:"url" gorm:"not null;index"`
	Platform  PlatformID `json:"platform" gorm:"not null"`
	ItemCount int        `json:"item_count"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// BatchItem records the outcome of one item within a run. RecordJSON holds
// the emitted ResultRecord so resumed runs can replay completed lines.
type BatchItem struct {
	RunID      string          `json:"run_id" gorm:"primaryKey"`
	ItemIndex  int             `json:"item_index" gorm:"primaryKey;autoIncrement:false"`
	Status     BatchItemStatus `json:"status" gorm:"not null;index"`
	RecordJSON string          `json:"record_json,omitempty" gorm:"type:text"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// ManifestStore persists batch runs for resumability.
type ManifestStore interface {
	// CreateRun registers a new run
	CreateRun(run *BatchRun) error

	// FindLatestRunByURL returns the most recent run for a normalized URL,
	// or nil if none exists
	FindLatestRunByURL(url string) (*BatchRun, error)

	// SaveItem upserts the outcome of one item
	SaveItem(item *BatchItem) error

	// CompletedItems returns the completed items of a run keyed by index
	CompletedItems(runID string) (map[int]*BatchItem, error)

	// Close releases the underlying store
	Close() error
}
