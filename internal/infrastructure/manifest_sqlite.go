package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// SQLiteManifestStore implements ManifestStore using SQLite, so an album run
// interrupted halfway can resume without re-downloading completed members.
type SQLiteManifestStore struct {
	db *gorm.DB
}

// NewSQLiteManifestStore creates a new SQLite manifest store
func NewSQLiteManifestStore(dbPath string) (*SQLiteManifestStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}

	if err := db.AutoMigrate(&domain.BatchRun{}, &domain.BatchItem{}); err != nil {
		return nil, fmt.Errorf("failed to migrate manifest database: %w", err)
	}

	return &SQLiteManifestStore{db: db}, nil
}

// CreateRun registers a new batch run
func (s *SQLiteManifestStore) CreateRun(run *domain.BatchRun) error {
	return s.db.Create(run).Error
}

// FindLatestRunByURL returns the most recent run for a normalized URL
func (s *SQLiteManifestStore) FindLatestRunByURL(url string) (*domain.BatchRun, error) {
	var run domain.BatchRun
	err := s.db.Where("url = ?", url).Order("created_at DESC").First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// SaveItem upserts the outcome of one item
func (s *SQLiteManifestStore) SaveItem(item *domain.BatchItem) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "item_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "record_json", "updated_at"}),
	}).Create(item).Error
}

// CompletedItems returns the completed items of a run keyed by item index
func (s *SQLiteManifestStore) CompletedItems(runID string) (map[int]*domain.BatchItem, error) {
	var items []*domain.BatchItem
	err := s.db.Where("run_id = ? AND status = ?", runID, domain.ItemCompleted).
		Order("item_index ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	completed := make(map[int]*domain.BatchItem, len(items))
	for _, item := range items {
		completed[item.ItemIndex] = item
	}
	return completed, nil
}

// Close closes the database connection
func (s *SQLiteManifestStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
