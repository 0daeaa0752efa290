package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// memoryManifest is an in-memory ManifestStore for orchestrator tests.
type memoryManifest struct {
	mu    sync.Mutex
	runs  []*domain.BatchRun
	items map[string]map[int]*domain.BatchItem
}

func newMemoryManifest() *memoryManifest {
	return &memoryManifest{items: make(map[string]map[int]*domain.BatchItem)}
}

func (m *memoryManifest) CreateRun(run *domain.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryManifest) FindLatestRunByURL(url string) (*domain.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].URL == url {
			return m.runs[i], nil
		}
	}
	return nil, nil
}

func (m *memoryManifest) SaveItem(item *domain.BatchItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[item.RunID] == nil {
		m.items[item.RunID] = make(map[int]*domain.BatchItem)
	}
	m.items[item.RunID][item.ItemIndex] = item
	return nil
}

func (m *memoryManifest) CompletedItems(runID string) (map[int]*domain.BatchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	completed := make(map[int]*domain.BatchItem)
	for idx, item := range m.items[runID] {
		if item.Status == domain.ItemCompleted {
			completed[idx] = item
		}
	}
	return completed, nil
}

func (m *memoryManifest) Close() error { return nil }

func albumItems(n int) []domain.ResolvedItem {
	items := make([]domain.ResolvedItem, n)
	for i := range items {
		items[i] = domain.ResolvedItem{
			Platform:    domain.PlatformICloud,
			SourceURL:   "https://share.icloud.com/photos/abc",
			ItemIndex:   i,
			AlbumMember: true,
		}
	}
	return items
}

// indexSensitive builds a chain whose single method fails for the given item
// indexes and succeeds for the rest.
func indexSensitive(failAt map[int]bool) []domain.AcquireMethod {
	return []domain.AcquireMethod{{
		Name: "direct",
		Execute: func(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
			if failAt[item.ItemIndex] {
				return nil, domain.NewEnvelope(domain.ErrNotFound, "member deleted", "")
			}
			return pngAttempt()
		},
	}}
}

func TestRun_OneFailureDoesNotAbortSiblings(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	orchestrator := NewBatchOrchestrator(executor, nil, 2, nil, zap.NewNop())

	records := orchestrator.Run(context.Background(), nil, albumItems(3), indexSensitive(map[int]bool{1: true}))

	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i, rec.ItemIndex, "records must be in item index order")
		assert.Equal(t, domain.SchemaVersion, rec.SchemaVersion)
	}
	assert.True(t, records[0].OK)
	assert.False(t, records[1].OK)
	assert.Equal(t, domain.ErrNotFound, records[1].Error.Code)
	assert.True(t, records[2].OK)
}

func TestRun_WriterPathRecorded(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	writer := func(item domain.ResolvedItem, result *domain.AcquireResult) (string, error) {
		return fmt.Sprintf("/out/item-%03d.png", item.ItemIndex), nil
	}
	orchestrator := NewBatchOrchestrator(executor, nil, 1, writer, zap.NewNop())

	records := orchestrator.Run(context.Background(), nil, albumItems(2), indexSensitive(nil))

	assert.Equal(t, "/out/item-000.png", records[0].Path)
	assert.Equal(t, "/out/item-001.png", records[1].Path)
}

func TestRun_WriterFailureIsInternal(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	writer := func(item domain.ResolvedItem, result *domain.AcquireResult) (string, error) {
		return "", fmt.Errorf("disk full")
	}
	orchestrator := NewBatchOrchestrator(executor, nil, 1, writer, zap.NewNop())

	records := orchestrator.Run(context.Background(), nil, albumItems(1), indexSensitive(nil))

	require.False(t, records[0].OK)
	assert.Equal(t, domain.ErrInternal, records[0].Error.Code)
}

func TestRun_PersistsOutcomesToManifest(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	manifest := newMemoryManifest()
	run := &domain.BatchRun{ID: "run-1", URL: "https://share.icloud.com/photos/abc", ItemCount: 3}
	require.NoError(t, manifest.CreateRun(run))

	orchestrator := NewBatchOrchestrator(executor, manifest, 1, nil, zap.NewNop())
	orchestrator.Run(context.Background(), run, albumItems(3), indexSensitive(map[int]bool{2: true}))

	completed, err := manifest.CompletedItems("run-1")
	require.NoError(t, err)
	assert.Len(t, completed, 2)
	assert.Contains(t, completed, 0)
	assert.Contains(t, completed, 1)
	assert.NotContains(t, completed, 2)
}

func TestRun_ResumeReplaysCompletedItems(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	manifest := newMemoryManifest()
	run := &domain.BatchRun{ID: "run-1", URL: "https://share.icloud.com/photos/abc", ItemCount: 2}
	require.NoError(t, manifest.CreateRun(run))

	// Item 0 completed in a prior invocation.
	prior := domain.NewSuccessRecord(0, &domain.AcquireResult{
		Platform: domain.PlatformICloud,
		Method:   "cdn-capture",
		Tier:     2,
	}, "/out/item-000.png")
	data, err := json.Marshal(prior)
	require.NoError(t, err)
	require.NoError(t, manifest.SaveItem(&domain.BatchItem{
		RunID:      "run-1",
		ItemIndex:  0,
		Status:     domain.ItemCompleted,
		RecordJSON: string(data),
	}))

	executed := make(map[int]bool)
	var mu sync.Mutex
	methods := []domain.AcquireMethod{{
		Name: "direct",
		Execute: func(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
			mu.Lock()
			executed[item.ItemIndex] = true
			mu.Unlock()
			return pngAttempt()
		},
	}}

	orchestrator := NewBatchOrchestrator(executor, manifest, 1, nil, zap.NewNop())
	records := orchestrator.Run(context.Background(), run, albumItems(2), methods)

	require.Len(t, records, 2)
	assert.False(t, executed[0], "completed item must not be re-executed")
	assert.True(t, executed[1])

	// The replayed line matches the prior run's record.
	assert.True(t, records[0].OK)
	assert.Equal(t, "cdn-capture", records[0].Method)
	assert.Equal(t, "/out/item-000.png", records[0].Path)
}

func TestRun_CancelledItemsStillGetRecords(t *testing.T) {
	executor := newTestExecutor(ExecutorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orchestrator := NewBatchOrchestrator(executor, nil, 1, nil, zap.NewNop())
	records := orchestrator.Run(ctx, nil, albumItems(3), indexSensitive(nil))

	require.Len(t, records, 3)
	for _, rec := range records {
		assert.NotZero(t, rec.SchemaVersion, "every item gets a record even when cancelled")
	}
}
