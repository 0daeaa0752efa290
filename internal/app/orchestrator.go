package app

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// ItemWriter persists the bytes of one accepted result and returns the path
// recorded for downstream consumers. A nil writer leaves Path empty.
type ItemWriter func(item domain.ResolvedItem, result *domain.AcquireResult) (string, error)

// BatchOrchestrator runs the strategy executor per album item under a
// fixed-size worker pool. One result record is emitted per item, in item
// index order regardless of completion order; one item's terminal error
// never aborts its siblings.
type BatchOrchestrator struct {
	executor *StrategyExecutor
	manifest domain.ManifestStore
	jobs     int
	writer   ItemWriter
	logger   *zap.Logger
}

// NewBatchOrchestrator creates a batch orchestrator. manifest may be nil, in
// which case runs are not resumable.
func NewBatchOrchestrator(executor *StrategyExecutor, manifest domain.ManifestStore, jobs int, writer ItemWriter, logger *zap.Logger) *BatchOrchestrator {
	if jobs < 1 {
		jobs = 1
	}
	return &BatchOrchestrator{
		executor: executor,
		manifest: manifest,
		jobs:     jobs,
		writer:   writer,
		logger:   logger,
	}
}

// Run acquires every item and returns records in item index order. Items
// already completed in run (per the manifest) are replayed, not re-executed.
func (b *BatchOrchestrator) Run(ctx context.Context, run *domain.BatchRun, items []domain.ResolvedItem, methods []domain.AcquireMethod) []domain.ResultRecord {
	records := make([]domain.ResultRecord, len(items))
	completed := b.completedItems(run)

	work := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < b.jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				records[idx] = b.processItem(ctx, run, items[idx], methods)
			}
		}()
	}

	for idx := range items {
		if prior, ok := completed[items[idx].ItemIndex]; ok {
			if rec, ok := replayRecord(prior); ok {
				b.logger.Info("Skipping completed item",
					zap.Int("item", items[idx].ItemIndex))
				records[idx] = rec
				continue
			}
		}
		select {
		case work <- idx:
		case <-ctx.Done():
		}
	}
	close(work)
	wg.Wait()

	// Items never scheduled because the invocation was cancelled still get
	// a record, so the output remains one line per item.
	for idx := range records {
		if records[idx].SchemaVersion == 0 {
			records[idx] = domain.NewFailureRecord(items[idx].ItemIndex, items[idx].Platform,
				domain.NewEnvelope(domain.ErrNetwork, "invocation cancelled before item started", ""))
		}
	}

	return records
}

// processItem runs the chain for one item and persists its outcome.
func (b *BatchOrchestrator) processItem(ctx context.Context, run *domain.BatchRun, item domain.ResolvedItem, methods []domain.AcquireMethod) domain.ResultRecord {
	result, env := b.executor.Execute(ctx, item, methods)
	if env != nil {
		record := domain.NewFailureRecord(item.ItemIndex, item.Platform, env)
		b.saveItem(run, item.ItemIndex, domain.ItemFailed, record)
		return record
	}

	path := ""
	if b.writer != nil {
		var err error
		path, err = b.writer(item, result)
		if err != nil {
			record := domain.NewFailureRecord(item.ItemIndex, item.Platform,
				domain.NewEnvelope(domain.ErrInternal, "failed to write result: "+err.Error(), ""))
			b.saveItem(run, item.ItemIndex, domain.ItemFailed, record)
			return record
		}
	}

	record := domain.NewSuccessRecord(item.ItemIndex, result, path)
	b.saveItem(run, item.ItemIndex, domain.ItemCompleted, record)
	return record
}

func (b *BatchOrchestrator) completedItems(run *domain.BatchRun) map[int]*domain.BatchItem {
	if b.manifest == nil || run == nil {
		return nil
	}
	completed, err := b.manifest.CompletedItems(run.ID)
	if err != nil {
		b.logger.Warn("Failed to load manifest, re-executing all items", zap.Error(err))
		return nil
	}
	return completed
}

func (b *BatchOrchestrator) saveItem(run *domain.BatchRun, itemIndex int, status domain.BatchItemStatus, record domain.ResultRecord) {
	if b.manifest == nil || run == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		b.logger.Error("Failed to marshal record for manifest", zap.Error(err))
		return
	}
	if err := b.manifest.SaveItem(&domain.BatchItem{
		RunID:      run.ID,
		ItemIndex:  itemIndex,
		Status:     status,
		RecordJSON: string(data),
	}); err != nil {
		b.logger.Warn("Failed to persist item outcome", zap.Int("item", itemIndex), zap.Error(err))
	}
}

// replayRecord reconstructs the record a completed item emitted in a prior
// run. A corrupt stored record falls back to re-execution.
func replayRecord(item *domain.BatchItem) (domain.ResultRecord, bool) {
	var record domain.ResultRecord
	if err := json.Unmarshal([]byte(item.RecordJSON), &record); err != nil || record.SchemaVersion == 0 {
		return domain.ResultRecord{}, false
	}
	return record, true
}
