package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
	"github.com/yourusername/sharefetch-go/internal/infrastructure"
)

// AcquireOptions controls one engine invocation.
type AcquireOptions struct {
	// All enumerates album/folder members instead of resolving one item.
	All bool

	// Resume reuses the manifest of a prior run against the same URL and
	// skips items it already completed.
	Resume bool
}

// Engine resolves exactly one share link (or its album members) per
// invocation: detect the platform, normalize the URL, resolve items, then
// drive the fallback chain per item.
type Engine struct {
	cfg      *domain.Config
	sess     *infrastructure.SessionContext
	registry *infrastructure.Registry
	manifest domain.ManifestStore
	logger   *zap.Logger
}

// NewEngine creates an engine. manifest may be nil; runs are then not
// resumable.
func NewEngine(cfg *domain.Config, sess *infrastructure.SessionContext, registry *infrastructure.Registry, manifest domain.ManifestStore, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		sess:     sess,
		registry: registry,
		manifest: manifest,
		logger:   logger,
	}
}

// Detect returns the platform id for a URL without any network I/O.
func (e *Engine) Detect(rawURL string) domain.PlatformID {
	return e.registry.Detect(rawURL)
}

// Acquire runs the full pipeline for one share link and returns one record
// per item in item index order. The returned error is reserved for usage
// errors (unknown platform, malformed URL); per-item outcomes, including
// terminal failures, live in the records.
func (e *Engine) Acquire(ctx context.Context, rawURL string, opts AcquireOptions) ([]domain.ResultRecord, error) {
	platform := e.registry.Detect(rawURL)
	if platform == domain.PlatformUnknown {
		return nil, domain.NewEnvelope(domain.ErrUsage,
			"no supported platform recognizes this URL: "+rawURL,
			"supported platforms: icloud, dropbox, gphotos, gdrive")
	}

	adapter, ok := e.registry.Adapter(platform)
	if !ok {
		return nil, domain.NewEnvelope(domain.ErrInternal,
			fmt.Sprintf("detected platform %q has no adapter", platform), "")
	}

	normalized := adapter.Normalize(rawURL)
	e.logger.Info("Resolved platform",
		zap.String("platform", string(platform)),
		zap.String("url", normalized),
		zap.Bool("all", opts.All))

	items, err := adapter.ResolveItems(ctx, normalized, domain.ResolveOptions{All: opts.All})
	if err != nil {
		// Resolution failures (login walls, dead links) are per-link
		// outcomes, reported as a record like any other terminal error.
		env := domain.AsEnvelope(err)
		return []domain.ResultRecord{domain.NewFailureRecord(0, platform, env)}, nil
	}
	if len(items) == 0 {
		return []domain.ResultRecord{domain.NewFailureRecord(0, platform,
			domain.NewEnvelope(domain.ErrNotFound, "the link resolved to no items", ""))}, nil
	}

	executor := NewStrategyExecutor(ExecutorOptions{
		BrowserFallback: e.cfg.Fetch.BrowserFallback,
		AcceptNonImage:  e.cfg.Fetch.IncludeNonImageMedia,
		ItemTimeout:     e.cfg.Fetch.Timeout,
		MaxRetries:      e.cfg.Batch.MaxRetries,
		RetryDelay:      e.cfg.Batch.RetryDelay,
	}, albumPacer(e.sess, len(items)), e.sess, e.logger)

	methods := adapter.Methods()

	if len(items) == 1 {
		orchestrator := NewBatchOrchestrator(executor, nil, 1, e.writeResult, e.logger)
		return orchestrator.Run(ctx, nil, items, methods), nil
	}

	run := e.resolveRun(normalized, platform, len(items), opts.Resume)
	orchestrator := NewBatchOrchestrator(executor, e.manifest, e.cfg.Batch.Jobs, e.writeResult, e.logger)
	return orchestrator.Run(ctx, run, items, methods), nil
}

// albumPacer returns the pacer for a run. Rate limiting paces album members
// against each other; a single-item invocation has nothing to pace, so it
// skips the token bucket entirely.
func albumPacer(pacer domain.Pacer, itemCount int) domain.Pacer {
	if itemCount > 1 {
		return pacer
	}
	return nil
}

// resolveRun finds the run to resume or registers a new one. Manifest
// trouble degrades to a non-resumable run rather than failing the batch.
func (e *Engine) resolveRun(normalizedURL string, platform domain.PlatformID, itemCount int, resume bool) *domain.BatchRun {
	if e.manifest == nil {
		return nil
	}

	if resume {
		prior, err := e.manifest.FindLatestRunByURL(normalizedURL)
		if err != nil {
			e.logger.Warn("Failed to look up prior run", zap.Error(err))
		} else if prior != nil && prior.ItemCount == itemCount {
			e.logger.Info("Resuming prior run", zap.String("run_id", prior.ID))
			return prior
		} else if prior != nil {
			e.logger.Warn("Prior run has a different item count, starting fresh",
				zap.Int("prior", prior.ItemCount),
				zap.Int("current", itemCount))
		}
	}

	run := &domain.BatchRun{
		ID:        uuid.New().String(),
		URL:       normalizedURL,
		Platform:  platform,
		ItemCount: itemCount,
	}
	if err := e.manifest.CreateRun(run); err != nil {
		e.logger.Warn("Failed to register run, resume disabled for this batch", zap.Error(err))
		return nil
	}
	return run
}

// writeResult persists accepted bytes under the output directory. The
// filename comes from the platform's hint when one exists, otherwise from
// the item index and the validated format.
func (e *Engine) writeResult(item domain.ResolvedItem, result *domain.AcquireResult) (string, error) {
	dir := e.cfg.Fetch.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := sanitizeFilename(result.FilenameHint)
	if name == "" {
		name = fmt.Sprintf("item-%03d.%s", item.ItemIndex, extensionForMIME(result.MIME))
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, result.Bytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// sanitizeFilename strips path separators and traversal from a
// platform-provided name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// extensionForMIME maps validated MIME types to file extensions.
func extensionForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/svg+xml":
		return "svg"
	case "video/quicktime":
		return "mov"
	}
	for _, prefix := range []string{"image/", "video/", "audio/"} {
		if ext, ok := strings.CutPrefix(mime, prefix); ok && ext != "" {
			return ext
		}
	}
	return "bin"
}
