package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// SessionContext owns the process-scoped shared resources of one invocation:
// the single reusable browser handle (started lazily on the first method
// that needs it), the plain HTTP client, the rate limiter applied before
// network-bound methods, and the optional debug sink directory. It is torn
// down once at invocation end.
type SessionContext struct {
	httpClient *HTTPClient
	limiter    *rate.Limiter
	debugDir   string
	logger     *zap.Logger

	browserCfg  domain.BrowserConfig
	downloadDir string

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewSessionContext creates a session. The browser is not started until the
// first Page call.
func NewSessionContext(fetchCfg domain.FetchConfig, batchCfg domain.BatchConfig, browserCfg domain.BrowserConfig, logger *zap.Logger) (*SessionContext, error) {
	httpClient, err := NewHTTPClient(fetchCfg.Timeout, fetchCfg.UserAgent)
	if err != nil {
		return nil, err
	}

	rps := batchCfg.RateLimit
	if rps <= 0 {
		rps = 1.0
	}

	return &SessionContext{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		debugDir:   fetchCfg.DebugDir,
		logger:     logger,
		browserCfg: browserCfg,
	}, nil
}

// HTTP returns the shared plain HTTP client
func (s *SessionContext) HTTP() *HTTPClient {
	return s.httpClient
}

// Wait implements domain.Pacer: it blocks until the token bucket grants a
// slot. Burst is 1, so album pacing is strict-interval.
func (s *SessionContext) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// DownloadDir returns the directory the browser writes native downloads to,
// creating a per-invocation temp dir on first use.
func (s *SessionContext) DownloadDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadDir != "" {
		return s.downloadDir, nil
	}
	if s.browserCfg.DownloadDir != "" {
		if err := os.MkdirAll(s.browserCfg.DownloadDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
		s.downloadDir = s.browserCfg.DownloadDir
		return s.downloadDir, nil
	}
	dir, err := os.MkdirTemp("", "sharefetch-dl-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	s.downloadDir = dir
	return dir, nil
}

// Page checks an independent browser tab out of the shared handle, starting
// the browser on first use. Concurrent workers each get their own tab; no
// two workers share one. The returned cancel closes only the tab.
func (s *SessionContext) Page(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.ensureBrowser(); err != nil {
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	bound, cancel := bindLifetime(ctx, tabCtx, tabCancel)
	return bound, cancel, nil
}

// bindLifetime ties a tab context to its caller: the caller's deadline bounds
// the tab, and cancelling the caller (item budget, SIGINT) tears the tab down
// even though the tab descends from the shared browser context, not from the
// caller.
func bindLifetime(caller, tab context.Context, tabCancel context.CancelFunc) (context.Context, context.CancelFunc) {
	bound := tab
	boundCancel := tabCancel
	if deadline, ok := caller.Deadline(); ok {
		var timeoutCancel context.CancelFunc
		bound, timeoutCancel = context.WithDeadline(tab, deadline)
		boundCancel = func() {
			timeoutCancel()
			tabCancel()
		}
	}
	stop := context.AfterFunc(caller, boundCancel)
	return bound, func() {
		stop()
		boundCancel()
	}
}

// ensureBrowser starts the shared browser exactly once.
func (s *SessionContext) ensureBrowser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx != nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", s.browserCfg.Headless),
		chromedp.WindowSize(s.browserCfg.WindowWidth, s.browserCfg.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if s.browserCfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.browserCfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run a no-op to start the browser now, so a missing Chrome binary
	// surfaces here instead of in the middle of a method chain.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return domain.NewEnvelope(domain.ErrInternal,
			"failed to start browser: "+err.Error(),
			"install Chrome or Chromium, or set browser.exec_path")
	}

	s.logger.Debug("Browser started",
		zap.Bool("headless", s.browserCfg.Headless),
		zap.Int("width", s.browserCfg.WindowWidth),
		zap.Int("height", s.browserCfg.WindowHeight))

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return nil
}

// SettleDelay returns how long captures wait after navigation for CDN
// traffic to arrive.
func (s *SessionContext) SettleDelay() time.Duration {
	if s.browserCfg.SettleDelay <= 0 {
		return 3 * time.Second
	}
	return s.browserCfg.SettleDelay
}

// WriteAttempt implements domain.DebugSink: it best-effort persists a failed
// attempt's payload under the debug directory. Failures are logged at debug
// level and never reach the acquisition path.
func (s *SessionContext) WriteAttempt(itemIndex, tier int, name string, data []byte) {
	if s.debugDir == "" {
		return
	}
	if err := os.MkdirAll(s.debugDir, 0755); err != nil {
		s.logger.Debug("Failed to create debug directory", zap.Error(err))
		return
	}
	path := filepath.Join(s.debugDir, fmt.Sprintf("attempt-%d-%d-%s", itemIndex, tier, name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Debug("Failed to write debug artifact", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Debug("Wrote debug artifact", zap.String("path", path))
}

// Close tears the session down: the browser handle, its allocator, and the
// per-invocation download dir. Safe to call when the browser never started.
func (s *SessionContext) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.browserCtx = nil
	if s.downloadDir != "" && s.browserCfg.DownloadDir == "" {
		os.RemoveAll(s.downloadDir)
		s.downloadDir = ""
	}
}
