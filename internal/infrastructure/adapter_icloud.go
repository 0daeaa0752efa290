package infrastructure

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

const (
	icloudDomain        = "icloud.com"
	icloudContentDomain = "icloud-content.com"

	// CDN responses below this are interface sprites and thumbnails, not
	// photo renditions.
	icloudCaptureByteFloor = 50 * 1024

	// Element screenshots below this area are collapsed or placeholder
	// image elements.
	icloudShotMinWidth  = 400
	icloudShotMinHeight = 300

	icloudPhotoSelector    = "img.photo, div.photo-container img, img"
	icloudDownloadSelector = `button[aria-label="Download"]`
)

// ICloudAdapter handles iCloud shared album and photo links. iCloud renders
// everything client-side behind opaque tokens, so every method here rides
// the browser; there is no raw-content URL variant to rewrite.
type ICloudAdapter struct {
	sess   *SessionContext
	logger *zap.Logger
}

// NewICloudAdapter creates an iCloud adapter
func NewICloudAdapter(sess *SessionContext, logger *zap.Logger) *ICloudAdapter {
	return &ICloudAdapter{sess: sess, logger: logger}
}

// Platform returns the platform this adapter handles
func (a *ICloudAdapter) Platform() domain.PlatformID {
	return domain.PlatformICloud
}

// Match reports whether the URL is an iCloud photo share link
func (a *ICloudAdapter) Match(rawURL string) bool {
	u, err := domain.ParseShareURL(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if !domain.HostWithinDomain(host, icloudDomain) {
		return false
	}
	if host == "share.icloud.com" || strings.HasPrefix(host, "share.") {
		return true
	}
	return strings.HasPrefix(u.Path, "/photos/") || strings.HasPrefix(u.Path, "/sharedalbum/")
}

// Normalize lowercases the host and trims trailing slashes; the album token
// lives in the fragment and is preserved untouched.
func (a *ICloudAdapter) Normalize(rawURL string) string {
	u, err := domain.ParseShareURL(rawURL)
	if err != nil {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	for len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// ResolveItems returns the single item for a photo link. For all=true on a
// shared album it enumerates members by loading the album page and recording
// the photo CDN requests in the order the grid issued them, which is the
// album's own order.
func (a *ICloudAdapter) ResolveItems(ctx context.Context, rawURL string, opts domain.ResolveOptions) ([]domain.ResolvedItem, error) {
	single := domain.ResolvedItem{
		Platform:  domain.PlatformICloud,
		SourceURL: rawURL,
		ItemIndex: 0,
	}
	if !opts.All {
		return []domain.ResolvedItem{single}, nil
	}

	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	observed, err := NavigateAndObserve(page, rawURL, a.sess.SettleDelay(), 6, func(respURL, mimeType string) bool {
		u, parseErr := domain.ParseShareURL(respURL)
		if parseErr != nil {
			return false
		}
		return domain.HostWithinDomain(u.Hostname(), icloudContentDomain) &&
			strings.HasPrefix(mimeType, "image/")
	})
	if err != nil {
		return nil, err
	}
	if len(observed) == 0 {
		// Not a collection, or an album that rendered a single photo.
		return []domain.ResolvedItem{single}, nil
	}

	seen := make(map[string]bool)
	var items []domain.ResolvedItem
	for _, resp := range observed {
		key := icloudAssetKey(resp.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, domain.ResolvedItem{
			Platform:    domain.PlatformICloud,
			SourceURL:   rawURL,
			ItemIndex:   len(items),
			AlbumMember: true,
			DirectURL:   resp.URL,
		})
	}

	a.logger.Info("Enumerated iCloud album",
		zap.Int("members", len(items)),
		zap.Int("responses_observed", len(observed)))
	return items, nil
}

// Methods returns the fallback chain. Tier 1 preserves original bytes; each
// later tier trades fidelity for reliability.
func (a *ICloudAdapter) Methods() []domain.AcquireMethod {
	return []domain.AcquireMethod{
		{
			Name:            "download-control",
			RequiresBrowser: true,
			NetworkBound:    true,
			Execute:         a.executeDownloadControl,
		},
		{
			Name:            "cdn-capture",
			RequiresBrowser: true,
			NetworkBound:    true,
			MinBytes:        icloudCaptureByteFloor,
			Execute:         a.executeCDNCapture,
		},
		{
			Name:            "element-screenshot",
			RequiresBrowser: true,
			NetworkBound:    true,
			MinWidth:        icloudShotMinWidth,
			MinHeight:       icloudShotMinHeight,
			Execute:         a.executeElementScreenshot,
		},
		{
			Name:            "viewport-screenshot",
			RequiresBrowser: true,
			NetworkBound:    true,
			Preview:         true,
			Execute:         a.executeViewportScreenshot,
		},
	}
}

// executeDownloadControl drives iCloud's native download button, the only
// method that yields the photo's original bytes and format.
func (a *ICloudAdapter) executeDownloadControl(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	downloadDir, err := a.sess.DownloadDir()
	if err != nil {
		return nil, err
	}
	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	data, name, err := ClickAndDownload(page, item.SourceURL, icloudDownloadSelector, downloadDir,
		a.sess.SettleDelay(), 2*a.sess.SettleDelay()+10*time.Second)
	if err != nil {
		return nil, err
	}
	return &domain.RawAttempt{Bytes: data, ResponseStatus: 200, FilenameHint: name}, nil
}

// executeCDNCapture fetches the member's observed CDN URL directly when
// enumeration recorded one, otherwise keeps the largest same-origin CDN
// response observed while the page loads.
func (a *ICloudAdapter) executeCDNCapture(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	if item.DirectURL != "" {
		return a.sess.HTTP().FetchAttempt(ctx, item.DirectURL)
	}

	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	captured, err := NavigateAndCapture(page, item.SourceURL, a.sess.SettleDelay(), func(respURL, mimeType string) bool {
		u, parseErr := domain.ParseShareURL(respURL)
		if parseErr != nil {
			return false
		}
		return domain.HostWithinDomain(u.Hostname(), icloudContentDomain) &&
			strings.HasPrefix(mimeType, "image/")
	})
	if err != nil {
		return nil, err
	}

	best := LargestCapture(captured, icloudCaptureByteFloor)
	if best == nil {
		return nil, domain.NewEnvelope(domain.ErrCaptureFailure,
			"no photo CDN response above the size floor was observed", "")
	}
	return &domain.RawAttempt{
		Bytes:               best.Body,
		DeclaredContentType: best.MimeType,
		ResponseStatus:      best.Status,
	}, nil
}

func (a *ICloudAdapter) executeElementScreenshot(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	buf, err := ElementScreenshot(page, item.SourceURL, icloudPhotoSelector, a.sess.SettleDelay())
	if err != nil {
		return nil, err
	}
	return &domain.RawAttempt{Bytes: buf, DeclaredContentType: "image/png", ResponseStatus: 200}, nil
}

func (a *ICloudAdapter) executeViewportScreenshot(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	buf, err := ViewportScreenshot(page, item.SourceURL, a.sess.SettleDelay())
	if err != nil {
		return nil, err
	}
	return &domain.RawAttempt{Bytes: buf, DeclaredContentType: "image/png", ResponseStatus: 200}, nil
}

// icloudAssetKey collapses rendition variants of one asset so an album
// member served at several sizes enumerates once. Variants share the CDN
// path and differ only in query parameters, so the path is the key.
func icloudAssetKey(respURL string) string {
	u, err := domain.ParseShareURL(respURL)
	if err != nil {
		return respURL
	}
	return u.Path
}
