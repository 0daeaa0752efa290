package infrastructure

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

const (
	gphotosContentDomain = "googleusercontent.com"

	// The =s0 modifier asks the CDN for the original dimensions.
	gphotosOriginalModifier = "=s0"

	gphotosShotMinWidth  = 400
	gphotosShotMinHeight = 300

	gphotosPhotoSelector = `img[src*="googleusercontent"]`
)

// gphotosSizeSuffix matches the size-modifier suffix the Photos CDN appends
// to rendition URLs, e.g. "=w408-h306-no" or "=s1280".
var gphotosSizeSuffix = regexp.MustCompile(`=[swhd][0-9a-z-]*$`)

// GPhotosAdapter handles Google Photos share links, which arrive as
// redirecting short links. The real prize is the CDN base URL observed in
// network traffic: its shape is stable while the page's DOM structure is
// volatile, so enumeration prefers network signals over selectors.
type GPhotosAdapter struct {
	sess   *SessionContext
	logger *zap.Logger
}

// NewGPhotosAdapter creates a Google Photos adapter
func NewGPhotosAdapter(sess *SessionContext, logger *zap.Logger) *GPhotosAdapter {
	return &GPhotosAdapter{sess: sess, logger: logger}
}

// Platform returns the platform this adapter handles
func (a *GPhotosAdapter) Platform() domain.PlatformID {
	return domain.PlatformGPhotos
}

// Match reports whether the URL is a Google Photos share link
func (a *GPhotosAdapter) Match(rawURL string) bool {
	u, err := domain.ParseShareURL(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if domain.HostWithinDomain(host, "photos.app.goo.gl") {
		return true
	}
	if host == "photos.google.com" {
		return true
	}
	// Legacy short links: goo.gl/photos/<token>
	return domain.HostWithinDomain(host, "goo.gl") && strings.HasPrefix(u.Path, "/photos/")
}

// Normalize strips tracking parameters; the share token in the path and any
// key parameter are preserved.
func (a *GPhotosAdapter) Normalize(rawURL string) string {
	u, err := domain.ParseShareURL(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// ResolveItems follows the short link to the canonical share page and
// extracts CDN base URLs from network traffic. Single links resolve to one
// item carrying the base URL; albums enumerate every member in the order
// the grid requested them, falling back to DOM selectors only when no
// network signal arrived.
func (a *GPhotosAdapter) ResolveItems(ctx context.Context, rawURL string, opts domain.ResolveOptions) ([]domain.ResolvedItem, error) {
	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	scrollSteps := 0
	if opts.All {
		scrollSteps = 8
	}
	observed, err := NavigateAndObserve(page, rawURL, a.sess.SettleDelay(), scrollSteps, func(respURL, mimeType string) bool {
		u, parseErr := domain.ParseShareURL(respURL)
		if parseErr != nil {
			return false
		}
		return domain.HostWithinDomain(u.Hostname(), gphotosContentDomain) &&
			strings.HasPrefix(mimeType, "image/")
	})
	if err != nil {
		return nil, err
	}

	bases, previews := collectCDNBases(observed)
	if len(bases) == 0 {
		// Network signal missing entirely; scrape the rendered DOM.
		html, htmlErr := PageHTML(page, rawURL, a.sess.SettleDelay())
		if htmlErr == nil {
			bases = extractGPhotosBasesFromDOM(html)
			previews = make(map[string]string, len(bases))
		}
	}

	if len(bases) == 0 {
		// Resolution found nothing to fetch directly; screenshots can
		// still salvage the item.
		a.logger.Warn("No CDN URLs resolved for Google Photos link", zap.String("url", rawURL))
		return []domain.ResolvedItem{{
			Platform:  domain.PlatformGPhotos,
			SourceURL: rawURL,
			ItemIndex: 0,
		}}, nil
	}

	if !opts.All {
		// The largest rendition on a single-photo page belongs to the
		// photo itself; interface thumbnails come first and small.
		base := bases[len(bases)-1]
		return []domain.ResolvedItem{{
			Platform:   domain.PlatformGPhotos,
			SourceURL:  rawURL,
			ItemIndex:  0,
			DirectURL:  base,
			PreviewURL: previews[base],
		}}, nil
	}

	items := make([]domain.ResolvedItem, 0, len(bases))
	for _, base := range bases {
		items = append(items, domain.ResolvedItem{
			Platform:    domain.PlatformGPhotos,
			SourceURL:   rawURL,
			ItemIndex:   len(items),
			AlbumMember: true,
			DirectURL:   base,
			PreviewURL:  previews[base],
		})
	}
	a.logger.Info("Enumerated Google Photos album", zap.Int("members", len(items)))
	return items, nil
}

// Methods returns the fallback chain: original-size CDN request, the
// naturally observed rendition, then screenshots.
func (a *GPhotosAdapter) Methods() []domain.AcquireMethod {
	return []domain.AcquireMethod{
		{
			Name:         "original-size",
			NetworkBound: true,
			Retryable:    true,
			Execute:      a.executeOriginalSize,
		},
		{
			Name:         "cdn-natural",
			NetworkBound: true,
			Retryable:    true,
			Preview:      true,
			Execute:      a.executeNaturalSize,
		},
		{
			Name:            "element-screenshot",
			RequiresBrowser: true,
			NetworkBound:    true,
			MinWidth:        gphotosShotMinWidth,
			MinHeight:       gphotosShotMinHeight,
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

// executeOriginalSize requests the CDN base URL with the original-size
// modifier appended.
func (a *GPhotosAdapter) executeOriginalSize(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	if item.DirectURL == "" {
		return nil, domain.NewEnvelope(domain.ErrCaptureFailure,
			"resolution observed no CDN base URL for this item", "")
	}
	return a.sess.HTTP().FetchAttempt(ctx, item.DirectURL+gphotosOriginalModifier)
}

// executeNaturalSize requests whatever rendition the page itself loaded.
func (a *GPhotosAdapter) executeNaturalSize(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	if item.PreviewURL == "" {
		return nil, domain.NewEnvelope(domain.ErrCaptureFailure,
			"no naturally observed rendition URL for this item", "")
	}
	return a.sess.HTTP().FetchAttempt(ctx, item.PreviewURL)
}

func (a *GPhotosAdapter) executeElementScreenshot(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
	page, cancel, err := a.sess.Page(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	buf, err := ElementScreenshot(page, item.SourceURL, gphotosPhotoSelector, a.sess.SettleDelay())
	if err != nil {
		return nil, err
	}
	return &domain.RawAttempt{Bytes: buf, DeclaredContentType: "image/png", ResponseStatus: 200}, nil
}

func (a *GPhotosAdapter) executeViewportScreenshot(ctx context.Context, item domain.ResolvedItem) (*domain.RawAttempt, error) {
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

// StripSizeModifier returns the CDN base URL: the portion preceding the
// embedded size-modifier suffix. URLs without a recognized suffix are
// returned unchanged.
func StripSizeModifier(cdnURL string) string {
	return gphotosSizeSuffix.ReplaceAllString(cdnURL, "")
}

// collectCDNBases dedupes observed rendition URLs down to base URLs in
// discovery order, remembering the naturally observed rendition per base.
func collectCDNBases(observed []ObservedResponse) ([]string, map[string]string) {
	seen := make(map[string]bool)
	previews := make(map[string]string)
	var bases []string
	for _, resp := range observed {
		base := StripSizeModifier(resp.URL)
		if base == "" {
			continue
		}
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
			previews[base] = resp.URL
		}
	}
	return bases, previews
}

// extractGPhotosBasesFromDOM is the selector fallback for album enumeration.
// DOM structure for this platform is volatile, so this only runs when no
// network signal was available.
func extractGPhotosBasesFromDOM(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var bases []string
	doc.Find(gphotosPhotoSelector).Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		base := StripSizeModifier(src)
		if base == "" || seen[base] {
			return
		}
		seen[base] = true
		bases = append(bases, base)
	})
	return bases
}
