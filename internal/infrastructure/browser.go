package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// CapturedResponse is one network response observed while a share page
// loaded, body included.
type CapturedResponse struct {
	URL      string
	MimeType string
	Status   int
	Body     []byte
}

// NavigateAndCapture opens pageURL in the given tab, waits settle for CDN
// traffic, and returns the bodies of every response the accept predicate
// matched, in the order the browser received them.
func NavigateAndCapture(ctx context.Context, pageURL string, settle time.Duration, accept func(respURL, mimeType string) bool) ([]CapturedResponse, error) {
	var (
		mu      sync.Mutex
		matched []*network.EventResponseReceived
	)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if accept(e.Response.URL, e.Response.MimeType) {
				mu.Lock()
				matched = append(matched, e)
				mu.Unlock()
			}
		}
	})

	if err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
	); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", pageURL, err)
	}

	var captured []CapturedResponse
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		mu.Lock()
		events := append([]*network.EventResponseReceived(nil), matched...)
		mu.Unlock()
		for _, e := range events {
			body, err := network.GetResponseBody(e.RequestID).Do(ctx)
			if err != nil {
				// Bodies of evicted responses are gone; skip them.
				continue
			}
			captured = append(captured, CapturedResponse{
				URL:      e.Response.URL,
				MimeType: e.Response.MimeType,
				Status:   int(e.Response.Status),
				Body:     body,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("retrieving response bodies failed: %w", err)
	}

	return captured, nil
}

// ObservedResponse is response metadata noted during navigation, without the
// body. Enumeration wants URLs, not payloads.
type ObservedResponse struct {
	URL      string
	MimeType string
	Status   int
}

// NavigateAndObserve opens pageURL, optionally scrolling to trigger lazy
// loads, and returns metadata for every response the accept predicate
// matched, in arrival order.
func NavigateAndObserve(ctx context.Context, pageURL string, settle time.Duration, scrollSteps int, accept func(respURL, mimeType string) bool) ([]ObservedResponse, error) {
	var (
		mu       sync.Mutex
		observed []ObservedResponse
	)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if accept(e.Response.URL, e.Response.MimeType) {
				mu.Lock()
				observed = append(observed, ObservedResponse{
					URL:      e.Response.URL,
					MimeType: e.Response.MimeType,
					Status:   int(e.Response.Status),
				})
				mu.Unlock()
			}
		}
	})

	if err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
	); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", pageURL, err)
	}
	if scrollSteps > 0 {
		if err := ScrollToEnd(ctx, scrollSteps, settle/2); err != nil {
			return nil, err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]ObservedResponse(nil), observed...), nil
}

// LargestCapture picks the biggest captured body at or above minBytes, the
// best stand-in for "the original rendition" when several sizes loaded.
func LargestCapture(captured []CapturedResponse, minBytes int) *CapturedResponse {
	var best *CapturedResponse
	for i := range captured {
		c := &captured[i]
		if len(c.Body) < minBytes {
			continue
		}
		if best == nil || len(c.Body) > len(best.Body) {
			best = c
		}
	}
	return best
}

// ClickAndDownload navigates to pageURL, clicks the platform's native
// download control, and returns the downloaded bytes plus the filename the
// platform suggested. This is the only method that preserves the original
// bytes exactly as the platform stores them.
func ClickAndDownload(ctx context.Context, pageURL, selector, downloadDir string, settle, wait time.Duration) ([]byte, string, error) {
	done := make(chan string, 1)
	var (
		mu        sync.Mutex
		filenames = make(map[string]string)
	)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *browser.EventDownloadWillBegin:
			mu.Lock()
			filenames[e.GUID] = e.SuggestedFilename
			mu.Unlock()
		case *browser.EventDownloadProgress:
			if e.State == browser.DownloadProgressStateCompleted {
				select {
				case done <- e.GUID:
				default:
				}
			}
		}
	})

	err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil && !strings.Contains(err.Error(), "net::ERR_ABORTED") {
		// ERR_ABORTED is how the browser reports "this navigation became a
		// download", which is exactly the outcome wanted here.
		return nil, "", fmt.Errorf("download control click failed: %w", err)
	}

	select {
	case guid := <-done:
		data, err := os.ReadFile(filepath.Join(downloadDir, guid))
		if err != nil {
			return nil, "", fmt.Errorf("reading completed download failed: %w", err)
		}
		mu.Lock()
		name := filenames[guid]
		mu.Unlock()
		return data, name, nil
	case <-time.After(wait):
		return nil, "", domain.NewEnvelope(domain.ErrCaptureFailure, "download did not complete in time", "")
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// ElementScreenshot navigates and screenshots the first element matching
// selector. The result is a re-render, not the original bytes.
func ElementScreenshot(ctx context.Context, pageURL, selector string, settle time.Duration) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.Screenshot(selector, &buf, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return nil, fmt.Errorf("element screenshot of %q failed: %w", selector, err)
	}
	return buf, nil
}

// ViewportScreenshot navigates and captures the full viewport. Always
// produces some image; callers flag it as a preview.
func ViewportScreenshot(ctx context.Context, pageURL string, settle time.Duration) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("viewport screenshot failed: %w", err)
	}
	return buf, nil
}

// FinalLocation navigates to pageURL and reports where the browser ended up
// after redirects. Used for login-wall pre-checks.
func FinalLocation(ctx context.Context, pageURL string, settle time.Duration) (string, error) {
	var location string
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.Location(&location),
	)
	if err != nil {
		return "", fmt.Errorf("navigation to %s failed: %w", pageURL, err)
	}
	return location, nil
}

// PageHTML returns the serialized DOM of the current page after navigation,
// for selector-based enumeration fallbacks.
func PageHTML(ctx context.Context, pageURL string, settle time.Duration) (string, error) {
	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("reading page HTML failed: %w", err)
	}
	return html, nil
}

// ScrollToEnd scrolls the page in steps so lazily loaded album members issue
// their CDN requests. Enumeration order stays the platform's own order
// because requests fire top to bottom.
func ScrollToEnd(ctx context.Context, steps int, delay time.Duration) error {
	for i := 0; i < steps; i++ {
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight);`, nil),
			chromedp.Sleep(delay),
		)
		if err != nil {
			return fmt.Errorf("scrolling failed: %w", err)
		}
	}
	return nil
}
