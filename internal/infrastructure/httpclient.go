package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// HTTPClient wraps a cookie-jar http.Client for the direct acquisition
// methods. Some share hosts set session cookies on the first response and
// expect them back on the follow-up redirect.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates an HTTP client with a fresh cookie jar
func NewHTTPClient(timeout time.Duration, userAgent string) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		userAgent: userAgent,
	}, nil
}

// FetchAttempt performs a GET and returns the body as a raw, unvalidated
// attempt. Auth and not-found statuses come back as typed envelopes so the
// executor can fold them into the most specific chain failure; the content
// of 2xx responses is deliberately not judged here.
func (c *HTTPClient) FetchAttempt(ctx context.Context, reqURL string) (*domain.RawAttempt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", reqURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/*,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewEnvelope(domain.ErrNetwork, fmt.Sprintf("request to %s failed: %v", reqURL, err), "")
	}
	defer resp.Body.Close()

	if env := envelopeForStatus(resp.StatusCode, reqURL); env != nil {
		return nil, env
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewEnvelope(domain.ErrNetwork, fmt.Sprintf("reading body of %s failed: %v", reqURL, err), "")
	}

	return &domain.RawAttempt{
		Bytes:               body,
		DeclaredContentType: resp.Header.Get("Content-Type"),
		ResponseStatus:      resp.StatusCode,
	}, nil
}

// envelopeForStatus maps an HTTP status to a failure kind. 5xx and 429 are
// transient and therefore NETWORK_ERROR; the rest of the 4xx family is not
// worth retrying.
func envelopeForStatus(status int, reqURL string) *domain.Envelope {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewEnvelope(domain.ErrAuthRequired,
			fmt.Sprintf("HTTP %d from %s", status, reqURL),
			"the share link appears to be restricted; open it in a browser to confirm access")
	case status == http.StatusNotFound || status == http.StatusGone:
		return domain.NewEnvelope(domain.ErrNotFound,
			fmt.Sprintf("HTTP %d from %s", status, reqURL),
			"the shared item may have been deleted or the link may have expired")
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.NewEnvelope(domain.ErrNetwork,
			fmt.Sprintf("HTTP %d from %s", status, reqURL), "")
	default:
		return domain.NewEnvelope(domain.ErrCaptureFailure,
			fmt.Sprintf("HTTP %d from %s", status, reqURL), "")
	}
}
