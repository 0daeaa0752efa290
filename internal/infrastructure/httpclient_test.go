package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

func newTestHTTPClient(t *testing.T) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(10*time.Second, "sharefetch-test")
	require.NoError(t, err)
	return client
}

func TestFetchAttempt_ReturnsBodyAndContentType(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sharefetch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	raw, err := newTestHTTPClient(t).FetchAttempt(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, payload, raw.Bytes)
	assert.Equal(t, "image/png", raw.DeclaredContentType)
	assert.Equal(t, http.StatusOK, raw.ResponseStatus)
}

func TestFetchAttempt_DoesNotJudge200HTML(t *testing.T) {
	// A 200 carrying HTML is handed back as-is; classification is the
	// validator's job, not the transport's.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	}))
	defer server.Close()

	raw, err := newTestHTTPClient(t).FetchAttempt(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/html", raw.DeclaredContentType)
}

func TestFetchAttempt_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.ErrAuthRequired},
		{http.StatusForbidden, domain.ErrAuthRequired},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusGone, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrNetwork},
		{http.StatusInternalServerError, domain.ErrNetwork},
		{http.StatusBadGateway, domain.ErrNetwork},
		{http.StatusTeapot, domain.ErrCaptureFailure},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := newTestHTTPClient(t).FetchAttempt(context.Background(), server.URL)
		require.Error(t, err, "status %d", tc.status)
		env := domain.AsEnvelope(err)
		assert.Equal(t, tc.want, env.Code, "status %d", tc.status)

		server.Close()
	}
}

func TestFetchAttempt_ConnectionRefusedIsNetwork(t *testing.T) {
	// A server that is already closed refuses the connection.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestHTTPClient(t).FetchAttempt(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, domain.ErrNetwork, domain.AsEnvelope(err).Code)
}
