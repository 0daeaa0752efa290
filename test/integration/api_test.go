//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/api"
	"github.com/yourusername/sharefetch-go/internal/app"
	"github.com/yourusername/sharefetch-go/internal/domain"
	"github.com/yourusername/sharefetch-go/internal/infrastructure"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	config := domain.DefaultConfig()
	config.Fetch.OutputDir = t.TempDir()
	log := zap.NewNop()

	sess, err := infrastructure.NewSessionContext(config.Fetch, config.Batch, config.Browser, log)
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	registry := infrastructure.NewRegistry(sess, log)
	engine := app.NewEngine(config, sess, registry, nil, log)

	router := api.SetupRouter(engine, registry, log)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server
}

func TestAPI_Health(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Platforms(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/platforms")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var platforms []struct {
		Platform string   `json:"platform"`
		Methods  []string `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&platforms))
	require.Len(t, platforms, 4)

	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.Platform)
		assert.NotEmpty(t, p.Methods, "platform %s must declare methods", p.Platform)
	}
	assert.Equal(t, []string{"icloud", "dropbox", "gphotos", "gdrive"}, names)
}

func TestAPI_Detect(t *testing.T) {
	server := setupTestServer(t)

	payload, _ := json.Marshal(map[string]string{
		"url": "https://www.dropbox.com/s/abc123/photo.jpg?dl=0",
	})
	resp, err := http.Post(server.URL+"/api/v1/detect", "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "dropbox", body["platform"])
}

func TestAPI_DetectUnknown(t *testing.T) {
	server := setupTestServer(t)

	payload, _ := json.Marshal(map[string]string{"url": "https://example.com/photo.jpg"})
	resp, err := http.Post(server.URL+"/api/v1/detect", "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unknown", body["platform"])
}

func TestAPI_AcquireRejectsUnknownPlatform(t *testing.T) {
	server := setupTestServer(t)

	payload, _ := json.Marshal(map[string]string{"url": "https://example.com/photo.jpg"})
	resp, err := http.Post(server.URL+"/api/v1/acquire", "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "USAGE_ERROR", body.Error.Code)
}

func TestAPI_AcquireRejectsMissingURL(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/acquire", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
