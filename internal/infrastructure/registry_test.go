package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	sess, err := NewSessionContext(
		domain.FetchConfig{Timeout: 10 * time.Second},
		domain.BatchConfig{RateLimit: 1.0},
		domain.BrowserConfig{Headless: true},
		zap.NewNop(),
	)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return NewRegistry(sess, zap.NewNop())
}

func TestRegistry_Detect(t *testing.T) {
	registry := newTestRegistry(t)

	cases := map[string]domain.PlatformID{
		"https://share.icloud.com/photos/0abCDeFGhiJKlmNOpqrstUVwx":    domain.PlatformICloud,
		"https://www.icloud.com/sharedalbum/#B0aBcDeFgHiJkLm":          domain.PlatformICloud,
		"https://www.dropbox.com/s/abc123/photo.jpg?dl=0":              domain.PlatformDropbox,
		"https://www.dropbox.com/scl/fi/xyz/photo.png?rlkey=k":         domain.PlatformDropbox,
		"https://photos.app.goo.gl/AbCdEfGh123":                        domain.PlatformGPhotos,
		"https://photos.google.com/share/AF1QipM123":                   domain.PlatformGPhotos,
		"https://goo.gl/photos/AbCdEf123":                              domain.PlatformGPhotos,
		"https://drive.google.com/file/d/1aB2cD3eF4gH5iJ6kL7mN8o/view": domain.PlatformGDrive,
		"https://drive.google.com/open?id=1aB2cD3eF4gH5iJ6kL7mN8o":     domain.PlatformGDrive,
		"https://drive.google.com/drive/folders/1aB2cD3eF4gH5iJ6kL":    domain.PlatformGDrive,
	}
	for rawURL, want := range cases {
		assert.Equal(t, want, registry.Detect(rawURL), "url %s", rawURL)
	}
}

func TestRegistry_DetectRejectsLookalikes(t *testing.T) {
	registry := newTestRegistry(t)

	for _, rawURL := range []string{
		"https://fakedropbox.com/s/abc/photo.jpg",
		"https://dropbox.notreal.com/s/abc/photo.jpg",
		"https://icloud.com.evil.net/photos/abc",
		"https://mydrive.google.com.attacker.io/file/d/abc/view",
		"https://example.com/photos/abc",
		"not a url",
		"",
	} {
		assert.Equal(t, domain.PlatformUnknown, registry.Detect(rawURL), "url %q", rawURL)
	}
}

func TestRegistry_Adapter(t *testing.T) {
	registry := newTestRegistry(t)

	for _, id := range []domain.PlatformID{
		domain.PlatformICloud, domain.PlatformDropbox, domain.PlatformGPhotos, domain.PlatformGDrive,
	} {
		adapter, ok := registry.Adapter(id)
		require.True(t, ok, "platform %s", id)
		assert.Equal(t, id, adapter.Platform())
		assert.NotEmpty(t, adapter.Methods(), "platform %s must declare a fallback chain", id)
	}

	_, ok := registry.Adapter(domain.PlatformUnknown)
	assert.False(t, ok)
}

func TestRegistry_NormalizeIdempotent(t *testing.T) {
	registry := newTestRegistry(t)

	samples := map[domain.PlatformID][]string{
		domain.PlatformICloud: {
			"https://share.icloud.com/photos/0abCDeFGhiJKlmNOpqrstUVwx",
			"https://www.icloud.com/sharedalbum/#B0aBcDeFgHiJkLm",
			"https://www.icloud.com/photos//",
		},
		domain.PlatformDropbox: {
			"https://www.dropbox.com/s/abc123/photo.jpg?dl=0",
			"https://www.dropbox.com/scl/fi/xyz/photo.png?rlkey=k&dl=0",
		},
		domain.PlatformGPhotos: {
			"https://photos.app.goo.gl/AbCdEfGh123",
			"https://photos.google.com/share/AF1QipM123",
		},
		domain.PlatformGDrive: {
			"https://drive.google.com/file/d/1aB2cD3eF4gH5iJ6kL7mN8o/view?usp=sharing",
			"https://drive.google.com/open?id=1aB2cD3eF4gH5iJ6kL7mN8o",
		},
	}

	for _, adapter := range registry.List() {
		urls, ok := samples[adapter.Platform()]
		require.True(t, ok, "no sample urls for platform %s", adapter.Platform())
		for _, rawURL := range urls {
			once := adapter.Normalize(rawURL)
			assert.Equal(t, once, adapter.Normalize(once),
				"platform %s url %s", adapter.Platform(), rawURL)
		}
	}
}

func TestRegistry_EveryChainTierOneIsNotPreview(t *testing.T) {
	registry := newTestRegistry(t)

	for _, adapter := range registry.List() {
		methods := adapter.Methods()
		assert.False(t, methods[0].Preview,
			"platform %s tier 1 must target full fidelity", adapter.Platform())
		for _, m := range methods {
			assert.NotEmpty(t, m.Name)
			assert.NotNil(t, m.Execute)
		}
	}
}
