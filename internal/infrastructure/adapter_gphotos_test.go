package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestGPhotosAdapter() *GPhotosAdapter {
	return NewGPhotosAdapter(nil, zap.NewNop())
}

func TestGPhotosAdapter_Match(t *testing.T) {
	adapter := newTestGPhotosAdapter()

	assert.True(t, adapter.Match("https://photos.app.goo.gl/AbCdEfGh123"))
	assert.True(t, adapter.Match("https://photos.google.com/share/AF1QipM123?key=abc"))
	assert.True(t, adapter.Match("https://goo.gl/photos/AbCdEf123"))

	assert.False(t, adapter.Match("https://goo.gl/maps/xyz"))
	assert.False(t, adapter.Match("https://photos.google.com.evil.net/share/abc"))
}

func TestGPhotosAdapter_NormalizeStripsTracking(t *testing.T) {
	adapter := newTestGPhotosAdapter()

	got := adapter.Normalize("https://photos.app.goo.gl/AbCdEfGh123?utm_source=share&utm_medium=link")
	assert.Equal(t, "https://photos.app.goo.gl/AbCdEfGh123", got)

	// The key parameter authorizes the share and must survive.
	got = adapter.Normalize("https://photos.google.com/share/AF1QipM123?key=abc&utm_campaign=x")
	assert.Equal(t, "https://photos.google.com/share/AF1QipM123?key=abc", got)
}

func TestStripSizeModifier(t *testing.T) {
	base := "https://lh3.googleusercontent.com/pw/AbCdEf123"

	assert.Equal(t, base, StripSizeModifier(base+"=w408-h306-no"))
	assert.Equal(t, base, StripSizeModifier(base+"=s1280"))
	assert.Equal(t, base, StripSizeModifier(base+"=s0"))
	assert.Equal(t, base, StripSizeModifier(base+"=d"))

	// No recognized suffix: unchanged.
	assert.Equal(t, base, StripSizeModifier(base))
}

func TestCollectCDNBases(t *testing.T) {
	observed := []ObservedResponse{
		{URL: "https://lh3.googleusercontent.com/pw/AAA=w408-h306-no"},
		{URL: "https://lh3.googleusercontent.com/pw/BBB=s1280"},
		// A second rendition of the first photo must not create a new base.
		{URL: "https://lh3.googleusercontent.com/pw/AAA=s640"},
	}

	bases, previews := collectCDNBases(observed)

	assert.Equal(t, []string{
		"https://lh3.googleusercontent.com/pw/AAA",
		"https://lh3.googleusercontent.com/pw/BBB",
	}, bases)
	// The first observed rendition is remembered as the natural preview.
	assert.Equal(t, "https://lh3.googleusercontent.com/pw/AAA=w408-h306-no",
		previews["https://lh3.googleusercontent.com/pw/AAA"])
}

func TestExtractGPhotosBasesFromDOM(t *testing.T) {
	html := `
	<div class="grid">
		<img src="https://lh3.googleusercontent.com/pw/AAA=w408-h306-no">
		<img src="https://lh3.googleusercontent.com/pw/BBB=s640">
		<img src="https://lh3.googleusercontent.com/pw/AAA=s1280">
		<img src="https://example.com/logo.png">
	</div>`

	bases := extractGPhotosBasesFromDOM(html)

	assert.Equal(t, []string{
		"https://lh3.googleusercontent.com/pw/AAA",
		"https://lh3.googleusercontent.com/pw/BBB",
	}, bases)
}
