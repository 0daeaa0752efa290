package domain

import "context"

// ResolvedItem is one acquirable unit produced by an adapter's ResolveItems:
// the single item behind a plain share link, or one member of an album.
type ResolvedItem struct {
	Platform    PlatformID `json:"platform"`
	SourceURL   string     `json:"source_url"`
	ItemIndex   int        `json:"item_index"`
	AlbumMember bool       `json:"album_member"`

	// DirectURL is a network-observed CDN URL for this item, when resolution
	// found one. Empty means methods must discover it themselves.
	DirectURL string `json:"direct_url,omitempty"`

	// PreviewURL is the CDN URL at whatever size was naturally observed
	// during resolution, lower fidelity than the original.
	PreviewURL string `json:"preview_url,omitempty"`

	// FilenameHint is the platform's name for the item, if one was visible.
	FilenameHint string `json:"filename_hint,omitempty"`
}

// RawAttempt is the unvalidated result of one acquisition method.
type RawAttempt struct {
	Bytes               []byte
	DeclaredContentType string
	ResponseStatus      int

	// FilenameHint is the name the platform suggested during this attempt
	// (native downloads only). Overrides the item's own hint when set.
	FilenameHint string
}

// AcquireMethod describes one way to obtain bytes for an item. The ordered
// list returned by Adapter.Methods defines the fallback chain; position
// encodes quality preference, highest fidelity first.
type AcquireMethod struct {
	Name            string
	RequiresBrowser bool
	NetworkBound    bool

	// OptIn methods are skipped unless the caller explicitly enabled the
	// browser fallback for the platform.
	OptIn bool

	// Preview marks results of this method as lower fidelity than the
	// original, surfaced to the caller as isPreview.
	Preview bool

	// Retryable designates transient network failures of this method as
	// worth a bounded retry before counting the method as exhausted.
	Retryable bool

	// Minimum-quality thresholds. Attempts below them are soft failures:
	// technically images, but known thumbnail renditions.
	MinBytes  int
	MinWidth  int
	MinHeight int

	Execute func(ctx context.Context, item ResolvedItem) (*RawAttempt, error)
}

// ResolveOptions controls item resolution.
type ResolveOptions struct {
	// All enumerates album/folder members. On a URL that is not a
	// collection the single item is returned unchanged, never an error.
	All bool
}

// Adapter is the capability set every platform implements. The executor and
// orchestrator are written once against this interface and never inspect
// platform identity directly.
type Adapter interface {
	// Platform returns the platform this adapter handles
	Platform() PlatformID

	// Match reports whether this adapter owns the URL. Purely syntactic:
	// scheme, host, and path shape. Never issues network requests.
	Match(rawURL string) bool

	// Normalize canonicalizes a matched URL. Pure and idempotent:
	// Normalize(Normalize(u)) == Normalize(u).
	Normalize(rawURL string) string

	// ResolveItems produces the acquirable items behind a normalized URL.
	// Enumeration is deterministic for a fixed remote state.
	ResolveItems(ctx context.Context, rawURL string, opts ResolveOptions) ([]ResolvedItem, error)

	// Methods returns the ordered fallback chain for this platform.
	Methods() []AcquireMethod
}

// Pacer gates network-bound method invocations. The session's token bucket
// implements it; a nil Pacer means no pacing.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DebugSink receives best-effort debug artifacts for failed attempts.
// Implementations must never return errors into the acquisition path.
type DebugSink interface {
	WriteAttempt(itemIndex, tier int, name string, data []byte)
}
