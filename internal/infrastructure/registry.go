package infrastructure

import (
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// Registry holds the platform adapters in a fixed priority order: most
// specific host/path patterns first. Detection walks the order and stops at
// the first match, so the order is part of the contract.
type Registry struct {
	adapters []domain.Adapter
}

// NewRegistry creates the registry with every supported platform adapter
func NewRegistry(sess *SessionContext, logger *zap.Logger) *Registry {
	return &Registry{
		adapters: []domain.Adapter{
			NewICloudAdapter(sess, logger),
			NewDropboxAdapter(sess, logger),
			NewGPhotosAdapter(sess, logger),
			NewGDriveAdapter(sess, logger),
		},
	}
}

// Detect returns the platform owning the URL, or PlatformUnknown. Purely
// syntactic: no adapter performs network I/O during matching.
func (r *Registry) Detect(rawURL string) domain.PlatformID {
	for _, adapter := range r.adapters {
		if adapter.Match(rawURL) {
			return adapter.Platform()
		}
	}
	return domain.PlatformUnknown
}

// Adapter returns the adapter for a platform id
func (r *Registry) Adapter(id domain.PlatformID) (domain.Adapter, bool) {
	for _, adapter := range r.adapters {
		if adapter.Platform() == id {
			return adapter, true
		}
	}
	return nil, false
}

// List returns the registered adapters in priority order
func (r *Registry) List() []domain.Adapter {
	return r.adapters
}
