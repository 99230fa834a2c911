package ports

import "github.com/AqwozTheDeveloper/crabby/internal/core/domain"

// PackageCache is the content-addressed store of extracted package trees,
// shared across every project on the machine.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type PackageCache interface {
	// Lookup returns the extracted tree path for the key, if committed.
	Lookup(key domain.CacheKey) (string, bool)

	// Store verifies the tarball against the key's integrity digest, extracts
	// it and atomically commits the entry. Returns the extracted tree path,
	// or domain.ErrIntegrityMismatch without creating an entry.
	Store(key domain.CacheKey, tarball []byte) (string, error)

	// Stats returns the number of committed entries and their total size.
	Stats() (count int, bytes int64, err error)

	// Clear removes every cache entry. The only garbage collection path.
	Clear() error
}
