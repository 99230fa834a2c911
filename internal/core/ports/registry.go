// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
)

// RegistryClient is the capability the resolver and installer use to talk to
// the package registry. Retrieval mechanics live behind this boundary; the
// core only sees validated, typed shapes.
//
//go:generate mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type RegistryClient interface {
	// GetVersions returns the published versions of a package, newest last.
	// The list carries everything resolution needs: integrity digest, tarball
	// URL and the version's own dependency list.
	GetVersions(ctx context.Context, name string) ([]domain.RegistryVersion, error)

	// FetchTarball downloads a package tarball. A single attempt; the caller
	// owns the retry budget.
	FetchTarball(ctx context.Context, url string) ([]byte, error)
}
