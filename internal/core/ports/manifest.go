package ports

import "github.com/AqwozTheDeveloper/crabby/internal/core/domain"

// ManifestLoader reads a directory's package descriptor. The installer uses
// it to recover scripts and executables for packages pinned by the lockfile,
// whose entries do not carry them.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestLoader interface {
	Load(dir string) (*domain.Manifest, error)
}
