package domain

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DependencyHash computes a stable content hash over the manifest's combined
// dependency and devDependency section in declaration order. The lockfile
// stores it to detect drift.
func DependencyHash(m *Manifest) string {
	h := xxhash.New()
	for _, spec := range m.Dependencies {
		_, _ = h.WriteString(spec.Name.String())
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(spec.Range.String())
		_, _ = h.Write([]byte{0})
		if spec.IsDev {
			_, _ = h.WriteString("dev")
		}
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
