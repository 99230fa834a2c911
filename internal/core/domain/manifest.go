// Package domain contains the core domain models for dependency resolution
// and installation: the manifest, the lockfile, the resolved dependency graph
// and the install plan derived from it.
package domain

// DependencySpec is a single declared dependency: a name, the range expression
// requested for it, and where the request came from.
type DependencySpec struct {
	Name  InternedString
	Range Range

	// IsDev marks development-only dependencies from the root manifest.
	IsDev bool

	// RequestedBy names the package that declared this spec. Empty for specs
	// declared by the project root.
	RequestedBy InternedString
}

// Manifest is the parsed project descriptor. Dependency declaration order is
// preserved: hoisting decisions depend on it.
type Manifest struct {
	Name    InternedString
	Version InternedString

	// Dependencies holds runtime and development specs in declaration order,
	// runtime first. Duplicate names have already collapsed to the last
	// declaration at parse time.
	Dependencies []DependencySpec

	// Scripts maps script names to shell commands.
	Scripts map[string]string

	// Workspaces holds glob patterns for locally developed packages.
	Workspaces []string

	// Bin maps executable names to entry point paths inside the package.
	Bin map[string]string
}

// Spec returns the declared spec for name, if any.
func (m *Manifest) Spec(name string) (DependencySpec, bool) {
	interned := NewInternedString(name)
	for _, spec := range m.Dependencies {
		if spec.Name == interned {
			return spec, true
		}
	}
	return DependencySpec{}, false
}

// Script returns the command declared under the given script name.
func (m *Manifest) Script(name string) (string, bool) {
	cmd, ok := m.Scripts[name]
	return cmd, ok
}

// SetSpec declares a dependency, replacing an existing declaration of the
// same name in place or appending a new one.
func (m *Manifest) SetSpec(spec DependencySpec) {
	for i := range m.Dependencies {
		if m.Dependencies[i].Name == spec.Name {
			m.Dependencies[i] = spec
			return
		}
	}
	m.Dependencies = append(m.Dependencies, spec)
}

// RemoveSpec drops the declaration for name, reporting whether it existed.
func (m *Manifest) RemoveSpec(name string) bool {
	interned := NewInternedString(name)
	for i := range m.Dependencies {
		if m.Dependencies[i].Name == interned {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}
