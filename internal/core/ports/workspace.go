package ports

// WorkspaceMember is a locally developed package discovered from the
// manifest's workspace globs.
type WorkspaceMember struct {
	Name    string
	Version string
	Path    string
}

// WorkspaceResolver redirects resolution of in-repo packages to local
// directories instead of the registry.
//
//go:generate mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks
type WorkspaceResolver interface {
	// Resolve returns the local directory of the named workspace member.
	Resolve(name string) (string, bool)

	// Members lists every discovered workspace member.
	Members() []WorkspaceMember
}
