package domain

// ScriptFailure records a lifecycle script that exited non-zero. The package
// itself installed fine; the failure is reported, not propagated.
type ScriptFailure struct {
	Package string
	Version string
	Script  string
	Output  string
	Err     error
}

// InstallReport is the structured outcome of an install run, rendered by the
// CLI layer. It always distinguishes "failed to install" (Fatal set, package
// absent) from "installed with a failed lifecycle script" (package present,
// entry in FailedScripts).
type InstallReport struct {
	// Installed counts packages materialized into the module tree,
	// workspace links included.
	Installed int

	// CacheHits counts packages served from the content-addressed cache
	// without a network fetch.
	CacheHits int

	// FailedScripts lists lifecycle scripts that failed. Non-fatal.
	FailedScripts []ScriptFailure

	// Fatal is the error that aborted the install, if any. When set the
	// lockfile has not been updated.
	Fatal error
}

// OK reports whether the install completed without a fatal error. An install
// with failed scripts still "succeeds with warnings".
func (r *InstallReport) OK() bool {
	return r.Fatal == nil
}
