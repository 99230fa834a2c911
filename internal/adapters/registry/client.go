// Package registry implements the npm-protocol registry client. Loosely typed
// registry responses are validated into the domain shapes here; nothing above
// this boundary sees raw JSON.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Client talks to an npm-compatible registry over HTTP. Single attempt per
// call; retry budgets live with the resolver and installer.
type Client struct {
	baseURL string
	http    *http.Client
	logger  ports.Logger
}

// NewClient creates a registry client. timeout bounds each attempt.
func NewClient(baseURL string, timeout time.Duration, logger ports.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ ports.RegistryClient = (*Client)(nil)

// packument mirrors the registry metadata document. Unknown fields are
// discarded; the lockfile never round-trips them.
type packument struct {
	Name     string                      `json:"name"`
	DistTags map[string]string           `json:"dist-tags"`
	Versions map[string]packumentVersion `json:"versions"`
}

type packumentVersion struct {
	Version      string            `json:"version"`
	Dist         packumentDist     `json:"dist"`
	Dependencies map[string]string `json:"dependencies"`
	Scripts      map[string]string `json:"scripts"`
	Bin          json.RawMessage   `json:"bin"`
}

type packumentDist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum"`
	Integrity string `json:"integrity"`
}

// GetVersions fetches and validates a package's metadata. The result is
// sorted by semver ascending; versions that don't parse as semver are
// dropped with a debug log.
func (c *Client) GetVersions(ctx context.Context, name string) ([]domain.RegistryVersion, error) {
	url := c.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build metadata request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, err.Error()), "package", name)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort close

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "registry returned 404"), "package", name)
	case resp.StatusCode != http.StatusOK:
		err := zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, "unexpected status"), "package", name)
		return nil, zerr.With(err, "status", resp.StatusCode)
	}

	var doc packument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, err.Error()), "package", name)
	}

	return c.validate(name, &doc)
}

// validate turns the packument into sorted, typed registry versions.
func (c *Client) validate(name string, doc *packument) ([]domain.RegistryVersion, error) {
	type parsed struct {
		v   *semver.Version
		out domain.RegistryVersion
	}
	list := make([]parsed, 0, len(doc.Versions))

	for raw, pv := range doc.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			c.logger.Debug(fmt.Sprintf("%s: skipping unparseable version %q", name, raw))
			continue
		}
		out := domain.RegistryVersion{
			Version:   raw,
			Integrity: normalizeIntegrity(pv.Dist),
			Tarball:   pv.Dist.Tarball,
			Scripts:   pv.Scripts,
			Bin:       decodeBin(name, pv.Bin),
			Deps:      depSpecs(name, pv.Dependencies),
		}
		list = append(list, parsed{v: v, out: out})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].v.LessThan(list[j].v) })

	versions := make([]domain.RegistryVersion, len(list))
	for i, p := range list {
		versions[i] = p.out
	}
	return versions, nil
}

// depSpecs converts a version's dependency map into ordered specs. Registry
// objects carry no meaningful order, so names are sorted for determinism.
func depSpecs(requester string, deps map[string]string) []domain.DependencySpec {
	if len(deps) == 0 {
		return nil
	}
	names := make([]string, 0, len(deps))
	for depName := range deps {
		names = append(names, depName)
	}
	sort.Strings(names)

	specs := make([]domain.DependencySpec, 0, len(names))
	for _, depName := range names {
		rng, err := domain.ParseRange(deps[depName])
		if err != nil {
			// An unparseable transitive range degrades to "latest" rather
			// than failing the whole resolution.
			rng = domain.MustParseRange("latest")
		}
		specs = append(specs, domain.DependencySpec{
			Name:        domain.NewInternedString(depName),
			Range:       rng,
			RequestedBy: domain.NewInternedString(requester),
		})
	}
	return specs
}

// decodeBin handles the untagged union the registry uses for executables:
// either a single path string (named after the package) or a name->path map.
func decodeBin(pkgName string, raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		base := pkgName
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[i+1:]
		}
		return map[string]string{base: single}
	}
	var many map[string]string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// normalizeIntegrity prefers the SRI integrity string and falls back to the
// legacy hex shasum, tagged with its algorithm so verification stays
// algorithm-agnostic.
func normalizeIntegrity(dist packumentDist) string {
	if dist.Integrity != "" {
		return dist.Integrity
	}
	if dist.Shasum != "" {
		return "sha1:" + dist.Shasum
	}
	return ""
}

// FetchTarball downloads a tarball. Single attempt; the installer owns the
// retry budget and backoff.
func (c *Client) FetchTarball(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build tarball request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrNetwork, err.Error()), "url", url)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort close

	if resp.StatusCode != http.StatusOK {
		err := zerr.With(zerr.Wrap(domain.ErrNetwork, "unexpected status"), "url", url)
		return nil, zerr.With(err, "status", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrNetwork, err.Error()), "url", url)
	}
	return data, nil
}
