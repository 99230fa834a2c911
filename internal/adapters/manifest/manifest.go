// Package manifest implements the codecs for the project descriptor
// (package.json) and the reproducibility record (crabby.lock.yaml).
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// ManifestFilename is the project descriptor name.
const ManifestFilename = "package.json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store loads and saves manifests and lockfiles for a project directory.
type Store struct {
	logger ports.Logger
}

// NewStore creates a manifest store. The logger receives duplicate-key warnings.
func NewStore(logger ports.Logger) *Store {
	return &Store{logger: logger}
}

// rawManifest is the wire shape. Dependency sections stay raw so declaration
// order and duplicate keys survive the first decoding pass.
type rawManifest struct {
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Dependencies    json.RawMessage `json:"dependencies,omitempty"`
	DevDependencies json.RawMessage `json:"devDependencies,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Workspaces      []string        `json:"workspaces,omitempty"`
	Bin             json.RawMessage `json:"bin,omitempty"`
}

// decodeBin handles the bin field's two wire shapes: a bare string naming a
// single entry point, or a map of executable name to entry point.
func decodeBin(raw json.RawMessage, pkgName string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		name := pkgName
		if i := bytes.LastIndexByte([]byte(name), '/'); i >= 0 {
			name = name[i+1:]
		}
		return map[string]string{name: single}
	}
	var multi map[string]string
	if err := json.Unmarshal(raw, &multi); err == nil {
		return multi
	}
	return nil
}

// Load parses the manifest in dir. A missing or unparseable file, or a
// manifest without a name, fails with domain.ErrMalformedManifest. Duplicate
// dependency keys collapse to the last declaration with a warning.
func (s *Store) Load(dir string) (*domain.Manifest, error) {
	path := filepath.Join(dir, ManifestFilename)
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted at the project dir
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, err.Error()), "path", path)
	}

	// PowerShell's Out-File prepends a BOM that encoding/json rejects.
	data = bytes.TrimPrefix(data, utf8BOM)

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, err.Error()), "path", path)
	}
	if raw.Name == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, "missing name"), "path", path)
	}

	m := &domain.Manifest{
		Name:       domain.NewInternedString(raw.Name),
		Version:    domain.NewInternedString(raw.Version),
		Scripts:    raw.Scripts,
		Workspaces: raw.Workspaces,
		Bin:        decodeBin(raw.Bin, raw.Name),
	}

	runtime, err := s.decodeDependencySection(raw.Dependencies, "dependencies", false)
	if err != nil {
		return nil, err
	}
	dev, err := s.decodeDependencySection(raw.DevDependencies, "devDependencies", true)
	if err != nil {
		return nil, err
	}
	m.Dependencies = append(runtime, dev...)

	return m, nil
}

// decodeDependencySection walks the raw JSON object token by token, preserving
// declaration order. Later duplicates win, earlier ones are dropped in place.
func (s *Store) decodeDependencySection(raw json.RawMessage, section string, dev bool) ([]domain.DependencySpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, zerr.Wrap(domain.ErrMalformedManifest, err.Error())
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, "section is not an object"), "section", section)
	}

	var specs []domain.DependencySpec
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, zerr.Wrap(domain.ErrMalformedManifest, err.Error())
		}
		name, _ := keyTok.(string)

		var rangeExpr string
		if err := dec.Decode(&rangeExpr); err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, err.Error()), "dependency", name)
		}

		rng, err := domain.ParseRange(rangeExpr)
		if err != nil {
			return nil, zerr.With(err, "dependency", name)
		}

		spec := domain.DependencySpec{
			Name:  domain.NewInternedString(name),
			Range: rng,
			IsDev: dev,
		}
		if at, dup := index[name]; dup {
			s.logger.Warn(fmt.Sprintf("duplicate %s entry %q, last declaration wins", section, name))
			specs[at] = spec
			continue
		}
		index[name] = len(specs)
		specs = append(specs, spec)
	}

	return specs, nil
}

// Save writes the manifest back to dir atomically. Dependency declaration
// order is preserved in the output.
func (s *Store) Save(dir string, m *domain.Manifest) error {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	writeField(&buf, "name", m.Name.String(), true)
	writeField(&buf, "version", m.Version.String(), true)

	runtime := filterSpecs(m.Dependencies, false)
	dev := filterSpecs(m.Dependencies, true)
	writeDepSection(&buf, "dependencies", runtime, true)
	writeDepSection(&buf, "devDependencies", dev, true)

	if len(m.Scripts) > 0 {
		scripts, err := json.MarshalIndent(m.Scripts, "  ", "  ")
		if err != nil {
			return zerr.Wrap(err, "failed to marshal scripts")
		}
		fmt.Fprintf(&buf, "  %q: %s,\n", "scripts", scripts)
	}

	if len(m.Bin) > 0 {
		bin, err := json.MarshalIndent(m.Bin, "  ", "  ")
		if err != nil {
			return zerr.Wrap(err, "failed to marshal bin")
		}
		fmt.Fprintf(&buf, "  %q: %s,\n", "bin", bin)
	}

	workspaces, err := json.Marshal(m.Workspaces)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal workspaces")
	}
	if len(m.Workspaces) > 0 {
		fmt.Fprintf(&buf, "  %q: %s,\n", "workspaces", workspaces)
	}

	// Strip the trailing comma before closing the object.
	out := buf.Bytes()
	out = bytes.TrimSuffix(out, []byte(",\n"))
	out = append(out, '\n', '}', '\n')

	return writeFileAtomic(filepath.Join(dir, ManifestFilename), out)
}

func writeField(buf *bytes.Buffer, key, value string, comma bool) {
	fmt.Fprintf(buf, "  %q: %q", key, value)
	if comma {
		buf.WriteString(",")
	}
	buf.WriteString("\n")
}

func writeDepSection(buf *bytes.Buffer, section string, specs []domain.DependencySpec, comma bool) {
	if len(specs) == 0 {
		return
	}
	fmt.Fprintf(buf, "  %q: {\n", section)
	for i, spec := range specs {
		fmt.Fprintf(buf, "    %q: %q", spec.Name.String(), spec.Range.String())
		if i < len(specs)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("  }")
	if comma {
		buf.WriteString(",")
	}
	buf.WriteString("\n")
}

func filterSpecs(specs []domain.DependencySpec, dev bool) []domain.DependencySpec {
	var out []domain.DependencySpec
	for _, spec := range specs {
		if spec.IsDev == dev {
			out = append(out, spec)
		}
	}
	return out
}

// writeFileAtomic writes data to a temporary sibling and renames it into
// place, so a crash never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create temporary file"), "path", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to write temporary file"), "path", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to close temporary file"), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to move file into place"), "path", path)
	}
	return nil
}
