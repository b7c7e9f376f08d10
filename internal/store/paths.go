package store

import (
	"path/filepath"
	"strings"

	"fleetd/internal/component"
)

const (
	dirRecipes              = "recipes"
	dirArtifacts            = "artifacts"
	dirArtifactsDecompressed = "artifacts-decompressed"
)

// packagesRoot is <root>/packages.
func (s *Store) packagesRoot() string {
	return filepath.Join(s.root, "packages")
}

// resolveRecipePath returns the on-disk path a recipe for id would occupy,
// regardless of whether it currently exists there (§4.2, pure).
func (s *Store) resolveRecipePath(id component.Identifier) string {
	return filepath.Join(s.packagesRoot(), dirRecipes, sanitizeName(id.Name)+"-"+id.Version.String()+".yaml")
}

// artifactDir returns <root>/packages/artifacts/<name>/<version>.
func (s *Store) artifactDir(id component.Identifier) string {
	return filepath.Join(s.packagesRoot(), dirArtifacts, sanitizeName(id.Name), id.Version.String())
}

// decompressedDir returns <root>/packages/artifacts-decompressed/<name>/<version>.
func (s *Store) decompressedDir(id component.Identifier) string {
	return filepath.Join(s.packagesRoot(), dirArtifactsDecompressed, sanitizeName(id.Name), id.Version.String())
}

// ArtifactPath returns the absolute path of a named artifact file for id,
// used by internal/configresolve's "artifacts:path" interpolation.
func (s *Store) ArtifactPath(id component.Identifier, base string) string {
	return filepath.Join(s.artifactDir(id), base)
}

// DecompressedPath returns the absolute decompressed path for id, used by
// "artifacts:decompressedPath" interpolation.
func (s *Store) DecompressedPath(id component.Identifier, relative string) string {
	return filepath.Join(s.decompressedDir(id), relative)
}

// ArtifactDir returns the root artifact directory for id (the
// "artifacts:path" interpolation value — a whole-component-version path,
// not a single file).
func (s *Store) ArtifactDir(id component.Identifier) string {
	return s.artifactDir(id)
}

// DecompressedDir returns the root decompressed artifact directory for id
// (the "artifacts:decompressedPath" interpolation value).
func (s *Store) DecompressedDir(id component.Identifier) string {
	return s.decompressedDir(id)
}

// sanitizeName mirrors config.Storage.sanitizeFilename's direct
// defensive character replacement, avoiding path traversal through a
// component name drawn from a deployment document.
func sanitizeName(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
	)
	return r.Replace(name)
}
