package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"fleetd/internal/component"
	"fleetd/internal/fetch"
	"fleetd/internal/ferrors"
	"fleetd/internal/metrics"
	"fleetd/pkg/logging"
)

// Store is the component store of §4.2.
type Store struct {
	root         string
	collaborator fetch.Collaborator
	group        singleflight.Group
}

// New constructs a Store rooted at root (its packages/ subtree is created
// lazily as entries are installed).
func New(root string, collaborator fetch.Collaborator) *Store {
	return &Store{root: root, collaborator: collaborator}
}

// HasRecipeAndArtifacts reports whether id's recipe and every artifact its
// manifests declare for the given platform are already on disk.
func (s *Store) HasRecipeAndArtifacts(id component.Identifier, os_, arch string) bool {
	recipe, err := s.LoadRecipe(id)
	if err != nil {
		return false
	}
	for _, art := range recipe.ArtifactsForPlatform(os_, arch) {
		path := s.ArtifactPath(id, filepath.Base(art.URI))
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// LoadRecipe reads and parses the recipe stored for id.
func (s *Store) LoadRecipe(id component.Identifier) (component.Recipe, error) {
	path := s.resolveRecipePath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return component.Recipe{}, ferrors.New(ferrors.KindRecipeNotFound, id.String(), "no recipe at "+path)
		}
		return component.Recipe{}, ferrors.Wrap(ferrors.KindIoError, id.String(), err, "reading recipe")
	}
	return component.ParseRecipeYAML(data)
}

// LocalVersions lists the versions of name already installed in the
// recipe cache, satisfying resolver.CandidateSource.
func (s *Store) LocalVersions(_ context.Context, name string) ([]*semver.Version, error) {
	dir := filepath.Join(s.packagesRoot(), dirRecipes)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.Wrap(ferrors.KindIoError, name, err, "listing recipe cache")
	}
	prefix := sanitizeName(name) + "-"
	var versions []*semver.Version
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		ext := filepath.Ext(base)
		if ext != ".yaml" {
			continue
		}
		stem := base[:len(base)-len(ext)]
		if len(stem) <= len(prefix) || stem[:len(prefix)] != prefix {
			continue
		}
		v, err := semver.NewVersion(stem[len(prefix):])
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].LessThan(versions[j]) })
	return versions, nil
}

// RemoteVersions delegates to the artifact collaborator, satisfying
// resolver.CandidateSource.
func (s *Store) RemoteVersions(ctx context.Context, name string) ([]*semver.Version, error) {
	if s.collaborator == nil {
		return nil, nil
	}
	return s.collaborator.RemoteVersions(ctx, name)
}

// Recipe satisfies resolver.CandidateSource: return the locally cached
// recipe, fetching and installing it (and its artifacts) through the
// collaborator on a miss.
func (s *Store) Recipe(ctx context.Context, id component.Identifier) (component.Recipe, error) {
	if r, err := s.LoadRecipe(id); err == nil {
		return r, nil
	}
	if err := s.Ensure(ctx, id, runtimeOS(), runtimeArch()); err != nil {
		return component.Recipe{}, err
	}
	return s.LoadRecipe(id)
}

// Ensure guarantees id's recipe and platform-applicable artifacts are
// present on disk, fetching through the collaborator on a miss. Concurrent
// calls for the same identity coalesce into a single fetch via
// golang.org/x/sync/singleflight (§4.2 "Fetch semantics").
func (s *Store) Ensure(ctx context.Context, id component.Identifier, os_, arch string) error {
	_, err, _ := s.group.Do(id.String(), func() (interface{}, error) {
		return nil, s.ensureLocked(ctx, id, os_, arch)
	})
	return err
}

func (s *Store) ensureLocked(ctx context.Context, id component.Identifier, os_, arch string) error {
	recipe, err := s.LoadRecipe(id)
	if err != nil {
		if s.collaborator == nil {
			return ferrors.New(ferrors.KindRecipeNotFound, id.String(), "not cached and no collaborator configured")
		}
		data, ferr := s.collaborator.FetchRecipe(ctx, id)
		if ferr != nil {
			return ferr
		}
		if installErr := s.installRecipe(id, data); installErr != nil {
			return installErr
		}
		recipe, err = s.LoadRecipe(id)
		if err != nil {
			return err
		}
	}

	for _, art := range recipe.ArtifactsForPlatform(os_, arch) {
		path := s.ArtifactPath(id, filepath.Base(art.URI))
		if _, statErr := os.Stat(path); statErr == nil {
			continue
		}
		if s.collaborator == nil {
			return ferrors.New(ferrors.KindArtifactDownloadFailed, id.String(), "artifact missing and no collaborator configured")
		}
		rc, ferr := s.collaborator.FetchArtifact(ctx, id, art)
		if ferr != nil {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
			return ferr
		}
		if installErr := s.installArtifact(id, art, rc); installErr != nil {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
			return installErr
		}
		metrics.ArtifactDownloads.WithLabelValues("success").Inc()
	}
	logging.Info("store", "ensured %s present (recipe + %d artifacts)", id, len(recipe.ArtifactsForPlatform(os_, arch)))
	return nil
}

// installRecipe atomically writes recipeBytes to the recipe cache via a
// temp file + rename (§4.2 install).
func (s *Store) installRecipe(id component.Identifier, recipeBytes []byte) error {
	dest := s.resolveRecipePath(id)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating recipe directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".recipe-*.tmp")
	if err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(recipeBytes); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "writing temp recipe")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "closing temp recipe")
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "renaming recipe into place")
	}
	return nil
}

// installArtifact streams src to a temp file, verifies its digest, renames
// it into place, and unarchives it if the recipe declares an unarchive
// policy (§4.2 install).
func (s *Store) installArtifact(id component.Identifier, art component.ArtifactDescriptor, src io.ReadCloser) error {
	defer src.Close()

	dir := s.artifactDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating artifact directory")
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating temp artifact file")
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "writing temp artifact")
	}
	tmp.Close()

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "re-reading temp artifact for digest check")
	}
	if err := verifyDigest(id.String(), data, art.Digest); err != nil {
		os.Remove(tmpPath)
		return err
	}

	dest := filepath.Join(dir, filepath.Base(art.URI))
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "renaming artifact into place")
	}

	if art.Unarchive != component.UnarchiveNone && art.Unarchive != "" {
		destDir := s.decompressedDir(id)
		if art.DecompressPath != "" {
			destDir = filepath.Join(destDir, art.DecompressPath)
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating decompressed directory")
		}
		if err := unarchive(id, dest, destDir, art.Unarchive); err != nil {
			return err
		}
	}
	return nil
}

func runtimeOS() string   { return runtime.GOOS }
func runtimeArch() string { return runtime.GOARCH }
