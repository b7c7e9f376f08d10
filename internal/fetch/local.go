package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"fleetd/internal/component"
	"fleetd/internal/ferrors"
)

// LocalCollaborator serves recipes and artifacts from preloaded directory
// trees laid out as:
//
//	<recipeDir>/<name>-<version>.yaml
//	<artifactDir>/<name>/<version>/<basename(art.URI)>
//
// It never reaches the network; RemoteVersions only sees what has already
// been preloaded onto disk.
type LocalCollaborator struct {
	RecipeDir   string
	ArtifactDir string
}

func NewLocalCollaborator(recipeDir, artifactDir string) *LocalCollaborator {
	return &LocalCollaborator{RecipeDir: recipeDir, ArtifactDir: artifactDir}
}

func (l *LocalCollaborator) RemoteVersions(_ context.Context, name string) ([]*semver.Version, error) {
	entries, err := os.ReadDir(l.RecipeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := name + "-"
	var versions []*semver.Version
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		ext := filepath.Ext(base)
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
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
	return versions, nil
}

func (l *LocalCollaborator) FetchRecipe(_ context.Context, id component.Identifier) ([]byte, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(l.RecipeDir, fmt.Sprintf("%s-%s%s", id.Name, id.Version.String(), ext))
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, ferrors.Wrap(ferrors.KindIoError, id.String(), err, "reading preloaded recipe")
		}
	}
	return nil, ferrors.New(ferrors.KindRecipeNotFound, id.String(), "no preloaded recipe for this identifier")
}

func (l *LocalCollaborator) FetchArtifact(_ context.Context, id component.Identifier, art component.ArtifactDescriptor) (io.ReadCloser, error) {
	path := filepath.Join(l.ArtifactDir, id.Name, id.Version.String(), filepath.Base(art.URI))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.New(ferrors.KindArtifactDownloadFailed, id.String(), "no preloaded artifact at "+path)
		}
		return nil, ferrors.Wrap(ferrors.KindIoError, id.String(), err, "opening preloaded artifact")
	}
	return f, nil
}
