package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/component"
)

const recipeFixture = `
ComponentName: SimpleApp
ComponentVersion: %s
ComponentType: GENERIC
`

type fakeCollaborator struct {
	recipes   map[string][]byte
	artifacts map[string][]byte
}

func newFakeCollaborator() *fakeCollaborator {
	return &fakeCollaborator{recipes: map[string][]byte{}, artifacts: map[string][]byte{}}
}

func (f *fakeCollaborator) RemoteVersions(_ context.Context, name string) ([]*semver.Version, error) {
	return nil, nil
}

func (f *fakeCollaborator) FetchRecipe(_ context.Context, id component.Identifier) ([]byte, error) {
	data, ok := f.recipes[id.String()]
	if !ok {
		return nil, assertNotFound{id}
	}
	return data, nil
}

func (f *fakeCollaborator) FetchArtifact(_ context.Context, id component.Identifier, art component.ArtifactDescriptor) (io.ReadCloser, error) {
	data, ok := f.artifacts[id.String()+"/"+art.URI]
	if !ok {
		return nil, assertNotFound{id}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type assertNotFound struct{ id component.Identifier }

func (e assertNotFound) Error() string { return "not found: " + e.id.String() }

func mustID(t *testing.T, name, version string) component.Identifier {
	t.Helper()
	id, err := component.NewIdentifier(name, version)
	require.NoError(t, err)
	return id
}

func TestStore_EnsureFetchesAndInstallsRecipe(t *testing.T) {
	dir := t.TempDir()
	collab := newFakeCollaborator()
	id := mustID(t, "SimpleApp", "1.0.0")
	collab.recipes[id.String()] = []byte(`ComponentName: SimpleApp
ComponentVersion: 1.0.0
ComponentType: GENERIC
`)

	s := New(dir, collab)
	err := s.Ensure(context.Background(), id, "linux", "amd64")
	require.NoError(t, err)

	recipe, err := s.LoadRecipe(id)
	require.NoError(t, err)
	assert.Equal(t, "SimpleApp", recipe.Identifier.Name)
}

func TestStore_EnsureIsIdempotentWhenAlreadyCached(t *testing.T) {
	dir := t.TempDir()
	id := mustID(t, "SimpleApp", "1.0.0")
	require.NoError(t, os.MkdirAll(filepath.Dir((&Store{root: dir}).resolveRecipePath(id)), 0o755))
	s := New(dir, nil)
	require.NoError(t, s.installRecipe(id, []byte("ComponentName: SimpleApp\nComponentVersion: 1.0.0\nComponentType: GENERIC\n")))

	err := s.Ensure(context.Background(), id, "linux", "amd64")
	assert.NoError(t, err)
}

func TestStore_EnsureWithNoCollaboratorFailsOnMiss(t *testing.T) {
	dir := t.TempDir()
	id := mustID(t, "SimpleApp", "1.0.0")
	s := New(dir, nil)
	err := s.Ensure(context.Background(), id, "linux", "amd64")
	assert.Error(t, err)
}

func TestStore_LocalVersionsSortedAscending(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	for _, v := range []string{"2.0.0", "1.0.0", "1.5.0"} {
		id := mustID(t, "SimpleApp", v)
		require.NoError(t, s.installRecipe(id, []byte("ComponentName: SimpleApp\nComponentVersion: "+v+"\nComponentType: GENERIC\n")))
	}
	versions, err := s.LocalVersions(context.Background(), "SimpleApp")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "1.0.0", versions[0].String())
	assert.Equal(t, "2.0.0", versions[2].String())
}

func TestStore_PruneRemovesUnreachableVersions(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	v1 := mustID(t, "SimpleApp", "1.0.0")
	v2 := mustID(t, "SimpleApp", "2.0.0")
	require.NoError(t, s.installRecipe(v1, []byte("ComponentName: SimpleApp\nComponentVersion: 1.0.0\nComponentType: GENERIC\n")))
	require.NoError(t, s.installRecipe(v2, []byte("ComponentName: SimpleApp\nComponentVersion: 2.0.0\nComponentType: GENERIC\n")))

	keep := Reachable{}
	keep.Keep("SimpleApp", v2.Version)
	require.NoError(t, s.Prune(keep))

	_, err := s.LoadRecipe(v1)
	assert.Error(t, err)
	_, err = s.LoadRecipe(v2)
	assert.NoError(t, err)
}

func TestStore_InstallArtifactVerifiesDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	collab := newFakeCollaborator()
	id := mustID(t, "SimpleApp", "1.0.0")
	collab.recipes[id.String()] = []byte("ComponentName: SimpleApp\nComponentVersion: 1.0.0\nComponentType: GENERIC\n")
	collab.artifacts[id.String()+"/greengrass:/SimpleApp/1.0.0/app.bin"] = []byte("payload")

	s := New(dir, collab)
	art := component.ArtifactDescriptor{URI: "greengrass:/SimpleApp/1.0.0/app.bin", Digest: "blake2b-256:deadbeef"}
	rc, err := collab.FetchArtifact(context.Background(), id, art)
	require.NoError(t, err)
	err = s.installArtifact(id, art, rc)
	assert.Error(t, err)
}
