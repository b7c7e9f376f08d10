package fetch

import (
	"context"
	"io"

	"github.com/Masterminds/semver/v3"

	"fleetd/internal/component"
)

// Collaborator is the artifact collaborator boundary the component store
// consumes on a local cache miss (§4.2). Implementations are responsible
// for everything spec §1 calls out as out of scope: transport, credentials,
// endpoint selection.
type Collaborator interface {
	// RemoteVersions lists versions of name known to the collaborator,
	// consulted by the resolver when no local candidate satisfies the
	// active requirement set (§4.1 step 2).
	RemoteVersions(ctx context.Context, name string) ([]*semver.Version, error)

	// FetchRecipe returns the raw recipe document bytes for id.
	FetchRecipe(ctx context.Context, id component.Identifier) ([]byte, error)

	// FetchArtifact opens a stream for the artifact described by art,
	// belonging to component id. The caller closes the returned reader.
	FetchArtifact(ctx context.Context, id component.Identifier, art component.ArtifactDescriptor) (io.ReadCloser, error)
}
