// Package fetch defines the artifact collaborator boundary named in spec
// §1 as out of scope ("cloud artifact download transport, credential
// issuance, and region/endpoint plumbing") and provides two concrete,
// local implementations so the repository builds and runs standalone: an
// HTTP-backed collaborator for recipe/artifact URIs reachable over the
// network, and a directory-backed collaborator for offline use, built at
// serve startup from the --preload-recipes/--preload-artifacts
// directories. The local IPC's UpdateRecipesAndArtifacts call does not
// read these directories or copy anything into the store; it only prunes.
//
// The HTTP implementation is grounded on hashicorp/go-retryablehttp with
// hashicorp/go-cleanhttp's pooled transport, the same resilient-fetch
// combination bitswalk-ldf's artifact pipeline in the example pack uses
// for its own download step.
package fetch
