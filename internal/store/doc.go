// Package store implements the component store (spec §4.2): a durable,
// content-addressed local cache of recipes and artifacts under
// <root>/packages/{recipes,artifacts,artifacts-decompressed}, with
// preemptive mark-and-sweep pruning of unreferenced versions and
// coalesced fetches through the artifact collaborator (internal/fetch) on
// a cache miss.
//
// Store generalizes internal/config.Storage's pattern — mutex-guarded,
// path-joined, MkdirAll+WriteFile, sanitized filenames — from a single
// YAML-per-entity store to the two-tree cache described above, and adds
// what the teacher's Storage never needed: atomic temp-file+rename
// installs, digest verification, unarchiving, and single-flight fetch
// coalescing (golang.org/x/sync/singleflight, the sibling package of the
// errgroup-style golang.org/x/sync use already in the teacher's stack).
package store

// Implements resolver.CandidateSource so the dependency resolver can be
// constructed directly against a *Store; see LocalVersions,
// RemoteVersions and Recipe in store.go.
