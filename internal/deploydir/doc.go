// Package deploydir manages the per-deployment on-disk scratchpad of spec
// §4.6: a directory keyed by deployment ID with snapshot/, bootstrap/, and
// artifacts-staging/ subfolders.
//
// Grounded directly on internal/config.Storage's path-join + MkdirAll +
// idempotent-create shape: CreateIfNotExists mirrors Storage.Save's
// "ensure directory exists" step but returns the existing directory
// instead of overwriting its contents, and Remove mirrors Storage.Delete.
package deploydir
