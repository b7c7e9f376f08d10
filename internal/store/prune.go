package store

import (
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"fleetd/internal/metrics"
	"fleetd/pkg/logging"
)

// Reachable is the mark set a prune pass keeps: for each component name,
// the versions still reachable from some group's root components (after
// transitive dependency closure) or currently running. §4.2's preemptive
// cleanup contract guarantees at least {running version, target version}
// survives per root name; callers build this set accordingly before
// calling Prune.
type Reachable map[string]map[string]bool // name -> version string -> keep

// Keep marks name@version as reachable.
func (r Reachable) Keep(name string, v *semver.Version) {
	if r[name] == nil {
		r[name] = make(map[string]bool)
	}
	r[name][v.String()] = true
}

func (r Reachable) has(name, version string) bool {
	versions, ok := r[name]
	if !ok {
		return false
	}
	return versions[version]
}

// Prune deletes every (name, version) under the recipe and artifact trees
// not present in keep (§4.2 "mark-and-sweep"). Pruning is best-effort: a
// deletion failure (e.g. an in-use file) is logged and retried on the next
// call rather than aborting the whole pass.
func (s *Store) Prune(keep Reachable) error {
	if err := s.pruneRecipes(keep); err != nil {
		metrics.StorePrunes.WithLabelValues("error").Inc()
		return err
	}
	if err := s.pruneVersionTree(filepath.Join(s.packagesRoot(), dirArtifacts), keep); err != nil {
		metrics.StorePrunes.WithLabelValues("error").Inc()
		return err
	}
	if err := s.pruneVersionTree(filepath.Join(s.packagesRoot(), dirArtifactsDecompressed), keep); err != nil {
		metrics.StorePrunes.WithLabelValues("error").Inc()
		return err
	}
	metrics.StorePrunes.WithLabelValues("success").Inc()
	return nil
}

func (s *Store) pruneRecipes(keep Reachable) error {
	dir := filepath.Join(s.packagesRoot(), dirRecipes)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, version, ok := splitRecipeFilename(e.Name())
		if !ok || keep.has(name, version) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("store", "prune: could not remove %s, retrying next pass: %v", path, err)
			continue
		}
		logging.Info("store", "pruned recipe %s@%s", name, version)
	}
	return nil
}

// pruneVersionTree walks <root>/<name>/<version>/ directories and removes
// any not present in keep.
func (s *Store) pruneVersionTree(root string, keep Reachable) error {
	names, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, nameEntry := range names {
		if !nameEntry.IsDir() {
			continue
		}
		name := nameEntry.Name()
		namePath := filepath.Join(root, name)
		versions, err := os.ReadDir(namePath)
		if err != nil {
			continue
		}
		for _, versionEntry := range versions {
			if !versionEntry.IsDir() {
				continue
			}
			version := versionEntry.Name()
			if keep.has(name, version) {
				continue
			}
			path := filepath.Join(namePath, version)
			if err := os.RemoveAll(path); err != nil {
				logging.Warn("store", "prune: could not remove %s, retrying next pass: %v", path, err)
				continue
			}
			logging.Info("store", "pruned %s", path)
		}
	}
	return nil
}

// splitRecipeFilename parses "<name>-<version>.yaml" back into (name,
// version). Component names are not permitted to contain a trailing
// "-<semver>" of their own, mirroring §3's identifier tuple.
func splitRecipeFilename(filename string) (name, version string, ok bool) {
	ext := filepath.Ext(filename)
	if ext != ".yaml" {
		return "", "", false
	}
	stem := filename[:len(filename)-len(ext)]
	idx := lastDash(stem)
	if idx < 0 {
		return "", "", false
	}
	name = stem[:idx]
	version = stem[idx+1:]
	if _, err := semver.NewVersion(version); err != nil {
		return "", "", false
	}
	return name, version, true
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}
