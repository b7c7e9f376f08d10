// Package resolver implements dependency resolution across deployment
// groups (spec §4.1): given the union of root components and a new
// deployment's roots, it produces a concrete, acyclic name→(version, recipe)
// assignment satisfying every declared version requirement, or reports
// which name could not be satisfied.
//
// The graph shape — a map of NodeID to a small struct carrying its
// dependency edges, queried by Dependencies/Dependents — is
// internal/dependency.Graph from the teacher; edges carry no version
// constraint (the search keeps requirements per name). The teacher's graph explicitly skips cycle
// detection because its static graph is small and curated; resolved
// component graphs here are neither, so Graph adds Tarjan-style strongly
// connected component detection on top of the same adjacency shape.
package resolver
