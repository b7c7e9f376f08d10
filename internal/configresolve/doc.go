// Package configresolve implements the configuration resolver of spec
// §4.3: per-component RESET/MERGE of the configuration tree, and
// placeholder interpolation of lifecycle strings against the
// configuration/artifacts/kernel namespaces.
//
// The configuration tree is the generic interface{} shape described in
// internal/component's doc.go (map[string]interface{}/[]interface{}
// /scalars/nil), the same shape the teacher's internal/template.Engine and
// internal/config.Storage already operate on. RESET's pointer navigation
// is hand-rolled (internal/jsonptr) since no pointer-mutation library
// exists; MERGE is dario.cat/mergo (mergo.WithOverride +
// mergo.WithOverwriteWithEmptyValue), already a transitive teacher
// dependency pulled in by sprig, promoted to direct here because it is
// exactly "object merges key-wise, anything else replaces wholesale,
// explicit null is a legal replacement." Interpolation scanning reuses
// template.Engine's regexp scan-and-replace idiom, generalized from
// Go-template {{ name }} syntax to the spec's {ns:key}/{component:ns:key}
// syntax, with github.com/Masterminds/sprig/v3 still wired for recipe
// authors who want sprig helpers inside a RenderGoTemplate escape hatch.
package configresolve
