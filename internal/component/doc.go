// Package component defines the data model shared by every stage of the
// deployment pipeline: component identifiers, recipes, artifacts and the
// lifecycle namespace a recipe declares.
//
// Configuration trees (a recipe's default configuration, a deployment's
// merge/reset payloads, the configuration resolver's output) are kept as
// plain interface{} built from map[string]interface{}, []interface{} and
// scalars/nil, the same shape internal/configresolve walks and the same
// shape the teacher's template engine and config storage already used for
// comparable untyped trees. There is no bespoke tagged variant type.
package component
