// Package jsonptr provides RFC-6901 JSON pointer helpers over the generic
// interface{} configuration trees used across the deployment pipeline
// (map[string]interface{} / []interface{} / scalars / nil).
//
// Reads go through github.com/go-openapi/jsonpointer, which already
// implements pointer resolution over arbitrary interface{} documents via
// reflection — exactly the shape recipe defaults and resolved configuration
// trees take. Pointer *mutation* (used only by the configuration resolver's
// RESET step, which must distinguish "delete this key" from "no such
// container") has no equivalent in that library, so Tokens and Parent below
// are hand-rolled, in the same direct, dependency-free style the teacher
// uses for its own small structural helpers (config.Storage.sanitizeFilename).
package jsonptr
