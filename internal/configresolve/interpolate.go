package configresolve

import (
	"encoding/json"
	"regexp"
	"strings"

	"fleetd/internal/component"
	"fleetd/internal/jsonptr"
)

// Namespace is one of the three recognized interpolation namespaces of
// spec §4.3.
type Namespace string

const (
	NamespaceConfiguration Namespace = "configuration"
	NamespaceArtifacts     Namespace = "artifacts"
	NamespaceKernel        Namespace = "kernel"
)

func isKnownNamespace(s string) bool {
	switch Namespace(s) {
	case NamespaceConfiguration, NamespaceArtifacts, NamespaceKernel:
		return true
	default:
		return false
	}
}

// placeholderPattern matches "{...}" with no nested braces, generalizing
// internal/template.Engine's templatePattern from Go-template "{{ name }}"
// syntax to this spec's single-brace "{ns:key}"/"{component:ns:key}"
// syntax.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// ArtifactLocator resolves the whole-component-version artifact
// directories the "artifacts" namespace reports, backed by
// internal/store.Store in production.
type ArtifactLocator interface {
	ArtifactDir(id component.Identifier) string
	DecompressedDir(id component.Identifier) string
}

// Context carries everything one component's lifecycle strings may
// reference: its own resolved configuration, its direct dependencies
// (cross-component interpolation is permitted only to these, per §4.3),
// the already-resolved configuration of those dependencies, and the
// supervisor-wide artifact/kernel values.
type Context struct {
	Self              component.Identifier
	SelfConfiguration interface{}
	Dependencies      map[string]component.Identifier   // direct dependency name -> identifier
	DependencyConfigs map[string]interface{}             // direct dependency name -> resolved configuration
	Artifacts         ArtifactLocator
	KernelRootPath    string
	Log               Logf
}

func (c Context) log(format string, args ...interface{}) {
	if c.Log != nil {
		c.Log(format, args...)
	}
}

// Interpolate scans value (typically a lifecycle script string, or a tree
// containing such strings) and replaces every recognized, resolvable
// placeholder. Iteration is non-nested: a replacement's own text is never
// re-scanned (§4.3).
func (c Context) Interpolate(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return c.interpolateString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = c.Interpolate(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = c.Interpolate(val)
		}
		return out
	default:
		return value
	}
}

func (c Context) interpolateString(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[0], loc[1]
		inner := s[loc[2]:loc[3]]

		replacement, resolved := c.resolvePlaceholder(inner)
		b.WriteString(s[last:start])
		if resolved {
			b.WriteString(replacement)
		} else {
			b.WriteString(s[start:end])
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func (c Context) resolvePlaceholder(inner string) (string, bool) {
	parts := strings.SplitN(inner, ":", 3)

	var componentName, namespace, key string
	switch len(parts) {
	case 2:
		if !isKnownNamespace(parts[0]) {
			c.log("interpolation %q: unknown namespace %q, left in place", inner, parts[0])
			return "", false
		}
		namespace, key = parts[0], parts[1]
	case 3:
		if !isKnownNamespace(parts[1]) {
			c.log("interpolation %q: unknown namespace %q, left in place", inner, parts[1])
			return "", false
		}
		componentName, namespace, key = parts[0], parts[1], parts[2]
	default:
		return "", false
	}

	target := c.Self
	targetConfig := c.SelfConfiguration
	if componentName != "" {
		depID, isDirectDep := c.Dependencies[componentName]
		if !isDirectDep {
			c.log("interpolation %q: %s is not a direct dependency of %s, left in place", inner, componentName, c.Self)
			return "", false
		}
		target = depID
		targetConfig = c.DependencyConfigs[componentName]
	}

	switch Namespace(namespace) {
	case NamespaceConfiguration:
		val, found, err := jsonptr.Get(targetConfig, key)
		if err != nil || !found {
			c.log("interpolation %q: no value at pointer %q for %s, left in place", inner, key, target)
			return "", false
		}
		return stringifyConfigValue(val), true

	case NamespaceArtifacts:
		if c.Artifacts == nil {
			return "", false
		}
		switch key {
		case "path":
			return c.Artifacts.ArtifactDir(target), true
		case "decompressedPath":
			return c.Artifacts.DecompressedDir(target), true
		default:
			c.log("interpolation %q: unknown artifacts key %q, left in place", inner, key)
			return "", false
		}

	case NamespaceKernel:
		if key == "rootPath" {
			return c.KernelRootPath, true
		}
		c.log("interpolation %q: unknown kernel key %q, left in place", inner, key)
		return "", false
	}
	return "", false
}

// stringifyConfigValue renders a scalar as plain text and a container as
// its JSON serialization, per the "configuration" namespace row of §4.3.
func stringifyConfigValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(data), `"`)
	}
}
