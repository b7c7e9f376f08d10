package jsonptr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Get resolves an RFC-6901 pointer against doc. An empty pointer ("")
// returns doc itself. found is false, with a nil error, whenever the
// pointer does not resolve: a missing key/index and a path that indexes
// into a scalar are reported the same way. err is non-nil only when the
// pointer string itself is invalid.
func Get(doc interface{}, pointer string) (value interface{}, found bool, err error) {
	if pointer == "" {
		return doc, true, nil
	}
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, false, fmt.Errorf("jsonptr: invalid pointer %q: %w", pointer, err)
	}
	v, _, err := p.Get(doc)
	if err != nil {
		// go-openapi/jsonpointer reports any unresolvable segment as an
		// error; for our purposes that is simply "not found".
		return nil, false, nil
	}
	return v, true, nil
}

// Tokens splits an RFC-6901 pointer into its unescaped reference tokens.
// Tokens("") returns an empty slice (the whole-document pointer).
func Tokens(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("jsonptr: pointer %q must start with '/'", pointer)
	}
	raw := strings.Split(pointer[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		t = strings.ReplaceAll(t, "~0", "~")
		tokens[i] = t
	}
	return tokens, nil
}

// Parent walks all but the last token of pointer starting from doc and
// returns the container that should hold the final key, the final token
// itself, and whether that container exists and is navigable (an object
// for the last-but-one segment; RFC-6901 array indices are represented as
// decimal tokens but the deployment pipeline's RESET rule explicitly
// disallows targeting array elements, so Parent only ever walks objects).
func Parent(doc interface{}, pointer string) (parent map[string]interface{}, lastToken string, ok bool, err error) {
	tokens, err := Tokens(pointer)
	if err != nil {
		return nil, "", false, err
	}
	if len(tokens) == 0 {
		return nil, "", false, fmt.Errorf("jsonptr: Parent called with whole-document pointer")
	}

	cur := doc
	for _, tok := range tokens[:len(tokens)-1] {
		m, isMap := cur.(map[string]interface{})
		if !isMap {
			return nil, "", false, nil
		}
		next, exists := m[tok]
		if !exists {
			return nil, "", false, nil
		}
		cur = next
	}

	m, isMap := cur.(map[string]interface{})
	if !isMap {
		return nil, "", false, nil
	}
	return m, tokens[len(tokens)-1], true, nil
}

// IsArrayElement reports whether the final token of pointer looks like an
// array index (all digits, or "-" for the append position), used by RESET
// to reject pointers that target array elements.
func IsArrayElement(pointer string) bool {
	tokens, err := Tokens(pointer)
	if err != nil || len(tokens) == 0 {
		return false
	}
	last := tokens[len(tokens)-1]
	if last == "-" {
		return true
	}
	if _, err := strconv.Atoi(last); err == nil {
		return true
	}
	return false
}
