package configresolve

import (
	"fleetd/internal/jsonptr"
)

// Logf receives a human-readable notice about a RESET or interpolation
// decision that spec §4.3 requires to be "logged" rather than failed.
type Logf func(format string, args ...interface{})

// Reset applies one RESET pointer to current, following spec §4.3's four
// cases, and returns the resulting tree (current is never mutated).
func Reset(current, defaults interface{}, pointer string, log Logf) interface{} {
	if log == nil {
		log = func(string, ...interface{}) {}
	}

	if pointer == "" {
		return deepCopy(defaults)
	}

	if jsonptr.IsArrayElement(pointer) {
		log("RESET %s ignored: targets an array element", pointer)
		return current
	}

	workingTree := deepCopy(current)
	parent, lastToken, ok, err := jsonptr.Parent(workingTree, pointer)
	if err != nil {
		log("RESET %s ignored: %v", pointer, err)
		return current
	}
	if !ok {
		log("RESET %s ignored: parent is missing or not an object", pointer)
		return current
	}

	defaultVal, found, _ := jsonptr.Get(defaults, pointer)
	if found {
		parent[lastToken] = deepCopy(defaultVal)
	} else {
		delete(parent, lastToken)
	}
	return workingTree
}

// ApplyResets applies each pointer in order, each operating on the result
// of the previous (§4.3's RESET is a list applied in sequence before
// MERGE).
func ApplyResets(current, defaults interface{}, pointers []string, log Logf) interface{} {
	result := current
	for _, p := range pointers {
		result = Reset(result, defaults, p, log)
	}
	return result
}
