package configresolve

import (
	"dario.cat/mergo"
)

// Merge deep-merges incoming over current per spec §4.3: object ⊕ object
// merges key-wise and recursively; any other combination (including an
// explicit null) replaces the slot entirely. A nil incoming value is
// itself a legal replacement and wins outright.
func Merge(current, incoming interface{}) (interface{}, error) {
	if incoming == nil {
		return nil, nil
	}

	incMap, incIsMap := incoming.(map[string]interface{})
	curMap, curIsMap := current.(map[string]interface{})
	if !incIsMap || !curIsMap {
		return deepCopy(incoming), nil
	}

	dst, _ := deepCopy(curMap).(map[string]interface{})
	if err := mergo.Merge(&dst, incMap, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return nil, err
	}
	return dst, nil
}
