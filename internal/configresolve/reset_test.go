package configresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsFixture() map[string]interface{} {
	return map[string]interface{}{
		"singleLevelKey": "default value of singleLevelKey",
		"listKey":        []interface{}{"item1", "item2"},
		"path": map[string]interface{}{
			"leafKey": "default value of /path/leafKey",
		},
	}
}

func TestConfigMergeResetCycle(t *testing.T) {
	defaults := defaultsFixture()
	var log []string
	logf := func(format string, args ...interface{}) { log = append(log, format) }

	// Step 1: no update yet -> result is exactly the defaults.
	current := ResolveComponentConfiguration(nil, defaults, nil, logf)

	// Step 2: MERGE.
	mergeTree := map[string]interface{}{
		"singleLevelKey":   "updated value of singleLevelKey",
		"listKey":          []interface{}{"item3"},
		"path":             map[string]interface{}{"leafKey": "updated value of /path/leafKey"},
		"newSingleLevelKey": "value of newSingleLevelKey",
	}
	current = ResolveComponentConfiguration(current, defaults, &ConfigurationUpdate{Merge: mergeTree}, logf)

	cfg := current.(map[string]interface{})
	assert.Equal(t, "updated value of singleLevelKey", cfg["singleLevelKey"])
	list := cfg["listKey"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "item3", list[0])
	assert.Equal(t, "value of newSingleLevelKey", cfg["newSingleLevelKey"])

	// Step 3: RESET ["/newSingleLevelKey", "/path/newLeafKey"] -- both vanish
	// (the second never existed, so it's a no-op remove).
	current = ResolveComponentConfiguration(current, defaults, &ConfigurationUpdate{
		Reset: []string{"/newSingleLevelKey", "/path/newLeafKey"},
	}, logf)
	cfg = current.(map[string]interface{})
	_, hasNew := cfg["newSingleLevelKey"]
	assert.False(t, hasNew)
	pathMap := cfg["path"].(map[string]interface{})
	_, hasNewLeaf := pathMap["newLeafKey"]
	assert.False(t, hasNewLeaf)
	// Unrelated keys survive the reset.
	assert.Equal(t, "updated value of singleLevelKey", cfg["singleLevelKey"])

	// Step 4: RESET [""] -- everything reverts to defaults exactly.
	current = ResolveComponentConfiguration(current, defaults, &ConfigurationUpdate{
		Reset: []string{""},
	}, logf)
	assert.Equal(t, defaults, current)
}

func TestReset_ArrayElementDisallowed(t *testing.T) {
	defaults := defaultsFixture()
	current := deepCopy(defaults)
	result := Reset(current, defaults, "/listKey/0", nil)
	assert.Equal(t, current, result)
}

func TestReset_ParentMissingIsNoOp(t *testing.T) {
	defaults := defaultsFixture()
	current := deepCopy(defaults)
	result := Reset(current, defaults, "/missingParent/child", nil)
	assert.Equal(t, current, result)
}

func TestReset_ParentIsScalarIsNoOp(t *testing.T) {
	defaults := defaultsFixture()
	current := deepCopy(defaults)
	result := Reset(current, defaults, "/singleLevelKey/child", nil)
	assert.Equal(t, current, result)
}

func TestReset_WholeDocReplace(t *testing.T) {
	defaults := defaultsFixture()
	current := map[string]interface{}{"somethingElseEntirely": true}
	result := Reset(current, defaults, "", nil)
	assert.Equal(t, defaults, result)
}

func TestMerge_ExplicitNullReplaces(t *testing.T) {
	current := map[string]interface{}{"k": "v"}
	result, err := Merge(current, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMerge_ObjectObjectRecursesKeyWise(t *testing.T) {
	current := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": "keep",
	}
	incoming := map[string]interface{}{
		"a": map[string]interface{}{"x": 99},
	}
	result, err := Merge(current, incoming)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	a := m["a"].(map[string]interface{})
	assert.Equal(t, 99, a["x"])
	assert.Equal(t, 2, a["y"])
	assert.Equal(t, "keep", m["b"])
}

func TestMerge_ListReplacesWholesale(t *testing.T) {
	current := map[string]interface{}{"listKey": []interface{}{"item1", "item2"}}
	incoming := map[string]interface{}{"listKey": []interface{}{"item3"}}
	result, err := Merge(current, incoming)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	list := m["listKey"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "item3", list[0])
}
