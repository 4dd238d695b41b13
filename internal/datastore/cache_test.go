package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	a := fingerprint("user", "step", "id", "123", ModeRow)
	b := fingerprint("user", "step", "id", "123", ModeRow)
	assert.Equal(t, a, b)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := fingerprint("user", "step", "id", "123", ModeRow)

	assert.NotEqual(t, base, fingerprint("invoice", "step", "id", "123", ModeRow))
	assert.NotEqual(t, base, fingerprint("user", "Balance", "id", "123", ModeRow))
	assert.NotEqual(t, base, fingerprint("user", "step", "username", "123", ModeRow))
	assert.NotEqual(t, base, fingerprint("user", "step", "id", "456", ModeRow))
	assert.NotEqual(t, base, fingerprint("user", "step", "id", "123", ModeRows))
	// Same digits, different type: the filter value is encoded, not stringified.
	assert.NotEqual(t, base, fingerprint("user", "step", "id", 123, ModeRow))
}

func TestCacheInvalidateByTable(t *testing.T) {
	c := newSelectCache()
	c.put("k1", "user", "v1")
	c.put("k2", "user", "v2")
	c.put("k3", "invoice", "v3")

	c.invalidate("user")

	_, ok := c.get("k1")
	assert.False(t, ok)
	_, ok = c.get("k2")
	assert.False(t, ok)

	v, ok := c.get("k3")
	assert.True(t, ok)
	assert.Equal(t, "v3", v)
}

func TestCacheInvalidateAll(t *testing.T) {
	c := newSelectCache()
	c.put("k1", "user", "v1")
	c.put("k2", "invoice", "v2")

	c.invalidate("")
	assert.Zero(t, c.len())
}

func TestCacheInvalidateUnknownTable(t *testing.T) {
	c := newSelectCache()
	c.put("k1", "user", "v1")

	c.invalidate("invoice")
	v, ok := c.get("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestCacheGetReturnsCopies(t *testing.T) {
	c := newSelectCache()
	c.put("row", "user", map[string]interface{}{"step": "none"})
	c.put("rows", "user", []map[string]interface{}{{"step": "none"}})
	c.put("col", "user", []string{"a", "b"})

	v, ok := c.get("row")
	assert.True(t, ok)
	v.(map[string]interface{})["step"] = "mutated"

	v, ok = c.get("rows")
	assert.True(t, ok)
	v.([]map[string]interface{})[0]["step"] = "mutated"

	v, ok = c.get("col")
	assert.True(t, ok)
	v.([]string)[0] = "mutated"

	v, _ = c.get("row")
	assert.Equal(t, "none", v.(map[string]interface{})["step"])
	v, _ = c.get("rows")
	assert.Equal(t, "none", v.([]map[string]interface{})[0]["step"])
	v, _ = c.get("col")
	assert.Equal(t, []string{"a", "b"}, v.([]string))
}
