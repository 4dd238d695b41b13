package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.RegisterTable("user", "id", "step", "Balance")
	r.RegisterTable("admin", "id_admin")
	return r
}

func TestRegistryCheckTable(t *testing.T) {
	r := newTestRegistry()

	assert.NoError(t, r.CheckTable("user"))
	assert.Error(t, r.CheckTable("payments"))
	assert.Error(t, r.CheckTable("user; DROP TABLE user"))
	assert.Error(t, r.CheckTable("user--"))
	assert.Error(t, r.CheckTable(""))
}

func TestRegistryCheckField(t *testing.T) {
	r := newTestRegistry()

	assert.NoError(t, r.CheckField("user", "step"))
	assert.Error(t, r.CheckField("user", "password"))
	assert.Error(t, r.CheckField("user", "step = 1 OR 1"))
	assert.Error(t, r.CheckField("invoice", "step"))
}

func TestRegistryCheckNewField(t *testing.T) {
	r := newTestRegistry()

	// Unknown but well-formed names pass; the evolver creates them later.
	assert.NoError(t, r.CheckNewField("user", "affiliatescount"))
	assert.Error(t, r.CheckNewField("user", "bad name"))
	assert.Error(t, r.CheckNewField("unknown", "affiliatescount"))
}

func TestRegistryAddField(t *testing.T) {
	r := newTestRegistry()

	require.Error(t, r.CheckField("user", "score"))
	r.AddField("user", "score")
	assert.NoError(t, r.CheckField("user", "score"))
	assert.True(t, r.HasField("user", "score"))
}

func TestRegistryCheckFieldList(t *testing.T) {
	r := newTestRegistry()

	assert.NoError(t, r.CheckFieldList("user", "*"))
	assert.NoError(t, r.CheckFieldList("user", "id, step"))
	assert.Error(t, r.CheckFieldList("user", "id, secret"))
	assert.Error(t, r.CheckFieldList("user", "id, step; --"))
}
