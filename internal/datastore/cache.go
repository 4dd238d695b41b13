package datastore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// selectCache memoizes read results for the lifetime of one Session. It is
// never authoritative: entries are discarded wholesale for a table the
// moment any write touches it.
type selectCache struct {
	mu         sync.Mutex
	results    map[string]interface{}
	tableIndex map[string]map[string]bool
}

func newSelectCache() *selectCache {
	return &selectCache{
		results:    make(map[string]interface{}),
		tableIndex: make(map[string]map[string]bool),
	}
}

// fingerprint returns a stable digest of a read's shape. Semantically
// identical reads collide; any differing input produces a different key.
func fingerprint(table, fields, filterField string, filterValue interface{}, mode Mode) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode([]interface{}{table, fields, filterField, filterValue, mode})
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// get hands out a copy of the stored result so a caller mutating a returned
// row cannot poison later hits for the same key.
func (c *selectCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.results[key]
	if !ok {
		return nil, false
	}
	return cloneResult(v), true
}

// cloneResult copies the shapes reads produce one level deep. Row values are
// scalars coming off the driver, so a per-row map copy is enough.
func cloneResult(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, row := range t {
			m := make(map[string]interface{}, len(row))
			for k, val := range row {
				m[k] = val
			}
			out[i] = m
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func (c *selectCache) put(key, table string, result interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	idx, ok := c.tableIndex[table]
	if !ok {
		idx = make(map[string]bool)
		c.tableIndex[table] = idx
	}
	idx[key] = true
}

// invalidate drops every entry that depends on the given table. An empty
// table name clears the whole cache.
func (c *selectCache) invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if table == "" {
		c.results = make(map[string]interface{})
		c.tableIndex = make(map[string]map[string]bool)
		return
	}
	idx, ok := c.tableIndex[table]
	if !ok {
		return
	}
	for key := range idx {
		delete(c.results, key)
	}
	delete(c.tableIndex, table)
}

func (c *selectCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
