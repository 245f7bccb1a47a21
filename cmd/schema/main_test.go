package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSchemas(t *testing.T) {
	schemas := buildSchemas()

	require.Contains(t, schemas, "server.schema.json")
	require.Contains(t, schemas, "map.schema.json")
	assert.Equal(t, "surftimer map", schemas["map.schema.json"].Title)
}

func TestWriteSchema(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "map.schema.json")

	require.NoError(t, writeSchema(out, buildSchemas()["map.schema.json"]))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NoFileExists(t, out+".tmp")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, string(data), "entities")
	assert.Contains(t, string(data), "timer_mapping_api_version")
}
