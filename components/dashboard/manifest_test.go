package dashboard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const warehouseManifest = `
version: 1
name: warehouse-pack
entities:
  - entity:
      code: warehouse-transfers
      name: Warehouse Transfer
      columns:
        - id: transferNumber
          label: Transfer Number
          visible: true
        - id: fromSite
          label: From
          visible: true
          alt_key: source
        - id: status
          label: Status
          visible: true
      required: [transferNumber]
      status_column: status
      status_rules:
        Moved: success
      live_search: true
    maintainers: [ops@example.com]
    tags: [warehouse]
`

func TestDecodeManifest(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(warehouseManifest))
	require.NoError(t, err)
	require.Len(t, doc.Entities, 1)

	entity := doc.Entities[0].Entity
	assert.Equal(t, "warehouse-transfers", entity.Code)
	assert.Equal(t, "Warehouse Transfer", entity.Name)
	assert.Equal(t, "source", entity.DefaultColumns[1].AltKey)
	assert.Equal(t, "/api/warehouse-transfers/get-data", entity.Endpoints.List)
	assert.Equal(t, BadgeSuccess, entity.StatusRules.Resolve("moved"))
	assert.Equal(t, []string{"ops@example.com"}, doc.Entities[0].Maintainers)
}

func TestDecodeManifestRejectsUnknownFields(t *testing.T) {
	_, err := DecodeManifest(strings.NewReader("version: 1\nwidgets: []\n"))
	assert.Error(t, err)
}

func TestDecodeManifestRejectsDuplicates(t *testing.T) {
	payload := `
version: 1
entities:
  - entity: {code: a, name: A, columns: [{id: x, label: X, visible: true}]}
  - entity: {code: a, name: A2, columns: [{id: x, label: X, visible: true}]}
`
	_, err := DecodeManifest(strings.NewReader(payload))
	assert.ErrorContains(t, err, "duplicates")
}

func TestDecodeManifestEmpty(t *testing.T) {
	_, err := DecodeManifest(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")
}

func TestRegistryLoadManifestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(warehouseManifest), 0o644))

	reg := NewRegistry()
	doc, err := reg.LoadManifestFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)

	cfg, ok := reg.Entity("warehouse-transfers")
	require.True(t, ok)
	assert.True(t, cfg.LiveSearch)
	src, ok := reg.Source("warehouse-transfers")
	require.True(t, ok)
	assert.Equal(t, path, src)
	assert.Len(t, reg.Entities(), 7)
}
