package main

import (
	"testing"

	"github.com/h4ks-com/crop-notifier/internal/database"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlCatalog = `
- name: Carrot
  kind: crop
  harvest_seconds: 60
  sell_price: 0.02
- name: Apple Tree
  kind: Tree
  harvest_seconds: 7200
  sell_price: 1.5
  active: false
- name: ""
  harvest_seconds: 10
`

const jsonCatalog = `[
  {"name": "Carrot", "kind": "crop", "harvest_seconds": 90, "sell_price": 0.03},
  {"name": "Mystery", "kind": "vine", "harvest_seconds": 10}
]`

func TestParseCropTypes(t *testing.T) {
	entries, err := parseCropTypes("catalog.yaml", []byte(yamlCatalog))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Apple Tree", entries[1].Name)
	assert.Equal(t, 7200, entries[1].HarvestSeconds)
	assert.False(t, entries[1].toModel().Active)
	assert.Equal(t, "tree", entries[1].toModel().Kind)
	assert.True(t, entries[0].toModel().Active)

	entries, err = parseCropTypes("catalog.json", []byte(jsonCatalog))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = parseCropTypes("catalog.json", []byte("{"))
	assert.Error(t, err)
}

func TestImportCropTypes(t *testing.T) {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cropTypes := repository.NewCropTypeRepository(db)
	svc := services.NewCropService(repository.NewCropRepository(db), cropTypes, repository.NewUserRepository(db), db)

	entries, err := parseCropTypes("catalog.yml", []byte(yamlCatalog))
	require.NoError(t, err)

	var skippedNames []string
	imported, skipped := importCropTypes(entries, svc, func(e CropTypeImport, err error) {
		skippedNames = append(skippedNames, e.Name)
	})
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{""}, skippedNames)

	entries, err = parseCropTypes("catalog.json", []byte(jsonCatalog))
	require.NoError(t, err)
	imported, skipped = importCropTypes(entries, svc, func(CropTypeImport, error) {})
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	carrot, err := cropTypes.FindByName("Carrot")
	require.NoError(t, err)
	require.NotNil(t, carrot)
	assert.Equal(t, 90, carrot.HarvestSeconds)
}
