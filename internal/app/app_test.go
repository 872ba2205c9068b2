package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kitbuilder/backend/config"
	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/infrastructure/store/rest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	return &config.Config{
		Store:       config.StoreConfig{Type: config.StoreMemory},
		Collections: config.CollectionsConfig{Products: "products", Users: "users"},
		Cache:       config.CacheConfig{Type: config.CacheMemory, TTL: time.Minute},
		Catalog:     config.CatalogConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewWithSeededMemoryStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.SeedFile = writeFile(t, "seed.json", `{
		"products": [
			{"id": "p1", "fields": {"name": "Elastic Bandage", "brand": "Ace", "category": "orthopedic", "price": 6.5}},
			{"id": "p2", "fields": {"name": "Digital Thermometer", "brand": "Braun", "category": "diagnostics", "price": 19.99}}
		],
		"users": [
			{"id": "u1", "fields": {"email": "medic@example.com"}}
		]
	}`)

	a, err := New(t.Context(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	result, err := a.Catalog.Products(t.Context(), domain.QuerySpec{SearchText: "thermo"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "p2", result.Items[0].ID)
	assert.Equal(t, 1, result.TotalCount)

	doc, err := a.Store.GetDocument(t.Context(), "products", "p1")
	require.NoError(t, err)
	assert.Contains(t, doc["searchKeywords"], "elastic")

	user, err := a.Store.GetDocument(t.Context(), "users", "u1")
	require.NoError(t, err)
	assert.NotContains(t, user, "searchKeywords")

	summary, err := a.Kits.AddItem(t.Context(), "s1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 13.0, summary.EstimatedTotal)
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unknown store type",
			mutate:  func(c *config.Config) { c.Store.Type = "sqlite" },
			wantErr: "unknown store type",
		},
		{
			name:    "missing seed file",
			mutate:  func(c *config.Config) { c.Store.SeedFile = filepath.Join(t.TempDir(), "absent.json") },
			wantErr: "open seed file",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *config.Config) { c.Cache.Type = "memcached" },
			wantErr: "unknown cache type",
		},
		{
			name: "bad redis url",
			mutate: func(c *config.Config) {
				c.Cache.Type = config.CacheRedis
				c.Cache.RedisURL = "not-a-url"
			},
			wantErr: "connect redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			a, err := New(t.Context(), cfg, nil)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStoreREST(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Type = config.StoreREST
	cfg.Store.BaseURL = "http://localhost:9999"

	store, closeStore, err := NewStore(t.Context(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &rest.Client{}, store)
	assert.NoError(t, closeStore())
}

func TestLoadSeedFileRejectsMalformedJSON(t *testing.T) {
	_, err := LoadSeedFile(writeFile(t, "seed.json", `["not", "an", "object"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode seed file")
}

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(`[
		{"id": "a", "fields": {"name": "Tweezers", "price": 2.5}},
		{"id": "b", "fields": {}}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, 2.5, records[0].Fields["price"])

	_, err = ReadRecords(strings.NewReader(`{"id": "a"}`))
	assert.Error(t, err)
}
