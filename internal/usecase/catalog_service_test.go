package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/infrastructure/store/memstore"
)

func seedCatalog(store *MockDocumentStore) {
	store.seed("products", "p1", map[string]any{"name": "Medical Tape", "brand": "3M", "category": "wound-care", "price": 9.99})
	store.seed("products", "p2", map[string]any{"name": "Gauze Pads", "brand": "Curad", "category": "bandages", "price": "5"})
	store.seed("products", "p3", map[string]any{"name": "Trauma Shears", "brand": "Curad", "category": "instruments", "price": 15})
}

func newTestCatalogService(store *MockDocumentStore, cache *MockCacheRepository, clientSide bool) *CatalogService {
	return NewCatalogService(store, cache, nil, nil, nil, nil, CatalogServiceConfig{
		ProductsCollection:  "products",
		CacheTTL:            time.Minute,
		ClientSideFiltering: clientSide,
	}, nil)
}

func TestNewCatalogServiceDefaults(t *testing.T) {
	svc := NewCatalogService(NewMockDocumentStore(), NewMockCacheRepository(), nil, nil, nil, nil, CatalogServiceConfig{}, nil)
	if svc.collection != "products" {
		t.Errorf("collection = %q, want products", svc.collection)
	}
	if svc.cacheTTL != 5*time.Minute {
		t.Errorf("cacheTTL = %v, want 5m", svc.cacheTTL)
	}
	if len(svc.Categories()) != len(defaultCategories) {
		t.Errorf("Categories() len = %d, want %d", len(svc.Categories()), len(defaultCategories))
	}
}

func TestBuildFragments(t *testing.T) {
	svc := newTestCatalogService(NewMockDocumentStore(), NewMockCacheRepository(), false)

	t.Run("default spec only paginates", func(t *testing.T) {
		spec := svc.pipeline.NormalizeSpec(domain.QuerySpec{})
		assert.Equal(t, []domain.Fragment{
			domain.OrderBy("name", false),
			domain.Offset(0),
			domain.Limit(20),
		}, svc.BuildFragments(spec))
	})

	t.Run("every predicate", func(t *testing.T) {
		spec := svc.pipeline.NormalizeSpec(domain.QuerySpec{
			SearchText:    "  tape ",
			Category:      "Wound Care & Dressings",
			Brand:         "3M",
			MinPrice:      floatPtr(2),
			MaxPrice:      floatPtr(20),
			MinRating:     floatPtr(4),
			MaxRating:     floatPtr(5),
			SortKey:       domain.SortByPrice,
			SortDirection: domain.SortDesc,
			Page:          3,
			PageSize:      5,
		})
		assert.Equal(t, []domain.Fragment{
			domain.Search("tape", "name", "brand", "category", "features"),
			domain.In("category", "wound-care", "bandages", "dressings"),
			domain.Equal("brand", "3M"),
			domain.GreaterEqual("bestPrice", 2.0),
			domain.LessEqual("bestPrice", 20.0),
			domain.GreaterEqual("rating", 4.0),
			domain.LessEqual("rating", 5.0),
			domain.OrderBy("bestPrice", true),
			domain.Offset(10),
			domain.Limit(5),
		}, svc.BuildFragments(spec))
	})

	t.Run("creation order uses the store timestamp", func(t *testing.T) {
		spec := svc.pipeline.NormalizeSpec(domain.QuerySpec{SortKey: domain.SortByCreatedAt, SortDirection: domain.SortDesc})
		fragments := svc.BuildFragments(spec)
		assert.Equal(t, domain.OrderBy(domain.FieldCreatedAt, true), fragments[0])
	})
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a data query and a count without pagination", func(t *testing.T) {
		store := NewMockDocumentStore()
		seedCatalog(store)
		total := 42
		store.countResult = &total
		svc := newTestCatalogService(store, NewMockCacheRepository(), false)

		result, err := svc.Search(ctx, domain.QuerySpec{Category: "wound-care", Page: 2, PageSize: 3})
		require.NoError(t, err)

		assert.Equal(t, 42, result.TotalCount)
		assert.Equal(t, 2, result.Page)
		assert.Equal(t, 3, result.PageSize)
		require.Len(t, result.Items, 3)
		assert.Equal(t, "Medical Tape", result.Items[0].Name)
		assert.Equal(t, 5.0, *result.Items[1].Price)

		require.Len(t, store.listFragments, 1)
		require.Len(t, store.countFragments, 1)
		assert.Equal(t, domain.WithoutPagination(store.listFragments[0]), store.countFragments[0])
		for _, f := range store.countFragments[0] {
			assert.False(t, f.IsPagination(), "count query must not carry %s", f.Kind)
		}
	})

	t.Run("list failure surfaces without retry", func(t *testing.T) {
		store := NewMockDocumentStore()
		store.listError = domain.ErrStoreFailure
		svc := newTestCatalogService(store, NewMockCacheRepository(), false)

		_, err := svc.Search(ctx, domain.QuerySpec{})
		assert.ErrorIs(t, err, domain.ErrStoreFailure)
		assert.Equal(t, 1, store.listCalls)
		assert.Empty(t, store.countFragments)
	})

	t.Run("count failure surfaces", func(t *testing.T) {
		store := NewMockDocumentStore()
		store.countError = domain.ErrUnsupportedFragment
		svc := newTestCatalogService(store, NewMockCacheRepository(), false)

		_, err := svc.Search(ctx, domain.QuerySpec{})
		assert.ErrorIs(t, err, domain.ErrUnsupportedFragment)
	})
}

func TestCatalogBrowse(t *testing.T) {
	ctx := context.Background()
	store := NewMockDocumentStore()
	seedCatalog(store)
	cache := NewMockCacheRepository()
	svc := newTestCatalogService(store, cache, true)

	result, err := svc.Products(ctx, domain.QuerySpec{Category: "Wound Care & Dressings", SortKey: domain.SortByPrice})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, "p2", result.Items[0].ID)

	result, err = svc.Browse(ctx, domain.QuerySpec{Brand: "Curad"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)

	assert.Equal(t, 1, store.listCalls, "full product set should be fetched once and cached")
	assert.Contains(t, cache.data, catalogAllCacheKey)
	assert.Empty(t, store.countFragments)

	svc.Invalidate(ctx, "p1")
	assert.Contains(t, cache.deleted, catalogAllCacheKey)
	assert.Contains(t, cache.deleted, "product:p1")

	_, err = svc.Browse(ctx, domain.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)
}

func TestCatalogBrowseToleratesCacheFailure(t *testing.T) {
	store := NewMockDocumentStore()
	seedCatalog(store)
	cache := NewMockCacheRepository()
	cache.getError = errors.New("cache offline")
	cache.setError = errors.New("cache offline")
	svc := newTestCatalogService(store, cache, true)

	result, err := svc.Browse(context.Background(), domain.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
}

func TestCatalogGetProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("caches single lookups", func(t *testing.T) {
		store := NewMockDocumentStore()
		seedCatalog(store)
		svc := newTestCatalogService(store, NewMockCacheRepository(), false)

		first, err := svc.GetProduct(ctx, "p3")
		require.NoError(t, err)
		second, err := svc.GetProduct(ctx, "p3")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Offers, second.Offers)
		assert.Equal(t, "Trauma Shears", second.Name)
		assert.Equal(t, 1, store.getCalls)
	})

	t.Run("missing product", func(t *testing.T) {
		svc := newTestCatalogService(NewMockDocumentStore(), NewMockCacheRepository(), false)
		_, err := svc.GetProduct(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("blank id", func(t *testing.T) {
		svc := newTestCatalogService(NewMockDocumentStore(), NewMockCacheRepository(), false)
		_, err := svc.GetProduct(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestCatalogSuggest(t *testing.T) {
	ctx := context.Background()
	store := NewMockDocumentStore()
	seedCatalog(store)
	svc := newTestCatalogService(store, NewMockCacheRepository(), false)

	got, err := svc.Suggest(ctx, "cur", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Curad"}, got)

	got, err = svc.Suggest(ctx, "   ", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.listCalls)
}

// equivalenceCatalog returns a remote and a client-side service over the same memory store.
// Records are written in id order a..e, which is also their creation order.
func equivalenceCatalog(t *testing.T) (remote, local *CatalogService) {
	t.Helper()
	records := []domain.Record{
		{ID: "a", Fields: map[string]any{
			"name": "Sterile Gauze Pads", "brand": "Curad", "category": "wound-care", "price": 12.50, "rating": 4.5,
			"offers": []any{
				map[string]any{"vendorName": "Pharmacy", "price": 12.50},
				map[string]any{"vendorName": "Outlet", "price": 9.99},
			},
		}},
		{ID: "b", Fields: map[string]any{
			"name": "Burn Gel", "brand": "Water-Jel", "category": "burns", "rating": 4.1,
			"offers": []any{map[string]any{"vendorName": "Outlet", "price": 9.5}},
		}},
		{ID: "c", Fields: map[string]any{"name": "Adhesive Bandages", "brand": "Curad", "category": "bandages", "price": "3.25"}},
		{ID: "d", Fields: map[string]any{"name": "Trauma Shears", "brand": "Rescue", "category": "instruments", "price": 15, "rating": 4.8}},
		{ID: "e", Fields: map[string]any{"name": "Emergency Blanket", "brand": "Mylar", "category": "emergency", "rating": 3.9}},
	}
	stamp := StampDerivedFields("products")
	for i := range records {
		records[i] = stamp("products", records[i])
	}
	store := memstore.New()
	store.Load("products", records)

	config := CatalogServiceConfig{ProductsCollection: "products"}
	remote = NewCatalogService(store, NewMockCacheRepository(), nil, nil, nil, nil, config, nil)
	config.ClientSideFiltering = true
	local = NewCatalogService(store, NewMockCacheRepository(), nil, nil, nil, nil, config, nil)
	return remote, local
}

// searchAllPages concatenates every page of a remote search
func searchAllPages(t *testing.T, svc *CatalogService, spec domain.QuerySpec) ([]string, int) {
	t.Helper()
	spec.PageSize = 2
	var ids []string
	total := -1
	for page := 1; page <= 10; page++ {
		spec.Page = page
		result, err := svc.Search(context.Background(), spec)
		require.NoError(t, err)
		if total >= 0 {
			assert.Equal(t, total, result.TotalCount, "page %d", page)
		}
		total = result.TotalCount
		for _, p := range result.Items {
			ids = append(ids, p.ID)
		}
		if len(result.Items) < spec.PageSize {
			return ids, total
		}
	}
	t.Fatalf("search did not run out of pages")
	return nil, 0
}

func TestSearchMatchesBrowse(t *testing.T) {
	remote, local := equivalenceCatalog(t)

	testCases := []struct {
		name string
		spec domain.QuerySpec
		want []string
	}{
		{name: "default name order", want: []string{"c", "b", "e", "a", "d"}},
		{name: "best offer below list price", spec: domain.QuerySpec{MinPrice: floatPtr(10)}, want: []string{"d"}},
		{name: "offer-only product has a price", spec: domain.QuerySpec{MinPrice: floatPtr(9)}, want: []string{"b", "a", "d"}},
		{name: "upper bound on best price", spec: domain.QuerySpec{MaxPrice: floatPtr(9.6)}, want: []string{"c", "b"}},
		{name: "price ascending", spec: domain.QuerySpec{SortKey: domain.SortByPrice}, want: []string{"e", "c", "b", "a", "d"}},
		{name: "price descending", spec: domain.QuerySpec{SortKey: domain.SortByPrice, SortDirection: domain.SortDesc}, want: []string{"d", "a", "b", "c", "e"}},
		{name: "newest first", spec: domain.QuerySpec{SortKey: domain.SortByCreatedAt, SortDirection: domain.SortDesc}, want: []string{"e", "d", "c", "b", "a"}},
		{name: "oldest first", spec: domain.QuerySpec{SortKey: domain.SortByCreatedAt}, want: []string{"a", "b", "c", "d", "e"}},
		{name: "display category covers aliases", spec: domain.QuerySpec{Category: "Wound Care & Dressings"}, want: []string{"c", "a"}},
		{name: "brand and rating", spec: domain.QuerySpec{Brand: "Curad", MinRating: floatPtr(4)}, want: []string{"a"}},
		{name: "rating descending", spec: domain.QuerySpec{SortKey: domain.SortByRating, SortDirection: domain.SortDesc}, want: []string{"d", "a", "b", "e", "c"}},
		{name: "case-insensitive search", spec: domain.QuerySpec{SearchText: "GEL"}, want: []string{"b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotIDs, total := searchAllPages(t, remote, tc.spec)

			full := tc.spec
			full.PageSize = 100
			browsed, err := local.Browse(context.Background(), full)
			require.NoError(t, err)
			browsedIDs := make([]string, 0, len(browsed.Items))
			for _, p := range browsed.Items {
				browsedIDs = append(browsedIDs, p.ID)
			}

			assert.Equal(t, tc.want, browsedIDs)
			assert.Equal(t, browsedIDs, gotIDs, "concatenated remote pages")
			assert.Equal(t, browsed.TotalCount, total)
			assert.Equal(t, len(tc.want), total)
		})
	}
}
