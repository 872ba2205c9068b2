package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitbuilder/backend/config"
	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/infrastructure/cache"
	"github.com/kitbuilder/backend/internal/infrastructure/store/memstore"
	"github.com/kitbuilder/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testProducts = []domain.Record{
	{ID: "p1", Fields: map[string]any{
		"name": "Sterile Gauze Pads", "brand": "Curad", "category": "wound-care",
		"price": 5.49, "rating": 4.5, "features": "Sterile, Latex-free",
	}},
	{ID: "p2", Fields: map[string]any{
		"name": "Burn Gel", "brand": "Water-Jel", "category": "burns",
		"price": 12.0, "rating": 4.1,
	}},
	{ID: "p3", Fields: map[string]any{
		"name": "Adhesive Bandages", "brand": "Curad", "category": "bandages",
		"price": "3.25",
	}},
	{ID: "p4", Fields: map[string]any{
		"name": "Trauma Shears", "brand": "Madison", "category": "instruments",
		"price": 9.0, "rating": 4.8,
	}},
}

// setupTestRouter wires the real services over the in-memory store and cache
func setupTestRouter(t *testing.T, clientSide bool) (*gin.Engine, *memstore.Store) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Collections: config.CollectionsConfig{Products: "products", Users: "users"},
		Cache:       config.CacheConfig{Type: "memory"},
	}

	store := memstore.New()
	stampDerived := usecase.StampDerivedFields("products")
	records := make([]domain.Record, len(testProducts))
	for i, r := range testProducts {
		records[i] = stampDerived("products", r)
	}
	store.Load("products", records)

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = memCache.Close() })

	translator := usecase.DefaultCategoryTranslator()
	catalog := usecase.NewCatalogService(store, memCache, nil, nil, nil, translator, usecase.CatalogServiceConfig{
		ProductsCollection:  "products",
		CacheTTL:            time.Minute,
		ClientSideFiltering: clientSide,
	}, nil)
	kits := usecase.NewKitService(memCache, catalog, translator, usecase.KitServiceConfig{}, nil)
	importer := usecase.NewImporter(store, usecase.ImporterConfig{
		Collections: cfg.ManagedCollections(),
		Transform:   stampDerived,
	}, nil)
	admin := usecase.NewAdminService(store, importer, catalog, usecase.AdminServiceConfig{
		Collections:     cfg.ManagedCollections(),
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}, nil)

	handler := NewHandler(catalog, kits, admin, nil)
	return SetupRouter(cfg, handler, nil), store
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w, response
}

func itemIDs(response map[string]any) []string {
	items, _ := response["items"].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		m, _ := item.(map[string]any)
		if p, ok := m["product"].(map[string]any); ok {
			m = p
		}
		id, _ := m["id"].(string)
		out = append(out, id)
	}
	return out
}

func TestHealthCheckEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	w, response := doRequest(t, router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if response["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", response["status"])
	}
	if response["service"] != "kitbuilder-backend" {
		t.Errorf("service = %v, want kitbuilder-backend", response["service"])
	}

	for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
		w, _ := doRequest(t, router, method, "/health", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
		}
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	w, response := doRequest(t, router, "GET", "/api/v1/categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	categories, _ := response["categories"].([]any)
	if len(categories) == 0 {
		t.Fatal("expected categories")
	}
	first, _ := categories[0].(map[string]any)
	if first["canonical"] != "wound-care" || first["display"] != "Wound Care & Dressings" {
		t.Errorf("first category = %v", first)
	}
}

func TestProductsEndpoint(t *testing.T) {
	for _, clientSide := range []bool{false, true} {
		t.Run(fmt.Sprintf("clientSide=%v", clientSide), func(t *testing.T) {
			router, _ := setupTestRouter(t, clientSide)

			tests := []struct {
				name      string
				query     string
				wantIDs   []string
				wantTotal float64
			}{
				{"default sort by name", "", []string{"p3", "p2", "p1", "p4"}, 4},
				{"category includes aliases", "?category=wound-care", []string{"p3", "p1"}, 2},
				{"brand and price sort", "?brand=Curad&sort=price", []string{"p3", "p1"}, 2},
				{"price range", "?minPrice=5&maxPrice=10&sort=price&dir=desc", []string{"p4", "p1"}, 2},
				{"rating floor", "?minRating=4.5&sort=rating", []string{"p1", "p4"}, 2},
				{"search", "?search=gauze", []string{"p1"}, 1},
				{"newest first", "?sort=createdAt&dir=desc", []string{"p4", "p3", "p2", "p1"}, 4},
				{"pagination keeps total", "?pageSize=2&page=2", []string{"p1", "p4"}, 4},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					w, response := doRequest(t, router, "GET", "/api/v1/products"+tt.query, "")
					if w.Code != http.StatusOK {
						t.Fatalf("Status = %d, want 200: %s", w.Code, w.Body.String())
					}
					got := itemIDs(response)
					if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
						t.Errorf("items = %v, want %v", got, tt.wantIDs)
					}
					if response["totalCount"] != tt.wantTotal {
						t.Errorf("totalCount = %v, want %v", response["totalCount"], tt.wantTotal)
					}
				})
			}
		})
	}
}

func TestProductsEndpoint_InvalidParams(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	for _, query := range []string{"?minPrice=cheap", "?page=two", "?maxRating=x"} {
		w, response := doRequest(t, router, "GET", "/api/v1/products"+query, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: Status = %d, want 400", query, w.Code)
		}
		if response["error"] == nil {
			t.Errorf("%s: expected error field in response", query)
		}
	}
}

func TestProductEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	w, response := doRequest(t, router, "GET", "/api/v1/products/p1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	if response["name"] != "Sterile Gauze Pads" {
		t.Errorf("name = %v", response["name"])
	}
	features, _ := response["features"].([]any)
	if len(features) != 2 {
		t.Errorf("features = %v, want 2 entries", response["features"])
	}

	w, _ = doRequest(t, router, "GET", "/api/v1/products/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing product Status = %d, want 404", w.Code)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	w, response := doRequest(t, router, "GET", "/api/v1/products/suggest?q=cur&fields=brand", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	suggestions, _ := response["suggestions"].([]any)
	if len(suggestions) != 1 || suggestions[0] != "Curad" {
		t.Errorf("suggestions = %v, want [Curad]", suggestions)
	}

	_, response = doRequest(t, router, "GET", "/api/v1/products/suggest?q=", "")
	if suggestions, _ := response["suggestions"].([]any); len(suggestions) != 0 {
		t.Errorf("blank query suggestions = %v, want none", suggestions)
	}
}

func TestKitEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t, false)
	base := "/api/v1/kits/session-1"

	w, response := doRequest(t, router, "GET", base, "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty kit Status = %d, want 200", w.Code)
	}
	if response["totalQuantity"] != float64(0) {
		t.Errorf("empty kit totalQuantity = %v", response["totalQuantity"])
	}

	w, _ = doRequest(t, router, "POST", base+"/items", `{"productId":"p1","quantity":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add Status = %d, want 200: %s", w.Code, w.Body.String())
	}
	w, response = doRequest(t, router, "POST", base+"/items", `{"productId":"p3","quantity":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add Status = %d, want 200", w.Code)
	}

	totals, _ := response["categoryTotals"].(map[string]any)
	if totals["Wound Care & Dressings"] != float64(3) {
		t.Errorf("categoryTotals = %v, want aliases collapsed into one bucket of 3", totals)
	}
	if response["totalQuantity"] != float64(3) {
		t.Errorf("totalQuantity = %v, want 3", response["totalQuantity"])
	}

	w, response = doRequest(t, router, "PUT", base+"/items/p1", `{"quantity":5}`)
	if w.Code != http.StatusOK || response["totalQuantity"] != float64(6) {
		t.Errorf("set quantity Status = %d totalQuantity = %v, want 200 and 6", w.Code, response["totalQuantity"])
	}

	_, response = doRequest(t, router, "PUT", base+"/items/p1", `{"quantity":0}`)
	if response["totalQuantity"] != float64(1) {
		t.Errorf("quantity 0 should remove, totalQuantity = %v", response["totalQuantity"])
	}

	w, _ = doRequest(t, router, "POST", base+"/items", `{"productId":"p2","quantity":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity add Status = %d, want 400", w.Code)
	}
	w, _ = doRequest(t, router, "POST", base+"/items", `{"productId":"ghost","quantity":1}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown product add Status = %d, want 404", w.Code)
	}
	w, _ = doRequest(t, router, "PUT", base+"/items/p1", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing quantity Status = %d, want 400", w.Code)
	}
	w, _ = doRequest(t, router, "POST", base+"/items", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body Status = %d, want 400", w.Code)
	}

	_, response = doRequest(t, router, "DELETE", base+"/items/p3", "")
	if response["totalQuantity"] != float64(0) {
		t.Errorf("after remove totalQuantity = %v, want 0", response["totalQuantity"])
	}

	w, _ = doRequest(t, router, "DELETE", base, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("reset Status = %d, want 204", w.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	router, store := setupTestRouter(t, false)
	base := "/api/v1/admin/products"

	w, response := doRequest(t, router, "GET", base+"?pageSize=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list Status = %d, want 200", w.Code)
	}
	if response["totalCount"] != float64(4) {
		t.Errorf("totalCount = %v, want 4", response["totalCount"])
	}
	if docs, _ := response["documents"].([]any); len(docs) != 2 {
		t.Errorf("documents = %d, want 2", len(docs))
	}

	w, response = doRequest(t, router, "POST", base, `{"id":"p9","fields":{"name":"Cold Pack","category":"emergency","price":2}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create Status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if response["$id"] != "p9" {
		t.Errorf("$id = %v, want p9", response["$id"])
	}

	w, _ = doRequest(t, router, "POST", base, `{"id":"p9","fields":{"name":"again"}}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create Status = %d, want 409", w.Code)
	}

	// the new product is searchable once the catalog cache is invalidated
	_, response = doRequest(t, router, "GET", "/api/v1/products?search=cold", "")
	if ids := itemIDs(response); len(ids) != 1 || ids[0] != "p9" {
		t.Errorf("search after create = %v, want [p9]", ids)
	}

	w, response = doRequest(t, router, "PUT", base+"/p9", `{"fields":{"price":3.5}}`)
	if w.Code != http.StatusOK || response["price"] != 3.5 || response["name"] != "Cold Pack" {
		t.Errorf("update Status = %d body = %v", w.Code, response)
	}

	w, _ = doRequest(t, router, "GET", base+"/p9", "")
	if w.Code != http.StatusOK {
		t.Errorf("get Status = %d, want 200", w.Code)
	}

	w, _ = doRequest(t, router, "DELETE", base+"/p9", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete Status = %d, want 204", w.Code)
	}
	w, _ = doRequest(t, router, "GET", base+"/p9", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete Status = %d, want 404", w.Code)
	}

	w, _ = doRequest(t, router, "GET", "/api/v1/admin/orders", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown collection Status = %d, want 404", w.Code)
	}

	if _, err := store.GetDocument(t.Context(), "products", "p9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("store still holds p9: %v", err)
	}
}

func TestImportEndpoint(t *testing.T) {
	router, store := setupTestRouter(t, false)

	body := `[
		{"id": "p2", "fields": {"name": "Burn Gel", "brand": "Water-Jel", "category": "burns", "price": 12, "rating": 4.1}},
		{"id": "n1", "fields": {"name": "Ice Pack", "category": "emergency"}},
		{"id": "", "fields": {"name": "orphan"}}
	]`
	w, response := doRequest(t, router, "POST", "/api/v1/admin/products/import", body)
	if w.Code != http.StatusOK {
		t.Fatalf("import Status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if response["succeeded"] != float64(1) || response["skipped"] != float64(1) {
		t.Errorf("succeeded/skipped = %v/%v, want 1/1", response["succeeded"], response["skipped"])
	}
	if failed, _ := response["failed"].([]any); len(failed) != 1 {
		t.Errorf("failed = %v, want one entry", response["failed"])
	}

	doc, err := store.GetDocument(t.Context(), "products", "n1")
	if err != nil {
		t.Fatalf("imported document missing: %v", err)
	}
	if doc["searchKeywords"] == nil {
		t.Error("imported product has no keyword index")
	}

	w, _ = doRequest(t, router, "POST", "/api/v1/admin/products/import", `{"not":"an array"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad import body Status = %d, want 400", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("kit: %w", domain.ErrInvalidQuantity), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnknownCollection, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{fmt.Errorf("list: %w", domain.ErrStoreFailure), http.StatusBadGateway},
		{domain.ErrUnsupportedFragment, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
