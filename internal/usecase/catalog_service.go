package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder/backend/internal/domain"
)

const (
	catalogAllCacheKey  = "catalog:all"
	productCacheKeyBase = "product:"
)

// Stored product field names used when building store fragments.
// Price predicates use BestPriceField and creation order uses domain.FieldCreatedAt.
const (
	storeFieldName     = "name"
	storeFieldBrand    = "brand"
	storeFieldCategory = "category"
	storeFieldFeatures = "features"
	storeFieldRating   = "rating"
)

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	ProductsCollection  string
	CacheTTL            time.Duration
	ClientSideFiltering bool
	SuggestLimit        int
}

// CatalogService answers catalog queries against the document store
type CatalogService struct {
	store       domain.DocumentStore
	cache       domain.CacheRepository
	normalizer  *Normalizer
	pipeline    *QueryPipeline
	suggestions *SuggestionService
	translator  *CategoryTranslator
	collection  string
	cacheTTL    time.Duration
	clientSide  bool
	logger      *zap.Logger
}

// NewCatalogService creates a new catalog service with dependencies
func NewCatalogService(
	store domain.DocumentStore,
	cache domain.CacheRepository,
	normalizer *Normalizer,
	pipeline *QueryPipeline,
	suggestions *SuggestionService,
	translator *CategoryTranslator,
	config CatalogServiceConfig,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if translator == nil {
		translator = DefaultCategoryTranslator()
	}
	if normalizer == nil {
		normalizer = NewNormalizer(NormalizerConfig{})
	}
	if pipeline == nil {
		pipeline = NewQueryPipeline(translator, nil, QueryPipelineConfig{}, logger)
	}
	if suggestions == nil {
		suggestions = NewSuggestionService(SuggestConfig{MaxResults: config.SuggestLimit, Translator: translator}, logger)
	}

	collection := config.ProductsCollection
	if collection == "" {
		collection = "products"
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	return &CatalogService{
		store:       store,
		cache:       cache,
		normalizer:  normalizer,
		pipeline:    pipeline,
		suggestions: suggestions,
		translator:  translator,
		collection:  collection,
		cacheTTL:    cacheTTL,
		clientSide:  config.ClientSideFiltering,
		logger:      logger,
	}
}

// Collection returns the name of the products collection
func (s *CatalogService) Collection() string {
	return s.collection
}

// Categories returns the category translation table
func (s *CatalogService) Categories() []domain.Category {
	return s.translator.Categories()
}

// Products runs spec with the configured query variant
func (s *CatalogService) Products(ctx context.Context, spec domain.QuerySpec) (domain.QueryResult, error) {
	if s.clientSide {
		return s.Browse(ctx, spec)
	}
	return s.Search(ctx, spec)
}

// Search pushes the query down to the store as fragments.
// A second count query with the same predicates and no pagination supplies TotalCount.
// Store errors are returned without retry.
func (s *CatalogService) Search(ctx context.Context, spec domain.QuerySpec) (domain.QueryResult, error) {
	spec = s.pipeline.NormalizeSpec(spec)
	fragments := s.BuildFragments(spec)

	list, err := s.store.ListDocuments(ctx, s.collection, fragments)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("list %s: %w", s.collection, err)
	}

	total, err := s.store.CountDocuments(ctx, s.collection, domain.WithoutPagination(fragments))
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("count %s: %w", s.collection, err)
	}

	s.logger.Debug("catalog search served by store",
		zap.String("search", spec.SearchText),
		zap.String("category", spec.Category),
		zap.Int("fragments", len(fragments)),
		zap.Int("returned", len(list.Documents)),
		zap.Int("total", total))

	return domain.QueryResult{
		Items:      s.normalizer.NormalizeAll(list.Documents),
		TotalCount: total,
		Page:       spec.Page,
		PageSize:   spec.PageSize,
	}, nil
}

// BuildFragments translates a normalized spec into store query fragments, pagination last
func (s *CatalogService) BuildFragments(spec domain.QuerySpec) []domain.Fragment {
	var fragments []domain.Fragment

	if spec.SearchText != "" {
		fragments = append(fragments, domain.Search(spec.SearchText,
			storeFieldName, storeFieldBrand, storeFieldCategory, storeFieldFeatures))
	}
	if spec.Category != domain.CategoryAll {
		canonical := s.translator.Canonicalize(spec.Category)
		values := []any{canonical}
		for _, alias := range s.translator.Aliases(canonical) {
			values = append(values, alias)
		}
		fragments = append(fragments, domain.In(storeFieldCategory, values...))
	}
	if spec.Brand != domain.BrandAll {
		fragments = append(fragments, domain.Equal(storeFieldBrand, spec.Brand))
	}
	if spec.MinPrice != nil {
		fragments = append(fragments, domain.GreaterEqual(BestPriceField, *spec.MinPrice))
	}
	if spec.MaxPrice != nil {
		fragments = append(fragments, domain.LessEqual(BestPriceField, *spec.MaxPrice))
	}
	if spec.MinRating != nil {
		fragments = append(fragments, domain.GreaterEqual(storeFieldRating, *spec.MinRating))
	}
	if spec.MaxRating != nil {
		fragments = append(fragments, domain.LessEqual(storeFieldRating, *spec.MaxRating))
	}

	fragments = append(fragments,
		domain.OrderBy(sortField(spec.SortKey), spec.SortDirection == domain.SortDesc),
		domain.Offset(spec.Offset()),
		domain.Limit(spec.PageSize),
	)
	return fragments
}

// Browse runs the in-memory pipeline over the full product set, fetched once and cached
func (s *CatalogService) Browse(ctx context.Context, spec domain.QuerySpec) (domain.QueryResult, error) {
	products, err := s.AllProducts(ctx)
	if err != nil {
		return domain.QueryResult{}, err
	}
	return s.pipeline.Query(products, spec), nil
}

// AllProducts returns every product in the collection, normalized
func (s *CatalogService) AllProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := getCachedJSON(ctx, s.cache, catalogAllCacheKey, &products); err == nil {
		return products, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	list, err := s.store.ListDocuments(ctx, s.collection, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collection, err)
	}
	products = s.normalizer.NormalizeAll(list.Documents)

	if err := setCachedJSON(ctx, s.cache, catalogAllCacheKey, products, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return products, nil
}

// GetProduct returns one product by id. Missing products yield domain.ErrNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.ErrInvalidRequest
	}

	cacheKey := productCacheKeyBase + id
	var product domain.Product
	if err := getCachedJSON(ctx, s.cache, cacheKey, &product); err == nil {
		return product, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("product cache read failed", zap.String("id", id), zap.Error(err))
	}

	raw, err := s.store.GetDocument(ctx, s.collection, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get %s/%s: %w", s.collection, id, err)
	}
	product = s.normalizer.Normalize(raw)
	if product.ID == "" {
		product.ID = id
	}

	if err := setCachedJSON(ctx, s.cache, cacheKey, product, s.cacheTTL); err != nil {
		s.logger.Warn("product cache write failed", zap.String("id", id), zap.Error(err))
	}
	return product, nil
}

// Suggest returns search suggestions drawn from the full product set
func (s *CatalogService) Suggest(ctx context.Context, text string, fields []string, maxResults int) ([]string, error) {
	text = s.pipeline.preprocessor.PreprocessQuery(text)
	if text == "" {
		return []string{}, nil
	}
	products, err := s.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return s.suggestions.Suggest(products, text, fields, maxResults), nil
}

// Invalidate drops cached catalog data after a write to the products collection
func (s *CatalogService) Invalidate(ctx context.Context, ids ...string) {
	keys := append([]string{catalogAllCacheKey}, prefixAll(productCacheKeyBase, ids)...)
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func sortField(key domain.SortKey) string {
	switch key {
	case domain.SortByPrice:
		return BestPriceField
	case domain.SortByRating:
		return storeFieldRating
	case domain.SortByBrand:
		return storeFieldBrand
	case domain.SortByCreatedAt:
		return domain.FieldCreatedAt
	}
	return storeFieldName
}

func prefixAll(prefix string, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, prefix+v)
		}
	}
	return out
}

// getCachedJSON decodes a cached JSON payload into dst.
// Payloads are stored as JSON strings so every cache backend returns them unchanged.
func getCachedJSON(ctx context.Context, cache domain.CacheRepository, key string, dst any) error {
	if cache == nil {
		return domain.ErrCacheMiss
	}
	value, err := cache.Get(ctx, key)
	if err != nil {
		return err
	}
	payload, ok := value.(string)
	if !ok {
		return domain.ErrCacheMiss
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

func setCachedJSON(ctx context.Context, cache domain.CacheRepository, key string, value any, ttl time.Duration) error {
	if cache == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}
	return cache.Set(ctx, key, string(payload), ttl)
}
