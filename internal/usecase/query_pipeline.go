package usecase

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/kitbuilder/backend/internal/domain"
)

// QueryPipelineConfig holds configuration for the in-memory query pipeline
type QueryPipelineConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// QueryPipeline filters, sorts and paginates a product set that is already in memory
type QueryPipeline struct {
	translator      *CategoryTranslator
	preprocessor    *QueryPreprocessor
	defaultPageSize int
	maxPageSize     int
	logger          *zap.Logger
}

// NewQueryPipeline creates a query pipeline with the given collaborators
func NewQueryPipeline(
	translator *CategoryTranslator,
	preprocessor *QueryPreprocessor,
	config QueryPipelineConfig,
	logger *zap.Logger,
) *QueryPipeline {
	if translator == nil {
		translator = DefaultCategoryTranslator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if preprocessor == nil {
		preprocessor = NewQueryPreprocessor(0, logger)
	}
	defaultPageSize := config.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	return &QueryPipeline{
		translator:      translator,
		preprocessor:    preprocessor,
		defaultPageSize: defaultPageSize,
		maxPageSize:     config.MaxPageSize,
		logger:          logger,
	}
}

// NormalizeSpec applies the pipeline's paging defaults and cleans the search text
func (q *QueryPipeline) NormalizeSpec(spec domain.QuerySpec) domain.QuerySpec {
	spec = spec.Normalize(q.defaultPageSize, q.maxPageSize)
	spec.SearchText = q.preprocessor.PreprocessQuery(spec.SearchText)
	return spec
}

// Query runs search, category, brand, price and rating filters, then a stable sort and pagination.
// TotalCount is the number of matches before pagination.
func (q *QueryPipeline) Query(products []domain.Product, spec domain.QuerySpec) domain.QueryResult {
	spec = q.NormalizeSpec(spec)

	matched := q.Filter(products, spec)
	q.Sort(matched, spec.SortKey, spec.SortDirection)

	start := spec.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + spec.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	q.logger.Debug("catalog query evaluated",
		zap.Int("candidates", len(products)),
		zap.Int("matched", len(matched)),
		zap.Int("page", spec.Page),
		zap.Int("page_size", spec.PageSize))

	items := make([]domain.Product, end-start)
	copy(items, matched[start:end])
	return domain.QueryResult{
		Items:      items,
		TotalCount: len(matched),
		Page:       spec.Page,
		PageSize:   spec.PageSize,
	}
}

// Filter returns the products passing every predicate of spec, in input order.
// spec is expected to be normalized.
func (q *QueryPipeline) Filter(products []domain.Product, spec domain.QuerySpec) []domain.Product {
	needle := cases.Fold().String(spec.SearchText)

	category := ""
	if spec.Category != domain.CategoryAll {
		category = q.translator.Canonicalize(spec.Category)
	}

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if needle != "" && !matchesSearch(p, needle) {
			continue
		}
		if category != "" && q.translator.Canonicalize(p.Category) != category {
			continue
		}
		if spec.Brand != domain.BrandAll && p.Brand != spec.Brand {
			continue
		}
		if !withinPrice(p, spec.MinPrice, spec.MaxPrice) {
			continue
		}
		if !withinRating(p, spec.MinRating, spec.MaxRating) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Sort orders products in place. The sort is stable and desc only reverses the comparator,
// so ties keep their input order in both directions.
func (q *QueryPipeline) Sort(products []domain.Product, key domain.SortKey, direction domain.SortDirection) {
	folder := cases.Fold()
	compare := func(a, b domain.Product) int {
		switch key {
		case domain.SortByPrice:
			return compareFloat(bestPriceOrZero(a), bestPriceOrZero(b))
		case domain.SortByRating:
			return compareFloat(ratingOrZero(a), ratingOrZero(b))
		case domain.SortByBrand:
			return strings.Compare(folder.String(a.Brand), folder.String(b.Brand))
		case domain.SortByCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		default:
			return strings.Compare(folder.String(a.Name), folder.String(b.Name))
		}
	}

	sort.SliceStable(products, func(i, j int) bool {
		c := compare(products[i], products[j])
		if direction == domain.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

// matchesSearch reports whether the folded needle occurs in name, brand, category or a feature
func matchesSearch(p domain.Product, needle string) bool {
	folder := cases.Fold()
	if strings.Contains(folder.String(p.Name), needle) ||
		strings.Contains(folder.String(p.Brand), needle) ||
		strings.Contains(folder.String(p.Category), needle) {
		return true
	}
	for _, feature := range p.Features {
		if strings.Contains(folder.String(feature), needle) {
			return true
		}
	}
	return false
}

// withinPrice keeps products whose best price lies in [min, max].
// A product without a determinable price fails only when a bound is supplied.
func withinPrice(p domain.Product, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	price, ok := p.BestPrice()
	if !ok {
		return false
	}
	if lo != nil && price < *lo {
		return false
	}
	if hi != nil && price > *hi {
		return false
	}
	return true
}

func withinRating(p domain.Product, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if p.Rating == nil {
		return false
	}
	if lo != nil && *p.Rating < *lo {
		return false
	}
	if hi != nil && *p.Rating > *hi {
		return false
	}
	return true
}

func bestPriceOrZero(p domain.Product) float64 {
	price, _ := p.BestPrice()
	return price
}

func ratingOrZero(p domain.Product) float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
