package usecase

import (
	"slices"

	"golang.org/x/text/cases"

	"github.com/kitbuilder/backend/internal/domain"
)

// Derived product fields written next to the record's own fields
const (
	// SearchKeywordsField holds the token index used by stores without substring search
	SearchKeywordsField = "searchKeywords"
	// BestPriceField holds the lowest offer price, else the list price, or null when neither exists
	BestPriceField = "bestPrice"
)

var priceNormalizer = NewNormalizer(NormalizerConfig{})

// SearchKeywords returns the distinct case-folded tokens of the searchable product fields, sorted
func SearchKeywords(fields map[string]any) []string {
	folder := cases.Fold()
	seen := make(map[string]bool)
	var out []string

	add := func(text string) {
		for _, token := range tokenize(folder.String(text)) {
			if !seen[token] {
				seen[token] = true
				out = append(out, token)
			}
		}
	}

	for _, key := range []string{storeFieldName, storeFieldBrand, storeFieldCategory} {
		add(stringField(fields, key))
	}
	delimiter := stringField(fields, "featureDelimiter", "feature_delimiter")
	if delimiter == "" {
		delimiter = defaultFeatureDelimiter
	}
	for _, feature := range deriveFeatures(fields[storeFieldFeatures], delimiter) {
		add(feature)
	}

	slices.Sort(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// BestPrice returns the best price derivable from raw product fields, or nil.
// It agrees with domain.Product.BestPrice on the normalized record.
func BestPrice(fields map[string]any) any {
	if price, ok := priceNormalizer.Normalize(domain.RawRecord(fields)).BestPrice(); ok {
		return price
	}
	return nil
}

// StampDerivedFields returns an import transform that adds the derived fields to records of productsCollection
func StampDerivedFields(productsCollection string) RecordTransform {
	return func(collection string, record domain.Record) domain.Record {
		if collection != productsCollection {
			return record
		}
		return domain.Record{ID: record.ID, Fields: withDerivedFields(record.Fields)}
	}
}

// withDerivedFields copies fields and sets the derived fields computed from them
func withDerivedFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	setDerivedFields(out, fields)
	return out
}

// setDerivedFields writes the fields derived from source into dst
func setDerivedFields(dst, source map[string]any) {
	dst[SearchKeywordsField] = SearchKeywords(source)
	dst[BestPriceField] = BestPrice(source)
}
