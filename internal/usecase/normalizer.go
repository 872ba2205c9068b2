package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kitbuilder/backend/internal/domain"
)

const (
	defaultFeatureDelimiter = ","
	defaultVendorName       = "Direct"
)

// NormalizerConfig holds configuration for the record normalizer
type NormalizerConfig struct {
	FeatureDelimiter string
	PlaceholderImage string
}

// Normalizer converts raw store records into canonical Products.
// It never fails: malformed fields degrade to their zero value or nil.
type Normalizer struct {
	featureDelimiter string
	placeholderImage string
}

// NewNormalizer creates a normalizer, applying defaults for empty config values
func NewNormalizer(config NormalizerConfig) *Normalizer {
	delimiter := config.FeatureDelimiter
	if delimiter == "" {
		delimiter = defaultFeatureDelimiter
	}
	placeholder := config.PlaceholderImage
	if placeholder == "" {
		placeholder = domain.PlaceholderImageURL
	}
	return &Normalizer{
		featureDelimiter: delimiter,
		placeholderImage: placeholder,
	}
}

// NormalizeAll normalizes a list of records, preserving order
func (n *Normalizer) NormalizeAll(records []domain.RawRecord) []domain.Product {
	products := make([]domain.Product, 0, len(records))
	for _, raw := range records {
		products = append(products, n.Normalize(raw))
	}
	return products
}

// Normalize converts one raw record into a Product
func (n *Normalizer) Normalize(raw domain.RawRecord) domain.Product {
	p := domain.Product{
		ID:            stringField(raw, "$id", "id"),
		Name:          stringField(raw, "name"),
		Brand:         stringField(raw, "brand"),
		Category:      stringField(raw, "category"),
		Rating:        coerceRating(firstPresent(raw, "rating")),
		Price:         coercePrice(firstPresent(raw, "price")),
		Dimensions:    stringField(raw, "dimensions"),
		Weight:        stringField(raw, "weight"),
		Material:      stringField(raw, "material"),
		ASIN:          stringField(raw, "asin"),
		AffiliateLink: stringField(raw, "affiliateLink", "affiliate_link"),
		CreatedAt:     timeField(raw, "$createdAt", "createdAt", "created_at"),
	}

	p.ImageURL = stringField(raw, "image_url", "imageUrl")
	if p.ImageURL == "" {
		p.ImageURL = n.placeholderImage
	}

	delimiter := stringField(raw, "featureDelimiter", "feature_delimiter")
	if delimiter == "" {
		delimiter = n.featureDelimiter
	}
	p.Features = deriveFeatures(firstPresent(raw, "features"), delimiter)

	p.Offers = deriveOffers(firstPresent(raw, "offers"))
	if len(p.Offers) == 0 && p.Price != nil {
		vendor := stringField(raw, "vendor", "retailer")
		if vendor == "" {
			vendor = defaultVendorName
		}
		link := p.AffiliateLink
		if link == "" {
			link = stringField(raw, "productUrl", "product_url", "url")
		}
		p.Offers = []domain.Offer{{VendorName: vendor, Price: *p.Price, URL: link}}
	}

	return p
}

// deriveFeatures returns a native list verbatim, splits a delimited string, or returns an empty list
func deriveFeatures(value any, delimiter string) []string {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}
		}
		parts := strings.Split(v, delimiter)
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if token := strings.TrimSpace(part); token != "" {
				out = append(out, token)
			}
		}
		return out
	}
	return []string{}
}

// deriveOffers reads an explicit offers list, dropping entries without a usable price
func deriveOffers(value any) []domain.Offer {
	var entries []map[string]any
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if m, ok := asMap(item); ok {
				entries = append(entries, m)
			}
		}
	case []map[string]any:
		entries = v
	case []domain.Offer:
		out := make([]domain.Offer, 0, len(v))
		for _, offer := range v {
			if offer.Price >= 0 {
				out = append(out, offer)
			}
		}
		return out
	}

	offers := make([]domain.Offer, 0, len(entries))
	for _, entry := range entries {
		price := coercePrice(firstPresent(entry, "price"))
		if price == nil {
			continue
		}
		offers = append(offers, domain.Offer{
			VendorName: stringField(entry, "vendorName", "vendor_name", "vendor"),
			Price:      *price,
			URL:        stringField(entry, "url", "link"),
		})
	}
	return offers
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case domain.RawRecord:
		return m, true
	}
	return nil, false
}

// firstPresent returns the first non-nil value among keys
func firstPresent(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// stringField returns the first non-empty string value among keys, trimmed
func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int, int32, int64, bool:
		return fmt.Sprint(s)
	}
	return ""
}

// coerceFloat parses numbers and numeric strings. Anything else yields nil.
func coerceFloat(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func coercePrice(v any) *float64 {
	f := coerceFloat(v)
	if f == nil || *f < 0 {
		return nil
	}
	return f
}

func coerceRating(v any) *float64 {
	f := coerceFloat(v)
	if f == nil || *f < 0 || *f > 5 {
		return nil
	}
	return f
}

func timeField(raw map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case time.Time:
			return v
		case string:
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
