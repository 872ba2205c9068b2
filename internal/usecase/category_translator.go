package usecase

import (
	"slices"
	"strings"

	"github.com/kitbuilder/backend/internal/domain"
)

// defaultCategories is the single source of truth for category names.
// Each canonical name maps to exactly one display name and vice versa.
var defaultCategories = []domain.Category{
	{Canonical: "wound-care", Display: "Wound Care & Dressings"},
	{Canonical: "medications", Display: "Medications & Ointments"},
	{Canonical: "instruments", Display: "Tools & Instruments"},
	{Canonical: "trauma", Display: "Trauma & Bleeding Control"},
	{Canonical: "burns", Display: "Burn Care"},
	{Canonical: "ppe", Display: "Personal Protection"},
	{Canonical: "hygiene", Display: "Hygiene & Sanitation"},
	{Canonical: "emergency", Display: "Emergency & Survival"},
	{Canonical: "orthopedic", Display: "Splints & Supports"},
	{Canonical: "diagnostics", Display: "Diagnostics & Monitoring"},
}

// defaultCategoryAliases are legacy storage spellings still present on older records.
// They collapse into the display bucket of the canonical name they point to.
var defaultCategoryAliases = map[string]string{
	"dressings":  "wound-care",
	"bandages":   "wound-care",
	"medication": "medications",
	"ointments":  "medications",
	"tools":      "instruments",
}

// CategoryTranslator maps canonical category names to display names and back.
// Unmapped names pass through unchanged.
type CategoryTranslator struct {
	categories  []domain.Category
	toDisplay   map[string]string
	toCanonical map[string]string
	aliases     map[string]string
}

// NewCategoryTranslator builds a translator from a bijective table plus an alias table.
// Later duplicates in the table are ignored so the mapping stays one-to-one.
func NewCategoryTranslator(categories []domain.Category, aliases map[string]string) *CategoryTranslator {
	t := &CategoryTranslator{
		toDisplay:   make(map[string]string, len(categories)),
		toCanonical: make(map[string]string, len(categories)),
		aliases:     make(map[string]string, len(aliases)),
	}

	for _, c := range categories {
		if c.Canonical == "" || c.Display == "" {
			continue
		}
		if _, dup := t.toDisplay[c.Canonical]; dup {
			continue
		}
		if _, dup := t.toCanonical[c.Display]; dup {
			continue
		}
		t.toDisplay[c.Canonical] = c.Display
		t.toCanonical[c.Display] = c.Canonical
		t.categories = append(t.categories, c)
	}

	for alias, canonical := range aliases {
		if _, ok := t.toDisplay[canonical]; !ok {
			continue
		}
		if _, primary := t.toDisplay[alias]; primary {
			continue
		}
		t.aliases[alias] = canonical
	}

	return t
}

// DefaultCategoryTranslator returns the translator built from the built-in table
func DefaultCategoryTranslator() *CategoryTranslator {
	return NewCategoryTranslator(defaultCategories, defaultCategoryAliases)
}

// ToDisplay returns the display name for a canonical (or alias) category name
func (t *CategoryTranslator) ToDisplay(canonical string) string {
	if display, ok := t.toDisplay[canonical]; ok {
		return display
	}
	if primary, ok := t.aliases[canonical]; ok {
		return t.toDisplay[primary]
	}
	return canonical
}

// ToCanonical returns the canonical name for a display name
func (t *CategoryTranslator) ToCanonical(display string) string {
	if canonical, ok := t.toCanonical[display]; ok {
		return canonical
	}
	return display
}

// Canonicalize resolves display names and aliases to the primary canonical name.
// Surrounding whitespace is ignored; anything unmapped is returned trimmed.
func (t *CategoryTranslator) Canonicalize(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := t.toCanonical[name]; ok {
		return canonical
	}
	if primary, ok := t.aliases[name]; ok {
		return primary
	}
	return name
}

// Aliases returns the legacy names that resolve to canonical, not including canonical itself
func (t *CategoryTranslator) Aliases(canonical string) []string {
	var out []string
	for alias, primary := range t.aliases {
		if primary == canonical {
			out = append(out, alias)
		}
	}
	slices.Sort(out)
	return out
}

// Categories returns the translation table in declaration order
func (t *CategoryTranslator) Categories() []domain.Category {
	out := make([]domain.Category, len(t.categories))
	copy(out, t.categories)
	return out
}
