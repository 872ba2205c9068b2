package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/kitbuilder/backend/internal/domain"
)

// Kit is a set of selected products keyed by product id.
// It is owned by a single request or session and is not safe for concurrent use.
type Kit struct {
	items      map[string]domain.KitItem
	translator *CategoryTranslator
	updatedAt  time.Time
}

// NewKit creates an empty kit. A nil translator falls back to the default category table.
func NewKit(translator *CategoryTranslator) *Kit {
	if translator == nil {
		translator = DefaultCategoryTranslator()
	}
	return &Kit{
		items:      make(map[string]domain.KitItem),
		translator: translator,
	}
}

// RestoreKit rebuilds a kit from a snapshot, dropping entries that would violate the quantity invariant
func RestoreKit(snapshot domain.KitSnapshot, translator *CategoryTranslator) *Kit {
	k := NewKit(translator)
	for _, item := range snapshot.Items {
		if item.Product.ID == "" || item.Quantity <= 0 {
			continue
		}
		k.items[item.Product.ID] = item
	}
	k.updatedAt = snapshot.UpdatedAt
	return k
}

// Add inserts product with qty. Re-adding an existing id replaces the entry.
func (k *Kit) Add(product domain.Product, qty int) error {
	if product.ID == "" {
		return fmt.Errorf("add to kit: product id is empty: %w", domain.ErrInvalidRequest)
	}
	if qty <= 0 {
		return fmt.Errorf("add %s to kit with quantity %d: %w", product.ID, qty, domain.ErrInvalidQuantity)
	}
	k.put(product, qty)
	return nil
}

// Remove deletes the entry for id. Removing an absent id is a no-op.
func (k *Kit) Remove(id string) {
	if _, ok := k.items[id]; !ok {
		return
	}
	delete(k.items, id)
	k.touch()
}

// SetQuantity upserts product with qty, or removes it when qty <= 0.
// An empty product id is rejected like Add does.
func (k *Kit) SetQuantity(product domain.Product, qty int) error {
	if product.ID == "" {
		return fmt.Errorf("set kit quantity: product id is empty: %w", domain.ErrInvalidRequest)
	}
	if qty <= 0 {
		k.Remove(product.ID)
		return nil
	}
	k.put(product, qty)
	return nil
}

// UpdateQuantity changes the quantity of an existing entry, removing it when qty <= 0.
// It reports whether id was in the kit.
func (k *Kit) UpdateQuantity(id string, qty int) bool {
	item, ok := k.items[id]
	if !ok {
		return false
	}
	_ = k.SetQuantity(item.Product, qty)
	return true
}

// Quantity returns the quantity held for id, or 0
func (k *Kit) Quantity(id string) int {
	return k.items[id].Quantity
}

// Contains reports whether id is in the kit
func (k *Kit) Contains(id string) bool {
	_, ok := k.items[id]
	return ok
}

// Len returns the number of distinct products in the kit
func (k *Kit) Len() int {
	return len(k.items)
}

// TotalQuantity returns the sum of all quantities
func (k *Kit) TotalQuantity() int {
	total := 0
	for _, item := range k.items {
		total += item.Quantity
	}
	return total
}

// CategoryTotals sums quantities per display category.
// Canonical names sharing a display bucket are summed together.
func (k *Kit) CategoryTotals() map[string]int {
	totals := make(map[string]int)
	for _, item := range k.items {
		totals[k.translator.ToDisplay(item.Product.Category)] += item.Quantity
	}
	return totals
}

// EstimatedTotal sums best price times quantity. Products without a price contribute nothing.
func (k *Kit) EstimatedTotal() float64 {
	var total float64
	for _, item := range k.Items() {
		if price, ok := item.Product.BestPrice(); ok {
			total += price * float64(item.Quantity)
		}
	}
	return total
}

// Items returns the kit entries ordered by product name, then id
func (k *Kit) Items() []domain.KitItem {
	out := make([]domain.KitItem, 0, len(k.items))
	for _, item := range k.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product.Name != out[j].Product.Name {
			return out[i].Product.Name < out[j].Product.Name
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	return out
}

// Reset empties the kit
func (k *Kit) Reset() {
	k.items = make(map[string]domain.KitItem)
	k.touch()
}

// Snapshot returns the serialisable form of the kit
func (k *Kit) Snapshot() domain.KitSnapshot {
	return domain.KitSnapshot{
		Items:     k.Items(),
		UpdatedAt: k.updatedAt,
	}
}

// Summary returns the presentation view of the kit
func (k *Kit) Summary(sessionID string) domain.KitSummary {
	return domain.KitSummary{
		SessionID:      sessionID,
		Items:          k.Items(),
		CategoryTotals: k.CategoryTotals(),
		TotalQuantity:  k.TotalQuantity(),
		EstimatedTotal: k.EstimatedTotal(),
	}
}

func (k *Kit) put(product domain.Product, qty int) {
	k.items[product.ID] = domain.KitItem{Product: product, Quantity: qty}
	k.touch()
}

func (k *Kit) touch() {
	k.updatedAt = time.Now().UTC()
}
