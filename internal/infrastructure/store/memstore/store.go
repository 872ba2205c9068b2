// Package memstore provides an in-memory document store used for tests and local development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/kitbuilder/backend/internal/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// timestampLayout is fixed width so stored timestamps order correctly as strings
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type collection struct {
	docs  map[string]domain.RawRecord
	order []string
}

// Store keeps documents per collection in insertion order. It evaluates every fragment kind.
// Creation timestamps strictly increase across the store, so ordering by domain.FieldCreatedAt
// reproduces creation order even when the clock does not advance between writes.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	now         func() time.Time
	lastCreated time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		now:         time.Now,
	}
}

// Load inserts or replaces records without conflict checks
func (s *Store) Load(name string, records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(name)
	for _, r := range records {
		if _, exists := c.docs[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		c.docs[r.ID] = s.stamp(r.ID, r.Fields, nil)
	}
}

// ListDocuments returns the documents matching the predicate fragments, ordered and paged
func (s *Store) ListDocuments(ctx context.Context, name string, fragments []domain.Fragment) (domain.DocumentList, error) {
	if err := ctx.Err(); err != nil {
		return domain.DocumentList{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(name, fragments)
	if err != nil {
		return domain.DocumentList{}, err
	}

	offset, limit := 0, -1
	for _, f := range fragments {
		switch f.Kind {
		case domain.FragmentOrder:
			sortDocuments(matched, f.Field, f.Descending)
		case domain.FragmentOffset:
			offset = f.N
		case domain.FragmentLimit:
			limit = f.N
		}
	}

	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	docs := make([]domain.RawRecord, len(matched))
	for i, doc := range matched {
		docs[i] = copyRecord(doc)
	}
	return domain.DocumentList{Documents: docs, Total: len(docs)}, nil
}

// CountDocuments counts the documents matching the predicate fragments. Pagination is ignored.
func (s *Store) CountDocuments(ctx context.Context, name string, fragments []domain.Fragment) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(name, fragments)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) GetDocument(ctx context.Context, name, id string) (domain.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, notFound(name, id)
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, notFound(name, id)
	}
	return copyRecord(doc), nil
}

func (s *Store) CreateDocument(ctx context.Context, name, id string, fields map[string]any) (domain.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(name)
	if _, exists := c.docs[id]; exists {
		return nil, fmt.Errorf("create %s/%s: %w", name, id, domain.ErrConflict)
	}
	doc := s.stamp(id, fields, nil)
	c.docs[id] = doc
	c.order = append(c.order, id)
	return copyRecord(doc), nil
}

// UpdateDocument merges fields into the existing document
func (s *Store) UpdateDocument(ctx context.Context, name, id string, fields map[string]any) (domain.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, notFound(name, id)
	}
	current, ok := c.docs[id]
	if !ok {
		return nil, notFound(name, id)
	}
	doc := s.stamp(id, fields, current)
	c.docs[id] = doc
	return copyRecord(doc), nil
}

func (s *Store) DeleteDocument(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return notFound(name, id)
	}
	if _, ok := c.docs[id]; !ok {
		return notFound(name, id)
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// collection returns the named collection, creating it. Callers hold the write lock.
func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]domain.RawRecord)}
		s.collections[name] = c
	}
	return c
}

// stamp builds a stored document from fields merged over base, setting system fields.
// Callers hold the write lock.
func (s *Store) stamp(id string, fields map[string]any, base domain.RawRecord) domain.RawRecord {
	now := s.now().UTC()
	doc := make(domain.RawRecord, len(base)+len(fields)+3)
	for k, v := range base {
		doc[k] = v
	}
	for k, v := range fields {
		if domain.IsSystemField(k) {
			continue
		}
		doc[k] = v
	}
	doc[domain.FieldID] = id
	if _, ok := doc[domain.FieldCreatedAt]; !ok {
		created := now
		if !created.After(s.lastCreated) {
			created = s.lastCreated.Add(time.Nanosecond)
		}
		s.lastCreated = created
		doc[domain.FieldCreatedAt] = created.Format(timestampLayout)
	}
	doc[domain.FieldUpdatedAt] = now.Format(timestampLayout)
	return doc
}

// match returns the documents satisfying every predicate fragment in insertion order
func (s *Store) match(name string, fragments []domain.Fragment) ([]domain.RawRecord, error) {
	for _, f := range fragments {
		if !supported(f.Kind) {
			return nil, fmt.Errorf("memstore %q: %w", f.Kind, domain.ErrUnsupportedFragment)
		}
	}

	c, ok := s.collections[name]
	if !ok {
		return []domain.RawRecord{}, nil
	}

	folder := cases.Fold()
	out := make([]domain.RawRecord, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		keep := true
		for _, f := range fragments {
			if !matches(doc, f, folder) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, doc)
		}
	}
	return out, nil
}

func supported(kind domain.FragmentKind) bool {
	switch kind {
	case domain.FragmentEqual, domain.FragmentIn, domain.FragmentGreaterEqual, domain.FragmentLessEqual,
		domain.FragmentSearch, domain.FragmentOrder, domain.FragmentOffset, domain.FragmentLimit:
		return true
	}
	return false
}

func matches(doc domain.RawRecord, f domain.Fragment, folder cases.Caser) bool {
	switch f.Kind {
	case domain.FragmentEqual:
		return equalValues(doc[f.Field], f.Value())
	case domain.FragmentIn:
		for _, v := range f.Values {
			if equalValues(doc[f.Field], v) {
				return true
			}
		}
		return false
	case domain.FragmentGreaterEqual:
		have, ok1 := number(doc[f.Field])
		bound, ok2 := number(f.Value())
		return ok1 && ok2 && have >= bound
	case domain.FragmentLessEqual:
		have, ok1 := number(doc[f.Field])
		bound, ok2 := number(f.Value())
		return ok1 && ok2 && have <= bound
	case domain.FragmentSearch:
		text, _ := f.Value().(string)
		needle := folder.String(text)
		if needle == "" {
			return true
		}
		for _, field := range f.Fields {
			for _, value := range texts(doc[field]) {
				if strings.Contains(folder.String(value), needle) {
					return true
				}
			}
		}
		return false
	}
	// pagination fragments never exclude a document
	return true
}

// texts flattens a string or list field into its string values
func texts(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func equalValues(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && a != nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// sortDocuments orders by field, numerically when both sides are numbers and case-folded otherwise.
// Missing values sort first. The sort is stable.
func sortDocuments(docs []domain.RawRecord, field string, descending bool) {
	folder := cases.Fold()
	less := func(a, b any) bool {
		if x, ok := number(a); ok {
			if y, ok := number(b); ok {
				return x < y
			}
		}
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return folder.String(fmt.Sprint(a)) < folder.String(fmt.Sprint(b))
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if descending {
			return less(docs[j][field], docs[i][field])
		}
		return less(docs[i][field], docs[j][field])
	})
}

func copyRecord(doc domain.RawRecord) domain.RawRecord {
	out := make(domain.RawRecord, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func notFound(name, id string) error {
	return fmt.Errorf("%s/%s: %w", name, id, domain.ErrNotFound)
}
