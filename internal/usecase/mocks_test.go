package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	deleted   []string
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockDocumentStore is a mock implementation of domain.DocumentStore backed by maps.
// It ignores predicate fragments; tests that care inspect the recorded fragments instead.
type MockDocumentStore struct {
	mu    sync.Mutex
	docs  map[string]map[string]domain.RawRecord
	order map[string][]string

	countResult *int
	listError   error
	countError  error
	getErrors   map[string]error
	createErrs  map[string]error
	updateErrs  map[string]error

	listFragments  [][]domain.Fragment
	countFragments [][]domain.Fragment
	listCalls      int
	getCalls       int
	createCalls    int
	updateCalls    int
}

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs:       make(map[string]map[string]domain.RawRecord),
		order:      make(map[string][]string),
		getErrors:  make(map[string]error),
		createErrs: make(map[string]error),
		updateErrs: make(map[string]error),
	}
}

// seed stores a document directly, bypassing error injection
func (m *MockDocumentStore) seed(collection, id string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, fields)
}

func (m *MockDocumentStore) put(collection, id string, fields map[string]any) domain.RawRecord {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]domain.RawRecord)
	}
	if _, exists := m.docs[collection][id]; !exists {
		m.order[collection] = append(m.order[collection], id)
	}
	doc := domain.RawRecord{"$id": id}
	for k, v := range fields {
		doc[k] = v
	}
	m.docs[collection][id] = doc
	return copyRecord(doc)
}

func (m *MockDocumentStore) ListDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (domain.DocumentList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.listFragments = append(m.listFragments, fragments)
	if m.listError != nil {
		return domain.DocumentList{}, m.listError
	}
	var docs []domain.RawRecord
	for _, id := range m.order[collection] {
		if doc, ok := m.docs[collection][id]; ok {
			docs = append(docs, copyRecord(doc))
		}
	}
	return domain.DocumentList{Documents: docs, Total: len(docs)}, nil
}

func (m *MockDocumentStore) CountDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countFragments = append(m.countFragments, fragments)
	if m.countError != nil {
		return 0, m.countError
	}
	if m.countResult != nil {
		return *m.countResult, nil
	}
	return len(m.docs[collection]), nil
}

func (m *MockDocumentStore) GetDocument(ctx context.Context, collection, id string) (domain.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if err := m.getErrors[id]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(doc), nil
}

func (m *MockDocumentStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err := m.createErrs[id]; err != nil {
		return nil, err
	}
	if _, exists := m.docs[collection][id]; exists {
		return nil, domain.ErrConflict
	}
	return m.put(collection, id, fields), nil
}

func (m *MockDocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if err := m.updateErrs[id]; err != nil {
		return nil, err
	}
	current, exists := m.docs[collection][id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	merged := map[string]any(copyRecord(current))
	for k, v := range fields {
		merged[k] = v
	}
	return m.put(collection, id, merged), nil
}

func (m *MockDocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[collection][id]; !exists {
		return domain.ErrNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *MockDocumentStore) doc(collection, id string) domain.RawRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.docs[collection][id])
}

func copyRecord(r domain.RawRecord) domain.RawRecord {
	if r == nil {
		return nil
	}
	out := make(domain.RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MockProductLookup resolves products from a fixed map
type MockProductLookup struct {
	products map[string]domain.Product
	calls    int
}

func NewMockProductLookup(products ...domain.Product) *MockProductLookup {
	m := &MockProductLookup{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockProductLookup) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	m.calls++
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func floatPtr(f float64) *float64 {
	return &f
}
