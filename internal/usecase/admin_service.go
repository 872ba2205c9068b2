package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder/backend/internal/domain"
)

// AdminPage is one page of raw documents from a managed collection
type AdminPage struct {
	Documents  []domain.RawRecord `json:"documents"`
	TotalCount int                `json:"totalCount"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
}

// AdminServiceConfig holds configuration for the admin service
type AdminServiceConfig struct {
	Collections     []string
	DefaultPageSize int
	MaxPageSize     int
}

// AdminService exposes CRUD and bulk import over the managed collections.
// Writes to the products collection stamp the search keyword index and invalidate catalog caches.
type AdminService struct {
	store       domain.DocumentStore
	importer    *Importer
	catalog     *CatalogService
	collections map[string]bool
	defaultSize int
	maxSize     int
	logger      *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	store domain.DocumentStore,
	importer *Importer,
	catalog *CatalogService,
	config AdminServiceConfig,
	logger *zap.Logger,
) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	collections := make(map[string]bool, len(config.Collections))
	for _, c := range config.Collections {
		collections[c] = true
	}
	defaultSize := config.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = 20
	}
	return &AdminService{
		store:       store,
		importer:    importer,
		catalog:     catalog,
		collections: collections,
		defaultSize: defaultSize,
		maxSize:     config.MaxPageSize,
		logger:      logger,
	}
}

// List returns one page of a collection together with its total size
func (s *AdminService) List(ctx context.Context, collection string, page, pageSize int) (AdminPage, error) {
	if err := s.checkCollection(collection); err != nil {
		return AdminPage{}, err
	}
	spec := domain.QuerySpec{Page: page, PageSize: pageSize}.Normalize(s.defaultSize, s.maxSize)

	list, err := s.store.ListDocuments(ctx, collection, []domain.Fragment{
		domain.Offset(spec.Offset()),
		domain.Limit(spec.PageSize),
	})
	if err != nil {
		return AdminPage{}, fmt.Errorf("list %s: %w", collection, err)
	}
	total, err := s.store.CountDocuments(ctx, collection, nil)
	if err != nil {
		return AdminPage{}, fmt.Errorf("count %s: %w", collection, err)
	}

	docs := list.Documents
	if docs == nil {
		docs = []domain.RawRecord{}
	}
	return AdminPage{Documents: docs, TotalCount: total, Page: spec.Page, PageSize: spec.PageSize}, nil
}

// Get returns one raw document
func (s *AdminService) Get(ctx context.Context, collection, id string) (domain.RawRecord, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Create stores a new document. An empty id is replaced by a generated one.
func (s *AdminService) Create(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	doc, err := s.store.CreateDocument(ctx, collection, id, s.prepare(collection, fields))
	if err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	s.afterWrite(ctx, collection, id)
	return doc, nil
}

// Update overwrites the given fields of an existing document
func (s *AdminService) Update(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if s.isProducts(collection) {
		// Derived fields depend on fields the update may not carry
		current, err := s.store.GetDocument(ctx, collection, id)
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		merged := make(map[string]any, len(current)+len(fields))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		stamped := make(map[string]any, len(fields)+2)
		for k, v := range fields {
			stamped[k] = v
		}
		setDerivedFields(stamped, merged)
		fields = stamped
	}
	doc, err := s.store.UpdateDocument(ctx, collection, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.afterWrite(ctx, collection, id)
	return doc, nil
}

// Delete removes one document
func (s *AdminService) Delete(ctx context.Context, collection, id string) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	s.afterWrite(ctx, collection, id)
	return nil
}

// Import runs the bulk importer against collection
func (s *AdminService) Import(ctx context.Context, collection string, records []domain.Record) (ImportResult, error) {
	if err := s.checkCollection(collection); err != nil {
		return ImportResult{}, err
	}
	result, err := s.importer.ImportBatch(ctx, records, collection)
	if err != nil {
		return ImportResult{}, err
	}
	if result.Succeeded > 0 {
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		s.afterWrite(ctx, collection, ids...)
	}
	return result, nil
}

func (s *AdminService) checkCollection(collection string) error {
	if !s.collections[collection] {
		return fmt.Errorf("collection %q: %w", collection, domain.ErrUnknownCollection)
	}
	return nil
}

func (s *AdminService) isProducts(collection string) bool {
	return s.catalog != nil && collection == s.catalog.Collection()
}

func (s *AdminService) prepare(collection string, fields map[string]any) map[string]any {
	if s.isProducts(collection) {
		return withDerivedFields(fields)
	}
	return fields
}

func (s *AdminService) afterWrite(ctx context.Context, collection string, ids ...string) {
	if s.isProducts(collection) {
		s.catalog.Invalidate(ctx, ids...)
	}
	s.logger.Info("admin write",
		zap.String("collection", collection),
		zap.Strings("ids", ids))
}
