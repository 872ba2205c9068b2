// Package app wires configuration into the store, cache and usecase services shared by the binaries.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder/backend/config"
	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/infrastructure/cache"
	"github.com/kitbuilder/backend/internal/infrastructure/store/firestore"
	"github.com/kitbuilder/backend/internal/infrastructure/store/memstore"
	"github.com/kitbuilder/backend/internal/infrastructure/store/rest"
	"github.com/kitbuilder/backend/internal/usecase"
)

const memoryCacheSweepInterval = time.Minute

// App holds the wired services. Close releases the store and cache connections.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    domain.DocumentStore
	Cache    domain.CacheRepository
	Catalog  *usecase.CatalogService
	Kits     *usecase.KitService
	Importer *usecase.Importer
	Admin    *usecase.AdminService

	closers []func() error
}

// New builds the store, cache and services described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	store, closeStore, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	c, closeCache, err := NewCache(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Cache = c
	a.closers = append(a.closers, closeCache)

	translator := usecase.DefaultCategoryTranslator()
	normalizer := usecase.NewNormalizer(usecase.NormalizerConfig{
		FeatureDelimiter: cfg.Catalog.FeatureDelimiter,
	})
	pipeline := usecase.NewQueryPipeline(translator, usecase.NewQueryPreprocessor(0, logger), usecase.QueryPipelineConfig{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
	}, logger)
	suggestions := usecase.NewSuggestionService(usecase.SuggestConfig{
		FuzzyEditDistance: cfg.Catalog.FuzzyEditDistance,
		MaxResults:        cfg.Catalog.SuggestLimit,
		Translator:        translator,
	}, logger)

	a.Catalog = usecase.NewCatalogService(store, c, normalizer, pipeline, suggestions, translator, usecase.CatalogServiceConfig{
		ProductsCollection:  cfg.Collections.Products,
		CacheTTL:            cfg.Cache.TTL,
		ClientSideFiltering: cfg.Catalog.ClientSideFiltering,
		SuggestLimit:        cfg.Catalog.SuggestLimit,
	}, logger)
	a.Kits = usecase.NewKitService(c, a.Catalog, translator, usecase.KitServiceConfig{
		SessionTTL: cfg.Cache.KitTTL,
	}, logger)
	a.Importer = usecase.NewImporter(store, usecase.ImporterConfig{
		Concurrency: cfg.Import.Concurrency,
		Collections: cfg.ManagedCollections(),
		Transform:   usecase.StampDerivedFields(cfg.Collections.Products),
	}, logger)
	a.Admin = usecase.NewAdminService(store, a.Importer, a.Catalog, usecase.AdminServiceConfig{
		Collections:     cfg.ManagedCollections(),
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
	}, logger)

	return a, nil
}

// Close releases every backend in reverse construction order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewStore selects the document store backend named by cfg.Store.Type
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.DocumentStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Type {
	case config.StoreMemory:
		store := memstore.New()
		if cfg.Store.SeedFile != "" {
			seed, err := LoadSeedFile(cfg.Store.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			transform := usecase.StampDerivedFields(cfg.Collections.Products)
			for collection, records := range seed {
				stamped := make([]domain.Record, len(records))
				for i, r := range records {
					stamped[i] = transform(collection, r)
				}
				store.Load(collection, stamped)
			}
			logger.Info("memory store seeded",
				zap.String("file", cfg.Store.SeedFile),
				zap.Int("collections", len(seed)))
		}
		return store, noop, nil

	case config.StoreREST:
		client := rest.NewClient(rest.Config{
			BaseURL:           cfg.Store.BaseURL,
			APIKey:            cfg.Store.APIKey,
			Timeout:           cfg.Store.Timeout,
			RequestsPerSecond: cfg.Store.RequestsPerSecond,
		}, logger)
		return client, noop, nil

	case config.StoreFirestore:
		provider := firestore.NewProvider(firestore.Config{
			ProjectID:    cfg.Store.ProjectID,
			EmulatorHost: cfg.Store.EmulatorHost,
		}, firestore.WithDialTimeout(cfg.Store.Timeout))
		if _, err := provider.Client(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect firestore: %w", err)
		}
		return firestore.NewStore(provider, logger), provider.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

// NewCache selects the cache backend named by cfg.Cache.Type
func NewCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func() error, error) {
	switch cfg.Cache.Type {
	case config.CacheMemory:
		c := cache.NewMemoryCache(memoryCacheSweepInterval)
		return c, c.Close, nil
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.Cache.RedisURL})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
}

// LoadSeedFile reads a JSON object mapping collection names to record arrays
func LoadSeedFile(path string) (map[string][]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var seed map[string][]domain.Record
	if err := json.NewDecoder(f).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return seed, nil
}

// ReadRecords decodes a JSON array of {id, fields} records
func ReadRecords(r io.Reader) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
