package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder/backend/internal/domain"
)

const defaultImportConcurrency = 4

// ImportFailure records one record the importer could not write
type ImportFailure struct {
	Record domain.Record `json:"record"`
	Reason string        `json:"reason"`
}

// ImportResult is the aggregate outcome of one batch.
// Succeeded + Skipped + len(Failed) always equals the number of input records.
type ImportResult struct {
	Succeeded int             `json:"succeeded"`
	Skipped   int             `json:"skipped"`
	Failed    []ImportFailure `json:"failed"`
}

// RecordTransform rewrites a record before it is written to collection
type RecordTransform func(collection string, record domain.Record) domain.Record

// ImporterConfig holds configuration for the bulk importer
type ImporterConfig struct {
	Concurrency int
	Collections []string
	Transform   RecordTransform
}

// Importer upserts batches of records into the document store
type Importer struct {
	store       domain.DocumentStore
	concurrency int
	collections map[string]bool
	transform   RecordTransform
	logger      *zap.Logger
}

type importOutcome int

const (
	outcomeSucceeded importOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// NewImporter creates an importer. An empty collection list allows any collection.
func NewImporter(store domain.DocumentStore, config ImporterConfig, logger *zap.Logger) *Importer {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultImportConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collections := make(map[string]bool, len(config.Collections))
	for _, c := range config.Collections {
		collections[c] = true
	}
	return &Importer{
		store:       store,
		concurrency: concurrency,
		collections: collections,
		transform:   config.Transform,
		logger:      logger,
	}
}

// ImportBatch upserts every record into collection.
// Per record: an existing document is updated only when the incoming fields differ (otherwise skipped),
// a missing one is created, and a create conflict is skipped. Any other error fails that record
// and the batch continues. An error is returned only when the collection itself is rejected.
func (im *Importer) ImportBatch(ctx context.Context, records []domain.Record, collection string) (ImportResult, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return ImportResult{}, fmt.Errorf("import: collection name is empty: %w", domain.ErrInvalidRequest)
	}
	if len(im.collections) > 0 && !im.collections[collection] {
		return ImportResult{}, fmt.Errorf("import into %q: %w", collection, domain.ErrUnknownCollection)
	}

	outcomes := make([]importOutcome, len(records))
	reasons := make([]string, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, record := range records {
		g.Go(func() error {
			outcomes[i], reasons[i] = im.importRecord(gctx, collection, record)
			return nil
		})
	}
	// Workers never return errors; per-record failures are collected in outcomes
	_ = g.Wait()

	result := ImportResult{Failed: []ImportFailure{}}
	for i, outcome := range outcomes {
		switch outcome {
		case outcomeSucceeded:
			result.Succeeded++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed = append(result.Failed, ImportFailure{Record: records[i], Reason: reasons[i]})
		}
	}

	im.logger.Info("import batch finished",
		zap.String("collection", collection),
		zap.Int("records", len(records)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

func (im *Importer) importRecord(ctx context.Context, collection string, record domain.Record) (importOutcome, string) {
	if err := ctx.Err(); err != nil {
		return outcomeFailed, err.Error()
	}
	if strings.TrimSpace(record.ID) == "" {
		return outcomeFailed, "record has no id"
	}
	if im.transform != nil {
		record = im.transform(collection, record)
	}

	current, err := im.store.GetDocument(ctx, collection, record.ID)
	switch {
	case err == nil:
		if unchanged(current, record.Fields) {
			return outcomeSkipped, ""
		}
		_, err = im.store.UpdateDocument(ctx, collection, record.ID, record.Fields)
		if err == nil {
			return outcomeSucceeded, ""
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return outcomeFailed, err.Error()
		}
		// Deleted between read and update; fall through to create
	case !errors.Is(err, domain.ErrNotFound):
		return outcomeFailed, err.Error()
	}

	_, err = im.store.CreateDocument(ctx, collection, record.ID, record.Fields)
	switch {
	case err == nil:
		return outcomeSucceeded, ""
	case errors.Is(err, domain.ErrConflict):
		im.logger.Debug("import create conflict, skipping",
			zap.String("collection", collection),
			zap.String("id", record.ID))
		return outcomeSkipped, ""
	}
	return outcomeFailed, err.Error()
}

// unchanged reports whether every incoming field already holds the same value in current.
// System fields are ignored since stores never write them.
// Both sides go through JSON first so numeric types and nested shapes compare equal.
func unchanged(current domain.RawRecord, incoming map[string]any) bool {
	subset := make(map[string]any, len(incoming))
	compared := make(map[string]any, len(incoming))
	for key, v := range incoming {
		if domain.IsSystemField(key) {
			continue
		}
		compared[key] = v
		value, ok := current[key]
		if !ok {
			return false
		}
		subset[key] = value
	}

	a, errA := jsonShape(subset)
	b, errB := jsonShape(compared)
	if errA != nil || errB != nil {
		return false
	}
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

func jsonShape(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
