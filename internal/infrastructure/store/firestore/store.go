// Package firestore implements domain.DocumentStore on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"google.golang.org/api/iterator"

	"github.com/kitbuilder/backend/internal/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const (
	// keywordsField holds the folded token index written on product documents
	keywordsField = "searchKeywords"
	// createdField holds the server creation time. Snapshot metadata cannot be ordered on.
	createdField = "createdAt"
	countAlias   = "all"
)

// Store translates query fragments into Firestore queries
type Store struct {
	provider *Provider
	logger   *zap.Logger
}

// NewStore creates a document store backed by the provider's client
func NewStore(provider *Provider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{provider: provider, logger: logger}
}

type clause struct {
	path  string
	op    string
	value any
}

type ordering struct {
	path string
	dir  firestore.Direction
}

// queryPlan is the Firestore shape of a fragment list
type queryPlan struct {
	where  []clause
	orders []ordering
	offset int
	limit  int
}

// planQuery maps fragments to Firestore operators.
// Search uses array-contains on the keyword index, so only the first token of the text constrains results.
func planQuery(fragments []domain.Fragment) (queryPlan, error) {
	plan := queryPlan{limit: -1}
	for _, f := range fragments {
		switch f.Kind {
		case domain.FragmentEqual:
			plan.where = append(plan.where, clause{f.Field, "==", f.Value()})
		case domain.FragmentIn:
			plan.where = append(plan.where, clause{f.Field, "in", f.Values})
		case domain.FragmentGreaterEqual:
			plan.where = append(plan.where, clause{f.Field, ">=", f.Value()})
		case domain.FragmentLessEqual:
			plan.where = append(plan.where, clause{f.Field, "<=", f.Value()})
		case domain.FragmentSearch:
			text, _ := f.Value().(string)
			if token := searchToken(text); token != "" {
				plan.where = append(plan.where, clause{keywordsField, "array-contains", token})
			}
		case domain.FragmentOrder:
			dir := firestore.Asc
			if f.Descending {
				dir = firestore.Desc
			}
			path := f.Field
			if path == domain.FieldCreatedAt {
				path = createdField
			}
			plan.orders = append(plan.orders, ordering{path, dir})
		case domain.FragmentOffset:
			plan.offset = f.N
		case domain.FragmentLimit:
			plan.limit = f.N
		default:
			return queryPlan{}, fmt.Errorf("firestore %q: %w", f.Kind, domain.ErrUnsupportedFragment)
		}
	}
	return plan, nil
}

// countPlan plans fragments without offset and limit
func countPlan(fragments []domain.Fragment) (queryPlan, error) {
	plan, err := planQuery(fragments)
	if err != nil {
		return queryPlan{}, err
	}
	plan.offset, plan.limit = 0, -1
	return plan, nil
}

func (p queryPlan) apply(q firestore.Query) firestore.Query {
	for _, c := range p.where {
		q = q.Where(c.path, c.op, c.value)
	}
	for _, o := range p.orders {
		q = q.OrderBy(o.path, o.dir)
	}
	if p.offset > 0 {
		q = q.Offset(p.offset)
	}
	if p.limit >= 0 {
		q = q.Limit(p.limit)
	}
	return q
}

// searchToken returns the first folded token of at least two characters
func searchToken(text string) string {
	folded := cases.Fold().String(text)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		if len([]rune(token)) > 1 {
			return token
		}
	}
	return ""
}

func (s *Store) ListDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (domain.DocumentList, error) {
	plan, err := planQuery(fragments)
	if err != nil {
		return domain.DocumentList{}, err
	}
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return domain.DocumentList{}, err
	}

	iter := plan.apply(coll.Query).Documents(ctx)
	defer iter.Stop()

	docs := []domain.RawRecord{}
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.DocumentList{}, WrapError(collection+".list", err)
		}
		docs = append(docs, toRecord(snapshot))
	}

	s.logger.Debug("firestore list",
		zap.String("collection", collection),
		zap.Int("clauses", len(plan.where)),
		zap.Int("documents", len(docs)))
	return domain.DocumentList{Documents: docs, Total: len(docs)}, nil
}

// CountDocuments runs a count aggregation over the predicate fragments.
// Orderings are kept because Firestore leaves out documents missing an ordered field,
// and the count has to agree with the listed pages.
func (s *Store) CountDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (int, error) {
	plan, err := countPlan(fragments)
	if err != nil {
		return 0, err
	}
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}

	query := plan.apply(coll.Query)
	result, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, WrapError(collection+".count", err)
	}
	value, ok := result[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, &Error{op: collection + ".count", err: errors.New("aggregation result missing count")}
	}
	return int(value.GetIntegerValue()), nil
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (domain.RawRecord, error) {
	ref, err := s.document(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	snapshot, err := ref.Get(ctx)
	if err != nil {
		return nil, WrapError(collection+".get", err)
	}
	return toRecord(snapshot), nil
}

// CreateDocument fails with a conflict when the id is taken.
// The creation time is stamped by the server unless fields carry one.
func (s *Store) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	ref, err := s.document(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	data := storable(fields)
	if _, ok := data[createdField]; !ok {
		data[createdField] = firestore.ServerTimestamp
	}
	if _, err := ref.Create(ctx, data); err != nil {
		return nil, WrapError(collection+".create", err)
	}
	return s.GetDocument(ctx, collection, id)
}

// UpdateDocument merges fields into an existing document
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	ref, err := s.document(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	data := storable(fields)
	if len(data) == 0 {
		return s.GetDocument(ctx, collection, id)
	}
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return nil, WrapError(collection+".update", err)
	}
	return s.GetDocument(ctx, collection, id)
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	ref, err := s.document(ctx, collection, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return WrapError(collection+".delete", err)
	}
	return nil
}

func (s *Store) collection(ctx context.Context, name string) (*firestore.CollectionRef, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("firestore: collection name is required: %w", domain.ErrInvalidRequest)
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, &Error{op: name, err: err}
	}
	return client.Collection(name), nil
}

func (s *Store) document(ctx context.Context, collection, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("firestore: document id is required: %w", domain.ErrInvalidRequest)
	}
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// storable drops system fields, which Firestore keeps as document metadata
func storable(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if domain.IsSystemField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func toRecord(snapshot *firestore.DocumentSnapshot) domain.RawRecord {
	data := snapshot.Data()
	record := make(domain.RawRecord, len(data)+3)
	for k, v := range data {
		record[k] = v
	}
	record[domain.FieldID] = snapshot.Ref.ID
	if !snapshot.CreateTime.IsZero() {
		record[domain.FieldCreatedAt] = snapshot.CreateTime.UTC().Format(time.RFC3339Nano)
	}
	if !snapshot.UpdateTime.IsZero() {
		record[domain.FieldUpdatedAt] = snapshot.UpdateTime.UTC().Format(time.RFC3339Nano)
	}
	return record
}
