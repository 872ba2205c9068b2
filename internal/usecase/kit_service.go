package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder/backend/internal/domain"
)

const (
	kitCacheKeyBase      = "kit:"
	maxSessionIDLength   = 128
	defaultKitSessionTTL = 7 * 24 * time.Hour
)

// ProductLookup resolves a product snapshot by id
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// KitServiceConfig holds configuration for kit sessions
type KitServiceConfig struct {
	SessionTTL time.Duration
}

// KitService persists one kit per session id in the cache.
// Concurrent writes to the same session are not merged; the last save wins.
type KitService struct {
	cache      domain.CacheRepository
	products   ProductLookup
	translator *CategoryTranslator
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewKitService creates a new kit session service
func NewKitService(
	cache domain.CacheRepository,
	products ProductLookup,
	translator *CategoryTranslator,
	config KitServiceConfig,
	logger *zap.Logger,
) *KitService {
	ttl := config.SessionTTL
	if ttl == 0 {
		ttl = defaultKitSessionTTL
	}
	if translator == nil {
		translator = DefaultCategoryTranslator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KitService{
		cache:      cache,
		products:   products,
		translator: translator,
		sessionTTL: ttl,
		logger:     logger,
	}
}

// Get returns the kit summary for a session. Unknown sessions yield an empty kit.
func (s *KitService) Get(ctx context.Context, sessionID string) (domain.KitSummary, error) {
	kit, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.KitSummary{}, err
	}
	return kit.Summary(sessionID), nil
}

// AddItem adds productID with qty, replacing any existing entry for it
func (s *KitService) AddItem(ctx context.Context, sessionID, productID string, qty int) (domain.KitSummary, error) {
	if qty <= 0 {
		return domain.KitSummary{}, fmt.Errorf("add %s with quantity %d: %w", productID, qty, domain.ErrInvalidQuantity)
	}
	kit, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.KitSummary{}, err
	}
	product, err := s.lookup(ctx, productID)
	if err != nil {
		return domain.KitSummary{}, err
	}
	if err := kit.Add(product, qty); err != nil {
		return domain.KitSummary{}, err
	}
	return s.save(ctx, sessionID, kit)
}

// SetQuantity sets the quantity of productID. A quantity <= 0 removes it.
// Existing entries keep their product snapshot; new ones are looked up.
func (s *KitService) SetQuantity(ctx context.Context, sessionID, productID string, qty int) (domain.KitSummary, error) {
	kit, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.KitSummary{}, err
	}
	if !kit.UpdateQuantity(productID, qty) && qty > 0 {
		product, err := s.lookup(ctx, productID)
		if err != nil {
			return domain.KitSummary{}, err
		}
		if err := kit.SetQuantity(product, qty); err != nil {
			return domain.KitSummary{}, err
		}
	}
	return s.save(ctx, sessionID, kit)
}

// RemoveItem drops productID from the kit. Removing an absent product is not an error.
func (s *KitService) RemoveItem(ctx context.Context, sessionID, productID string) (domain.KitSummary, error) {
	kit, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.KitSummary{}, err
	}
	kit.Remove(productID)
	return s.save(ctx, sessionID, kit)
}

// Reset empties the kit of a session
func (s *KitService) Reset(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, kitCacheKeyBase+sessionID); err != nil {
		return fmt.Errorf("reset kit %s: %w", sessionID, err)
	}
	return nil
}

func (s *KitService) load(ctx context.Context, sessionID string) (*Kit, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	var snapshot domain.KitSnapshot
	err := getCachedJSON(ctx, s.cache, kitCacheKeyBase+sessionID, &snapshot)
	switch {
	case err == nil:
		return RestoreKit(snapshot, s.translator), nil
	case errors.Is(err, domain.ErrCacheMiss):
		return NewKit(s.translator), nil
	}
	return nil, fmt.Errorf("load kit %s: %w", sessionID, err)
}

func (s *KitService) save(ctx context.Context, sessionID string, kit *Kit) (domain.KitSummary, error) {
	if err := setCachedJSON(ctx, s.cache, kitCacheKeyBase+sessionID, kit.Snapshot(), s.sessionTTL); err != nil {
		return domain.KitSummary{}, fmt.Errorf("save kit %s: %w", sessionID, err)
	}
	s.logger.Debug("kit saved",
		zap.String("session", sessionID),
		zap.Int("items", kit.Len()),
		zap.Int("quantity", kit.TotalQuantity()))
	return kit.Summary(sessionID), nil
}

func (s *KitService) lookup(ctx context.Context, productID string) (domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, fmt.Errorf("product id is empty: %w", domain.ErrInvalidRequest)
	}
	return s.products.GetProduct(ctx, productID)
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || len(sessionID) > maxSessionIDLength {
		return fmt.Errorf("session id %q: %w", sessionID, domain.ErrInvalidRequest)
	}
	return nil
}
