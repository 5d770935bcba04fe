package cards

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

// ChangeListener receives the set of cards written by a successful mutation.
// A listener error fails the mutation's caller even though the write itself
// already committed - reactors are part of the write path, not fire-and-forget.
type ChangeListener interface {
	OnCardsChanged(cards []domain.Card) error
}

// Service wraps the repository with change notifications. All reads pass
// through untouched; writes notify subscribed listeners after the data is
// committed.
type Service struct {
	repo *Repository
	log  zerolog.Logger

	mu        sync.Mutex
	listeners []ChangeListener
}

// NewService creates a new card service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "cards_service").Logger(),
	}
}

// Subscribe registers a change listener. Subscribing the same listener twice
// is a no-op.
func (s *Service) Subscribe(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.listeners {
		if existing == listener {
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

// Unsubscribe removes a change listener. Removing an unknown listener is a
// no-op.
func (s *Service) Unsubscribe(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.listeners {
		if existing == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Upsert writes a single card and notifies listeners.
func (s *Service) Upsert(card domain.Card) error {
	if err := s.repo.Upsert(card); err != nil {
		return err
	}
	return s.notify([]domain.Card{card})
}

// UpsertMany writes a batch of cards and notifies listeners once with the
// whole batch. An empty batch writes nothing and notifies nobody.
func (s *Service) UpsertMany(cards []domain.Card) error {
	if len(cards) == 0 {
		return nil
	}
	if err := s.repo.UpsertMany(cards); err != nil {
		return err
	}
	return s.notify(cards)
}

// notify fans the changed cards out to every listener concurrently and joins
// before returning, so the caller observes listener failures deterministically.
func (s *Service) notify(changed []domain.Card) error {
	s.mu.Lock()
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if len(listeners) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, listener := range listeners {
		listener := listener
		g.Go(func() error {
			return listener.OnCardsChanged(changed)
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Int("cards", len(changed)).Msg("Change listener failed")
		return err
	}

	return nil
}

// GetByTokenID returns a card by token ID, or nil when absent.
func (s *Service) GetByTokenID(tokenID int64) (*domain.Card, error) {
	return s.repo.GetByTokenID(tokenID)
}

// GetAll returns cards with limit/offset paging.
func (s *Service) GetAll(limit, offset int) ([]domain.Card, error) {
	return s.repo.GetAll(limit, offset)
}

// GetAllWithFilters returns cards inside the optional inclusive value bounds.
func (s *Service) GetAllWithFilters(minValue, maxValue *float64, limit, offset int) ([]domain.Card, error) {
	return s.repo.GetAllWithFilters(minValue, maxValue, limit, offset)
}

// GetAllInValueRange returns cards inside [minValue, maxValue).
func (s *Service) GetAllInValueRange(minValue, maxValue *float64) ([]domain.Card, error) {
	return s.repo.GetAllInValueRange(minValue, maxValue)
}

// GetAllByAssetIDs returns cards matching any of the given asset IDs.
func (s *Service) GetAllByAssetIDs(assetIDs []string) ([]domain.Card, error) {
	return s.repo.GetAllByAssetIDs(assetIDs)
}

// GetCount returns the total number of cards.
func (s *Service) GetCount() (int, error) {
	return s.repo.GetCount()
}

// GetCountWithFilters returns the number of cards inside the optional
// inclusive value bounds.
func (s *Service) GetCountWithFilters(minValue, maxValue *float64) (int, error) {
	return s.repo.GetCountWithFilters(minValue, maxValue)
}

// IsEmpty reports whether the store holds no cards.
func (s *Service) IsEmpty() (bool, error) {
	return s.repo.IsEmpty()
}

// GetCountByValueTier returns per-tier card counts.
func (s *Service) GetCountByValueTier() (domain.TierCounts, error) {
	return s.repo.GetCountByValueTier()
}
