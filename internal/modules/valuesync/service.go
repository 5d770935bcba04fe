// Package valuesync keeps stored card market values fresh. It runs the full
// multi-category synchronization and the per-tier refreshes the cron jobs
// trigger.
package valuesync

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilyaberbx/decentra-test-task/internal/batch"
	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

// ErrSyncInProgress is returned when a full sync is requested while one is
// already running.
var ErrSyncInProgress = errors.New("synchronization already in progress")

const (
	defaultEnrichBatchSize = 50
	defaultEnrichDelay     = 500 * time.Millisecond

	defaultRefreshBatchSize = 50
	defaultRefreshDelay     = 500 * time.Millisecond
)

// CatalogClient is the catalog surface the sync needs.
type CatalogClient interface {
	FetchTokenDetailsByCategory(category string) ([]domain.TokenDetail, error)
	FetchTokenDetailByID(tokenID int64) (domain.TokenDetail, error)
}

// Appraiser resolves a token detail to its current market value.
type Appraiser interface {
	Enrich(detail domain.TokenDetail) (*domain.EnrichedCard, error)
}

// CardStore is the persistence surface the sync needs. Writes go through the
// notifying card service, so subscribers see every sync result.
type CardStore interface {
	UpsertMany(cards []domain.Card) error
	GetAllInValueRange(minValue, maxValue *float64) ([]domain.Card, error)
}

// Config holds sync configuration
type Config struct {
	// Categories is the fixed list of catalog categories a full sync
	// iterates, in order.
	Categories []string
}

// Service coordinates full syncs and tier refreshes.
type Service struct {
	cfg       Config
	catalog   CatalogClient
	appraiser Appraiser
	store     CardStore
	log       zerolog.Logger

	// syncing guards full syncs only. Tier refreshes run unguarded and may
	// overlap a full sync.
	syncing atomic.Bool

	enrichOpts  batch.Options
	refreshOpts batch.Options
}

// NewService creates a new sync service
func NewService(cfg Config, catalog CatalogClient, appraiser Appraiser, store CardStore, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		catalog:   catalog,
		appraiser: appraiser,
		store:     store,
		log:       log.With().Str("component", "valuesync").Logger(),
		enrichOpts: batch.Options{
			BatchSize:           defaultEnrichBatchSize,
			DelayBetweenBatches: defaultEnrichDelay,
		},
		refreshOpts: batch.Options{
			BatchSize:           defaultRefreshBatchSize,
			DelayBetweenBatches: defaultRefreshDelay,
		},
	}
}

// IsSyncing reports whether a full sync is currently running.
func (s *Service) IsSyncing() bool {
	return s.syncing.Load()
}

// SyncAll runs a full synchronization across all configured categories.
// At most one full sync runs at a time; concurrent calls get
// ErrSyncInProgress. A category fetch error aborts the run, and the
// in-progress flag is always released.
func (s *Service) SyncAll() error {
	if !s.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	start := time.Now()
	s.log.Info().Strs("categories", s.cfg.Categories).Msg("Starting full sync")

	for _, category := range s.cfg.Categories {
		details, err := s.catalog.FetchTokenDetailsByCategory(category)
		if err != nil {
			return err
		}

		s.processTokenDetails(details)
	}

	s.log.Info().Dur("elapsed", time.Since(start)).Msg("Full sync completed")
	return nil
}

// RefreshTier re-fetches and re-enriches every stored card in one value tier.
// Refreshes are not guarded by the full-sync flag.
func (s *Service) RefreshTier(tier domain.ValueTier) error {
	minValue, maxValue := tierRange(tier)

	inRange, err := s.store.GetAllInValueRange(minValue, maxValue)
	if err != nil {
		return err
	}

	if len(inRange) == 0 {
		s.log.Debug().Str("tier", string(tier)).Msg("No cards in tier, nothing to refresh")
		return nil
	}

	s.log.Info().
		Str("tier", string(tier)).
		Int("cards", len(inRange)).
		Msg("Refreshing tier")

	tokenIDs := make([]int64, 0, len(inRange))
	for _, card := range inRange {
		tokenIDs = append(tokenIDs, card.TokenID)
	}

	details := batch.Process(tokenIDs, s.catalog.FetchTokenDetailByID, s.refreshOpts)
	s.processTokenDetails(details)

	return nil
}

// processTokenDetails enriches a batch of token details and persists the
// results. Details that fail or do not resolve to a value are dropped, and a
// store failure is logged but does not abort the run - the next refresh pass
// will retry those cards anyway.
func (s *Service) processTokenDetails(details []domain.TokenDetail) {
	if len(details) == 0 {
		return
	}

	enriched := batch.Process(details, s.appraiser.Enrich, s.enrichOpts)

	cards := make([]domain.Card, 0, len(enriched))
	for _, e := range enriched {
		if e == nil {
			continue // skipped by the appraiser, not an error
		}
		cards = append(cards, e.Card())
	}

	s.log.Info().
		Int("details", len(details)).
		Int("enriched", len(cards)).
		Msg("Processed token details")

	if len(cards) == 0 {
		return
	}

	if err := s.store.UpsertMany(cards); err != nil {
		s.log.Error().Err(err).Int("cards", len(cards)).Msg("Failed to store enriched cards")
	}
}

// tierRange maps a value tier to its half-open selection interval
// [min, max). The exclusive upper bound keeps adjacent tiers from refreshing
// the same card twice.
func tierRange(tier domain.ValueTier) (minValue, maxValue *float64) {
	low := domain.LowValueMax
	high := domain.HighValueMin

	switch tier {
	case domain.TierLow:
		return nil, &low
	case domain.TierMedium:
		return &low, &high
	default:
		return &high, nil
	}
}
