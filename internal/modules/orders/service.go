// Package orders reacts to card market-value changes by placing buy orders
// against the wallet ledger.
package orders

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

const (
	// maxOrderValue is the most the reactor will pay for a single card.
	maxOrderValue = 200.0

	// stopOrderingThreshold halts ordering for the rest of an event once the
	// wallet balance drops to or below it.
	stopOrderingThreshold = 100.0
)

// SyncStatus reports whether a full synchronization is currently running.
type SyncStatus interface {
	IsSyncing() bool
}

// Ledger is the wallet surface the reactor needs.
type Ledger interface {
	BalanceOf(address string) float64
	WithdrawIfAvailable(address string, amount float64) bool
}

// Order is a placed buy order.
type Order struct {
	ID       string    `json:"id"`
	TokenID  int64     `json:"token_id"`
	AssetID  string    `json:"asset_id"`
	Value    float64   `json:"value"`
	PlacedAt time.Time `json:"placed_at"`
}

// Config holds order reactor configuration
type Config struct {
	WalletAddress string
	// PlaceOrdersDuringSync controls whether change events arriving while a
	// full sync runs are acted on or dropped.
	PlaceOrdersDuringSync bool
}

// Service places orders in response to card change events.
type Service struct {
	cfg        Config
	ledger     Ledger
	syncStatus SyncStatus
	log        zerolog.Logger

	mu     sync.Mutex
	placed []Order
}

// NewService creates a new order reactor
func NewService(cfg Config, ledger Ledger, syncStatus SyncStatus, log zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		ledger:     ledger,
		syncStatus: syncStatus,
		log:        log.With().Str("component", "orders").Logger(),
	}
}

// OnCardsChanged applies the ordering policy to a batch of changed cards, in
// order:
//   - the whole event is dropped while a sync runs, unless configured otherwise
//   - ordering halts for the rest of the event once the balance falls to the
//     stop threshold
//   - cards above the max order value are skipped
//   - cards the balance cannot cover are skipped
func (s *Service) OnCardsChanged(cards []domain.Card) error {
	if s.syncStatus.IsSyncing() && !s.cfg.PlaceOrdersDuringSync {
		s.log.Debug().Int("cards", len(cards)).Msg("Skipping change event during sync")
		return nil
	}

	for _, card := range cards {
		balance := s.ledger.BalanceOf(s.cfg.WalletAddress)
		if balance <= stopOrderingThreshold {
			s.log.Info().
				Float64("balance", balance).
				Msg("Balance at stop threshold, halting ordering for this event")
			return nil
		}

		if card.MarketValue > maxOrderValue {
			s.log.Debug().
				Int64("token_id", card.TokenID).
				Float64("value", card.MarketValue).
				Msg("Card above max order value, skipping")
			continue
		}

		if !s.ledger.WithdrawIfAvailable(s.cfg.WalletAddress, card.MarketValue) {
			s.log.Debug().
				Int64("token_id", card.TokenID).
				Float64("value", card.MarketValue).
				Msg("Insufficient balance for card, skipping")
			continue
		}

		s.recordOrder(card)
	}

	return nil
}

func (s *Service) recordOrder(card domain.Card) {
	order := Order{
		ID:       uuid.New().String(),
		TokenID:  card.TokenID,
		AssetID:  card.AssetID,
		Value:    card.MarketValue,
		PlacedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.placed = append(s.placed, order)
	s.mu.Unlock()

	s.log.Info().
		Str("order_id", order.ID).
		Int64("token_id", order.TokenID).
		Float64("value", order.Value).
		Msg("Placed order")
}

// PlacedOrders returns a copy of every order placed so far, oldest first.
func (s *Service) PlacedOrders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Order, len(s.placed))
	copy(out, s.placed)
	return out
}
