// Package cards stores market-value records for graded collectible tokens and
// notifies subscribers when records change.
package cards

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ilyaberbx/decentra-test-task/internal/database"
	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

// Repository handles card database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// cardColumns is the list of columns for the cards table
// Used to avoid SELECT * which can break when schema changes
const cardColumns = `token_id, asset_id, market_value`

// NewRepository creates a new card repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "cards").Logger(),
	}
}

// Upsert inserts a card or refreshes its market value when the token already
// exists. The asset id is written once and never reassigned - a token maps to
// the same underlying asset for its lifetime.
func (r *Repository) Upsert(card domain.Card) error {
	query := `
		INSERT INTO cards (token_id, asset_id, market_value)
		VALUES (?, ?, ?)
		ON CONFLICT(token_id) DO UPDATE SET
			market_value = excluded.market_value,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := r.db.Exec(query, card.TokenID, card.AssetID, card.MarketValue); err != nil {
		return fmt.Errorf("failed to upsert card %d: %w", card.TokenID, err)
	}

	return nil
}

// UpsertMany writes a batch of cards in a single transaction. Either all cards
// land or none do.
func (r *Repository) UpsertMany(cards []domain.Card) error {
	if len(cards) == 0 {
		return nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO cards (token_id, asset_id, market_value)
			VALUES (?, ?, ?)
			ON CONFLICT(token_id) DO UPDATE SET
				market_value = excluded.market_value,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert statement: %w", err)
		}
		defer stmt.Close()

		for _, card := range cards {
			if _, err := stmt.Exec(card.TokenID, card.AssetID, card.MarketValue); err != nil {
				return fmt.Errorf("failed to upsert card %d: %w", card.TokenID, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("count", len(cards)).Msg("Upserted cards batch")
	return nil
}

// GetByTokenID returns a card by token ID, or nil when absent.
func (r *Repository) GetByTokenID(tokenID int64) (*domain.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE token_id = ?"

	rows, err := r.db.Query(query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card by token ID: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Card not found
	}

	card, err := scanCard(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	return &card, nil
}

// GetAll returns cards ordered by token ID with limit/offset paging.
func (r *Repository) GetAll(limit, offset int) ([]domain.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards ORDER BY token_id LIMIT ? OFFSET ?"

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// GetAllWithFilters returns cards whose market value falls inside the given
// optional bounds, both inclusive, with limit/offset paging.
func (r *Repository) GetAllWithFilters(minValue, maxValue *float64, limit, offset int) ([]domain.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards"
	conditions, args := valueConditions(minValue, maxValue, true)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY token_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards with filters: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// GetAllInValueRange returns every card whose market value is inside
// [minValue, maxValue). Either bound may be nil for an open interval. This is
// the tier-refresh selection query, so the upper bound is exclusive - the
// tiers partition the value line without overlap.
func (r *Repository) GetAllInValueRange(minValue, maxValue *float64) ([]domain.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards"
	conditions, args := valueConditions(minValue, maxValue, false)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY token_id"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards in value range: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// GetAllByAssetIDs returns cards matching any of the given asset IDs.
func (r *Repository) GetAllByAssetIDs(assetIDs []string) ([]domain.Card, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(assetIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := "SELECT " + cardColumns + " FROM cards WHERE asset_id IN (" + placeholders + ") ORDER BY token_id"

	args := make([]interface{}, len(assetIDs))
	for i, id := range assetIDs {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards by asset IDs: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// GetCount returns the total number of cards.
func (r *Repository) GetCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM cards").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

// GetCountWithFilters returns the number of cards matching the optional
// inclusive value bounds. Pairs with GetAllWithFilters for pagination totals.
func (r *Repository) GetCountWithFilters(minValue, maxValue *float64) (int, error) {
	query := "SELECT COUNT(*) FROM cards"
	conditions, args := valueConditions(minValue, maxValue, true)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards with filters: %w", err)
	}
	return count, nil
}

// IsEmpty reports whether the store holds no cards.
func (r *Repository) IsEmpty() (bool, error) {
	count, err := r.GetCount()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GetCountByValueTier returns how many cards fall into each value tier, in a
// single scan.
func (r *Repository) GetCountByValueTier() (domain.TierCounts, error) {
	query := `
		SELECT
			COUNT(CASE WHEN market_value < ? THEN 1 END),
			COUNT(CASE WHEN market_value >= ? AND market_value <= ? THEN 1 END),
			COUNT(CASE WHEN market_value > ? THEN 1 END)
		FROM cards`

	var counts domain.TierCounts
	err := r.db.QueryRow(query,
		domain.LowValueMax,
		domain.LowValueMax, domain.HighValueMin,
		domain.HighValueMin,
	).Scan(&counts.Low, &counts.Medium, &counts.High)
	if err != nil {
		return domain.TierCounts{}, fmt.Errorf("failed to count cards by tier: %w", err)
	}

	return counts, nil
}

// valueConditions builds WHERE fragments for optional value bounds. The upper
// bound is inclusive for listing filters and exclusive for tier-range
// selection.
func valueConditions(minValue, maxValue *float64, maxInclusive bool) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if minValue != nil {
		conditions = append(conditions, "market_value >= ?")
		args = append(args, *minValue)
	}
	if maxValue != nil {
		if maxInclusive {
			conditions = append(conditions, "market_value <= ?")
		} else {
			conditions = append(conditions, "market_value < ?")
		}
		args = append(args, *maxValue)
	}

	return conditions, args
}

func scanCard(rows *sql.Rows) (domain.Card, error) {
	var card domain.Card
	err := rows.Scan(&card.TokenID, &card.AssetID, &card.MarketValue)
	return card, err
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}
