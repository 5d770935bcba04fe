// Package domain contains the core types shared across modules.
// The domain layer is pure - no infrastructure dependencies.
package domain

// Card is the persisted unit: a collectible token with its current market value.
// TokenID is the external catalog token id (primary key); AssetID is the id the
// valuation provider assigned to the underlying asset. A token id is never
// reassigned to a different asset id once written - upserts only touch the value.
type Card struct {
	TokenID     int64   `json:"token_id"`
	AssetID     string  `json:"asset_id"`
	MarketValue float64 `json:"market_value"`
}

// TokenDetail is the transient detail record fetched from the catalog for one
// token. The grading fields are nullable - a missing field is not an error, it
// just makes the token unenrichable.
type TokenDetail struct {
	TokenID      int64
	SerialNumber *string
	Grader       *string
	Grade        *string
}

// Enrichable reports whether all three grading fields required for a valuation
// lookup are present.
func (d TokenDetail) Enrichable() bool {
	return stringSet(d.SerialNumber) && stringSet(d.Grader) && stringSet(d.Grade)
}

func stringSet(s *string) bool {
	return s != nil && *s != ""
}

// EnrichedCard is a token detail that survived the valuation lookup.
type EnrichedCard struct {
	TokenID     int64
	AssetID     string
	MarketValue float64
}

// Card maps an enriched record 1:1 into its persistable form.
func (e EnrichedCard) Card() Card {
	return Card{
		TokenID:     e.TokenID,
		AssetID:     e.AssetID,
		MarketValue: e.MarketValue,
	}
}

// ValueTier is a value band used to stagger refresh frequency.
// Tiers are computed from the market value and never stored.
type ValueTier string

const (
	// TierLow - market value below 100
	TierLow ValueTier = "low"
	// TierMedium - market value in [100, 200]
	TierMedium ValueTier = "medium"
	// TierHigh - market value above 200
	TierHigh ValueTier = "high"
)

// Tier boundaries.
const (
	LowValueMax  = 100.0
	HighValueMin = 200.0
)

// ClassifyValue partitions a market value into its tier.
func ClassifyValue(value float64) ValueTier {
	switch {
	case value < LowValueMax:
		return TierLow
	case value > HighValueMin:
		return TierHigh
	default:
		return TierMedium
	}
}

// TierCounts holds per-tier card counts for reporting.
type TierCounts struct {
	Low    int `json:"low_value"`
	Medium int `json:"medium_value"`
	High   int `json:"high_value"`
}
