package cards

// Schema defines the cards table. Applied through database.Migrate, which is
// idempotent for re-runs.
const Schema = `
CREATE TABLE IF NOT EXISTS cards (
    token_id     INTEGER PRIMARY KEY,
    asset_id     TEXT NOT NULL,
    market_value REAL NOT NULL CHECK (market_value >= 0),
    created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cards_market_value ON cards(market_value);
CREATE INDEX IF NOT EXISTS idx_cards_asset_id ON cards(asset_id);
`
