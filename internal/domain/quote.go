package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the cached market snapshot for one instrument. It is produced by
// the refresh collaborators (REST poller, ticker stream) and read-only from
// the ledger's perspective.
type Quote struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	AssetID           int64           `json:"asset_id"` // stable CDN id for icon/sparkline URLs
	Price             decimal.Decimal `json:"price"`
	Change24h         decimal.Decimal `json:"change_24h"`
	Volume24h         decimal.Decimal `json:"volume_24h"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	MaxSupply         decimal.Decimal `json:"max_supply"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IconURL returns the CDN URL of the 64x64 coin icon.
func (q *Quote) IconURL() string {
	return fmt.Sprintf("https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png", q.AssetID)
}

// SparklineURL returns the CDN URL of the 1-day USD sparkline image.
func (q *Quote) SparklineURL() string {
	return fmt.Sprintf("https://s3.coinmarketcap.com/generated/sparklines/web/1d/usd/%d.png", q.AssetID)
}

// ChangeDirection returns "positive", "negative", or "neutral"
func (q *Quote) ChangeDirection() string {
	if q.Change24h.IsPositive() {
		return "positive"
	}
	if q.Change24h.IsNegative() {
		return "negative"
	}
	return "neutral"
}

// Tick is a partial quote update from the live stream: price and day stats
// only, no supply or metadata.
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
}

// Setting is a persisted key-value preference (command toggles, prefix
// override, boot stats).
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
