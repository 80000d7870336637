package store

import "time"

// BrokerKeyRow is one broker credential. Status is the active flag; it is
// only ever flipped off by the engine and reset externally.
type BrokerKeyRow struct {
	ID        string  `gorm:"primaryKey"`
	Token     string  // session JWT
	APIKey    string  `gorm:"column:api_key"`
	Balance   float64
	Status    bool
	UpdatedAt time.Time
}

func (BrokerKeyRow) TableName() string { return "broker_keys" }

// TradeLogRow records one lifecycle leg. The contract reference is kept as
// structured columns, never a delimiter-packed string.
type TradeLogRow struct {
	ID            string `gorm:"primaryKey"`
	BrokerKeyID   string `gorm:"index"`
	Exchange      string
	TradingSymbol string
	SymbolToken   string
	LotSize       int64
	Direction     string // CE / PE
	Quantity      int64
	Type          string // entry / exit
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (TradeLogRow) TableName() string { return "trade_logs" }

// DailyLevelRow holds one trading day's pivot levels.
type DailyLevelRow struct {
	ForDay time.Time `gorm:"primaryKey"`
	BC     float64   `gorm:"column:bc"`
	TC     float64   `gorm:"column:tc"`
	R1     float64   `gorm:"column:r1"`
	R2     float64   `gorm:"column:r2"`
	R3     float64   `gorm:"column:r3"`
	R4     float64   `gorm:"column:r4"`
	S1     float64   `gorm:"column:s1"`
	S2     float64   `gorm:"column:s2"`
	S3     float64   `gorm:"column:s3"`
	S4     float64   `gorm:"column:s4"`
	Buffer float64
}

func (DailyLevelRow) TableName() string { return "daily_levels" }

// DailyAssetRow maps a weekday to the underlying traded that day.
type DailyAssetRow struct {
	Day     string `gorm:"primaryKey"` // Monday..Friday
	AssetID string
	Name    string
	Token   string
}

func (DailyAssetRow) TableName() string { return "daily_assets" }
