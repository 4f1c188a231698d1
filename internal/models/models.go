package models

import (
	"time"
)

// MandiRate represents one observation of a commodity's price at a specific
// market on a specific arrival date. The natural key is
// (state, district, market, commodity, arrival_date); re-ingesting the same
// key updates prices in place instead of inserting a duplicate.
type MandiRate struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	State     string `json:"state" gorm:"size:100;not null;uniqueIndex:idx_mandi_natural_key;index:idx_state_commodity"`
	District  string `json:"district" gorm:"size:100;not null;uniqueIndex:idx_mandi_natural_key"`
	Market    string `json:"market" gorm:"size:150;not null;uniqueIndex:idx_mandi_natural_key"`
	Commodity string `json:"commodity" gorm:"size:100;not null;uniqueIndex:idx_mandi_natural_key;index:idx_state_commodity"`
	Variety   string `json:"variety" gorm:"size:100"`

	// ArrivalDate is kept verbatim in the upstream "DD/MM/YYYY" form so the
	// key matches the source exactly; it is parsed into a time.Time at the
	// aggregation boundary, never compared as a string.
	ArrivalDate string `json:"arrival_date" gorm:"size:10;not null;uniqueIndex:idx_mandi_natural_key"`

	// Prices are in rupees per quintal. Upstream sometimes sends garbage in
	// these fields; unparseable values are stored as 0 rather than dropped.
	MinPrice   int `json:"min_price"`
	MaxPrice   int `json:"max_price"`
	ModalPrice int `json:"modal_price"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}
