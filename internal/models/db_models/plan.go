package db_models

import (
	"gorm.io/datatypes"
)

type Plan struct {
	BaseModel
	Code        string `gorm:"uniqueIndex"` // e.g., "starter", "pro_monthly"
	Name        string
	Description *string
	Period      BillingPeriod `gorm:"type:billing_period"` // "month" | "year"
	PriceMinor  int64         // tiyin: 9900000 = 99 000 UZS
	Currency    string        `gorm:"size:3"` // "UZS"
	// Minutes included per billing period, 0 = unlimited.
	MinutesPerPeriod int64
	IsActive         bool `gorm:"default:true"`
	// Optional feature flags, limits, etc.
	Features datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}
