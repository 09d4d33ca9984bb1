package db_models

// MinutePackage is a one-off purchasable bundle of transcription
// minutes, as opposed to a recurring Plan.
type MinutePackage struct {
	BaseModel
	Code        string `gorm:"uniqueIndex"` // e.g., "pack_300"
	Name        string
	Description *string
	Minutes     int64
	PriceMinor  int64  // tiyin
	Currency    string `gorm:"size:3"` // "UZS"
	IsActive    bool   `gorm:"default:true"`
}
