package db_models

import (
	"github.com/google/uuid"

	"ovoz/pkg/paycom"
)

// MerchantTransaction is the reconciliation record for one provider-side
// payment attempt. One row per provider transaction id, never deleted.
type MerchantTransaction struct {
	BaseModel
	// PaycomID is the opaque transaction id the provider asserts.
	PaycomID string `gorm:"uniqueIndex;size:64"`
	// PaycomTime is the creation time the provider asserts, unix ms.
	// GetStatement filters on this field, not on merchant time.
	PaycomTime int64 `gorm:"index"`

	// OrderID is the merchant-side reference generated at creation and
	// returned to the provider as "transaction".
	OrderID string `gorm:"uniqueIndex;size:36"`

	AccountID uuid.UUID `gorm:"index"`
	// MemberID duplicates the account's short id so statement entries
	// can be rebuilt without a join.
	MemberID    string `gorm:"size:12"`
	PlanCode    string `gorm:"index"`
	PackageCode string `gorm:"index"`

	Amount int64 // tiyin, immutable after creation

	State  paycom.State         `gorm:"index"`
	Reason *paycom.CancelReason

	// Merchant-side timestamps, unix ms, each set exactly once.
	CreateTime  int64
	PerformTime int64
	CancelTime  int64

	// Minutes already spent that could not be clawed back when a
	// completed package purchase was refunded.
	ReversalShortfall int64

	Account Account `gorm:"foreignKey:AccountID"`
}

// OrderAccount rebuilds the provider-facing account reference.
func (t *MerchantTransaction) OrderAccount() paycom.Account {
	acc := paycom.Account{UserID: t.MemberID, PlanID: "0", PackageID: "0"}
	if t.PlanCode != "" {
		acc.PlanID = t.PlanCode
	}
	if t.PackageCode != "" {
		acc.PackageID = t.PackageCode
	}
	return acc
}
