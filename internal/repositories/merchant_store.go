package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ovoz/internal/models/db_models"
	"ovoz/pkg/utils"
)

// ErrDuplicateTransaction surfaces a unique-index violation on the
// provider transaction id, i.e. a concurrent create won the race.
var ErrDuplicateTransaction = errors.New("duplicate merchant transaction")

// OrderRef identifies what an order purchases and for whom. Exactly one
// of PlanCode/PackageCode is set.
type OrderRef struct {
	AccountID   uuid.UUID
	MemberID    string
	PlanCode    string
	PackageCode string
}

// IMerchantStore is the transactional store surface the reconciler runs
// against. Every check-then-mutate sequence happens inside InTx, which
// must serialize concurrent calls touching the same order and the same
// provider transaction id.
type IMerchantStore interface {
	InTx(ctx context.Context, fn func(store IMerchantStore) error) error
	LockAccount(ctx context.Context, accountID uuid.UUID) error

	FindAccountByMemberID(ctx context.Context, memberID string) (*db_models.Account, error)
	FindPlanByCode(ctx context.Context, code string) (*db_models.Plan, error)
	FindPackageByCode(ctx context.Context, code string) (*db_models.MinutePackage, error)

	FindTransactionByPaycomID(ctx context.Context, paycomID string) (*db_models.MerchantTransaction, error)
	FindActiveTransactionForOrder(ctx context.Context, ref OrderRef) (*db_models.MerchantTransaction, error)
	HasCompletedTransactionForOrder(ctx context.Context, ref OrderRef) (bool, error)
	CreateTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error
	SaveTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error
	ListTransactionsByPaycomTime(ctx context.Context, from, to int64) ([]db_models.MerchantTransaction, error)

	// FulfillOrder applies the purchase: activates/extends the plan
	// subscription or credits package minutes.
	FulfillOrder(ctx context.Context, txn *db_models.MerchantTransaction) error
	// ReverseOrder undoes fulfillment after a refund; returns the number
	// of minutes that were already spent and could not be clawed back.
	ReverseOrder(ctx context.Context, txn *db_models.MerchantTransaction) (int64, error)
}

type MerchantStore struct {
	db   *gorm.DB
	inTx bool
}

func NewMerchantStore(db *gorm.DB) IMerchantStore {
	return &MerchantStore{db: db}
}

func (s *MerchantStore) InTx(ctx context.Context, fn func(store IMerchantStore) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MerchantStore{db: tx, inTx: true})
	})
}

// LockAccount takes a row lock on the account, serializing every
// reconciliation touching the same buyer's orders.
func (s *MerchantStore) LockAccount(ctx context.Context, accountID uuid.UUID) error {
	var account db_models.Account
	return s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ?", accountID).Error
}

func (s *MerchantStore) FindAccountByMemberID(ctx context.Context, memberID string) (*db_models.Account, error) {
	var account db_models.Account
	err := s.db.WithContext(ctx).First(&account, "member_id = ?", memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *MerchantStore) FindPlanByCode(ctx context.Context, code string) (*db_models.Plan, error) {
	var plan db_models.Plan
	err := s.db.WithContext(ctx).
		Where("code = ? AND is_active = TRUE", code).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (s *MerchantStore) FindPackageByCode(ctx context.Context, code string) (*db_models.MinutePackage, error) {
	var pkg db_models.MinutePackage
	err := s.db.WithContext(ctx).
		Where("code = ? AND is_active = TRUE", code).
		First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

func (s *MerchantStore) FindTransactionByPaycomID(ctx context.Context, paycomID string) (*db_models.MerchantTransaction, error) {
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var txn db_models.MerchantTransaction
	err := q.First(&txn, "paycom_id = ?", paycomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (s *MerchantStore) FindActiveTransactionForOrder(ctx context.Context, ref OrderRef) (*db_models.MerchantTransaction, error) {
	var txn db_models.MerchantTransaction
	err := s.orderScope(ctx, ref).
		Where("state IN ?", []int{1, 2}).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (s *MerchantStore) HasCompletedTransactionForOrder(ctx context.Context, ref OrderRef) (bool, error) {
	var count int64
	err := s.orderScope(ctx, ref).
		Where("state = ?", 2).
		Count(&count).Error
	return count > 0, err
}

func (s *MerchantStore) orderScope(ctx context.Context, ref OrderRef) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&db_models.MerchantTransaction{}).
		Where("account_id = ?", ref.AccountID)
	if ref.PlanCode != "" {
		return q.Where("plan_code = ?", ref.PlanCode)
	}
	return q.Where("package_code = ?", ref.PackageCode)
}

func (s *MerchantStore) CreateTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error {
	err := s.db.WithContext(ctx).Create(txn).Error
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		(errors.As(err, &pgErr) && pgErr.Code == "23505") {
		return ErrDuplicateTransaction
	}
	return err
}

func (s *MerchantStore) SaveTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error {
	return s.db.WithContext(ctx).Save(txn).Error
}

func (s *MerchantStore) ListTransactionsByPaycomTime(ctx context.Context, from, to int64) ([]db_models.MerchantTransaction, error) {
	var txns []db_models.MerchantTransaction
	err := s.db.WithContext(ctx).
		Where("paycom_time BETWEEN ? AND ?", from, to).
		Order("paycom_time ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *MerchantStore) FulfillOrder(ctx context.Context, txn *db_models.MerchantTransaction) error {
	if txn.PlanCode != "" {
		return s.activatePlan(ctx, txn)
	}
	return s.creditPackage(ctx, txn)
}

func (s *MerchantStore) activatePlan(ctx context.Context, txn *db_models.MerchantTransaction) error {
	plan, err := s.FindPlanByCode(ctx, txn.PlanCode)
	if err != nil {
		return err
	}
	if plan == nil {
		return gorm.ErrRecordNotFound
	}

	now := time.Now()
	starts := now

	// A still-running period for the same account extends from its end
	// instead of starting a parallel one.
	var current db_models.Subscription
	err = s.db.WithContext(ctx).
		Where("account_id = ? AND status = ? AND ends_at > ?",
			txn.AccountID, db_models.SubStatusActive, now.Unix()).
		Order("ends_at DESC").
		First(&current).Error
	if err == nil {
		starts = time.Unix(current.EndsAt, 0)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var ends time.Time
	switch plan.Period {
	case db_models.PeriodYear:
		ends = starts.AddDate(1, 0, 0)
	default:
		ends = starts.AddDate(0, 1, 0)
	}

	sub := db_models.Subscription{
		AccountID:          txn.AccountID,
		PlanID:             plan.ID,
		Status:             db_models.SubStatusActive,
		StartsAt:           starts.Unix(),
		EndsAt:             ends.Unix(),
		ActivatedByOrderID: txn.OrderID,
		Metadata: utils.JSONRaw(map[string]any{
			"paycom_id":    txn.PaycomID,
			"amount_minor": txn.Amount,
		}),
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return err
	}

	return s.db.WithContext(ctx).
		Model(&db_models.Account{BaseModel: db_models.BaseModel{ID: txn.AccountID}}).
		Update("subscription_snapshot", utils.JSONRaw(sub)).Error
}

func (s *MerchantStore) creditPackage(ctx context.Context, txn *db_models.MerchantTransaction) error {
	pkg, err := s.FindPackageByCode(ctx, txn.PackageCode)
	if err != nil {
		return err
	}
	if pkg == nil {
		return gorm.ErrRecordNotFound
	}
	return s.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Where("id = ?", txn.AccountID).
		Update("minute_balance", gorm.Expr("minute_balance + ?", pkg.Minutes)).Error
}

func (s *MerchantStore) ReverseOrder(ctx context.Context, txn *db_models.MerchantTransaction) (int64, error) {
	if txn.PlanCode != "" {
		return 0, s.deactivatePlan(ctx, txn)
	}
	return s.debitPackage(ctx, txn)
}

func (s *MerchantStore) deactivatePlan(ctx context.Context, txn *db_models.MerchantTransaction) error {
	now := time.Now().Unix()
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("activated_by_order_id = ? AND status = ?", txn.OrderID, db_models.SubStatusActive).
		Updates(map[string]any{
			"status":      db_models.SubStatusCanceled,
			"canceled_at": now,
		}).Error
}

// debitPackage claws back the credited minutes. The balance never goes
// below zero; whatever was already spent is reported as shortfall.
func (s *MerchantStore) debitPackage(ctx context.Context, txn *db_models.MerchantTransaction) (int64, error) {
	pkg, err := s.FindPackageByCode(ctx, txn.PackageCode)
	if err != nil {
		return 0, err
	}
	if pkg == nil {
		return 0, gorm.ErrRecordNotFound
	}

	var account db_models.Account
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&account, "id = ?", txn.AccountID).Error; err != nil {
		return 0, err
	}

	debit := pkg.Minutes
	shortfall := int64(0)
	if account.MinuteBalance < debit {
		shortfall = debit - account.MinuteBalance
		debit = account.MinuteBalance
	}
	err = s.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Where("id = ?", txn.AccountID).
		Update("minute_balance", gorm.Expr("minute_balance - ?", debit)).Error
	return shortfall, err
}
