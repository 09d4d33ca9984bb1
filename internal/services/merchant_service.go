package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ovoz/internal/models/db_models"
	"ovoz/internal/repositories"
	"ovoz/pkg/paycom"
	"ovoz/pkg/utils"
)

// DefaultTransactionTimeoutMs is how long a created transaction may stay
// unperformed before it expires: 12 hours, per the provider contract.
const DefaultTransactionTimeoutMs = 12 * 60 * 60 * 1000

type MerchantConfig struct {
	TransactionTimeoutMs int64
}

// MerchantService reconciles the provider's transaction lifecycle
// against the local order ledger. One method per JSON-RPC method.
type MerchantService interface {
	CheckPerformTransaction(ctx context.Context, p paycom.CheckPerformParams) (*paycom.CheckPerformResult, error)
	CreateTransaction(ctx context.Context, p paycom.CreateParams) (*paycom.CreateResult, error)
	PerformTransaction(ctx context.Context, p paycom.PerformParams) (*paycom.PerformResult, error)
	CancelTransaction(ctx context.Context, p paycom.CancelParams) (*paycom.CancelResult, error)
	CheckTransaction(ctx context.Context, p paycom.PerformParams) (*paycom.CheckResult, error)
	GetStatement(ctx context.Context, p paycom.StatementParams) (*paycom.StatementResult, error)
}

type merchantService struct {
	store  repositories.IMerchantStore
	cfg    MerchantConfig
	logger *zap.Logger
}

func NewMerchantService(store repositories.IMerchantStore, cfg MerchantConfig, logger *zap.Logger) MerchantService {
	if cfg.TransactionTimeoutMs <= 0 {
		cfg.TransactionTimeoutMs = DefaultTransactionTimeoutMs
	}
	return &merchantService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// resolveOrder maps the provider's account reference onto exactly one
// purchasable order and validates the asserted amount against the
// catalog price.
func (m *merchantService) resolveOrder(ctx context.Context, store repositories.IMerchantStore, account paycom.Account, amount int64) (*repositories.OrderRef, error) {
	planSet := account.PlanID != "" && account.PlanID != "0"
	pkgSet := account.PackageID != "" && account.PackageID != "0"
	if planSet == pkgSet {
		return nil, paycom.ErrInvalidOrderType.WithData("account")
	}

	user, err := store.FindAccountByMemberID(ctx, account.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, paycom.ErrUserNotFound.WithData("user_id")
	}

	ref := &repositories.OrderRef{AccountID: user.ID, MemberID: user.MemberID}
	var expected int64
	if planSet {
		plan, err := store.FindPlanByCode(ctx, account.PlanID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, paycom.ErrPlanNotFound.WithData("plan_id")
		}
		ref.PlanCode = plan.Code
		expected = plan.PriceMinor
	} else {
		pkg, err := store.FindPackageByCode(ctx, account.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg == nil {
			return nil, paycom.ErrPackageNotFound.WithData("package_id")
		}
		ref.PackageCode = pkg.Code
		expected = pkg.PriceMinor
	}

	if amount != expected {
		return nil, paycom.ErrInvalidAmount.WithData("amount")
	}
	return ref, nil
}

// checkOrderFree verifies the order is neither fulfilled nor occupied by
// another active transaction.
func (m *merchantService) checkOrderFree(ctx context.Context, store repositories.IMerchantStore, ref *repositories.OrderRef) error {
	paid, err := store.HasCompletedTransactionForOrder(ctx, *ref)
	if err != nil {
		return err
	}
	if paid {
		return paycom.ErrOrderAlreadyPaid
	}
	active, err := store.FindActiveTransactionForOrder(ctx, *ref)
	if err != nil {
		return err
	}
	if active != nil {
		return paycom.ErrOrderInProgress
	}
	return nil
}

func (m *merchantService) CheckPerformTransaction(ctx context.Context, p paycom.CheckPerformParams) (*paycom.CheckPerformResult, error) {
	ref, err := m.resolveOrder(ctx, m.store, p.Account, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := m.checkOrderFree(ctx, m.store, ref); err != nil {
		return nil, err
	}
	return &paycom.CheckPerformResult{Allow: true}, nil
}

func (m *merchantService) CreateTransaction(ctx context.Context, p paycom.CreateParams) (*paycom.CreateResult, error) {
	result, err := m.createTransaction(ctx, p)
	if err == repositories.ErrDuplicateTransaction {
		// Lost the insert race for this provider id. The winner's row is
		// committed by now, so a second pass takes the replay path.
		return m.createTransaction(ctx, p)
	}
	return result, err
}

func (m *merchantService) createTransaction(ctx context.Context, p paycom.CreateParams) (*paycom.CreateResult, error) {
	var result *paycom.CreateResult

	err := m.store.InTx(ctx, func(store repositories.IMerchantStore) error {
		existing, err := store.FindTransactionByPaycomID(ctx, p.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Amount != p.Amount {
				return paycom.ErrInvalidAmount.WithData("amount")
			}
			if existing.OrderAccount() != p.Account {
				return paycom.ErrInvalidAccount.WithData("account")
			}
			// Idempotent replay: the stored snapshot, unchanged.
			result = &paycom.CreateResult{
				CreateTime:  existing.CreateTime,
				Transaction: existing.OrderID,
				State:       existing.State,
			}
			return nil
		}

		ref, err := m.resolveOrder(ctx, store, p.Account, p.Amount)
		if err != nil {
			return err
		}
		// Serializes concurrent creates for the same buyer before the
		// active-transaction re-check.
		if err := store.LockAccount(ctx, ref.AccountID); err != nil {
			return err
		}
		if err := m.checkOrderFree(ctx, store, ref); err != nil {
			return err
		}

		txn := &db_models.MerchantTransaction{
			PaycomID:    p.ID,
			PaycomTime:  p.Time,
			OrderID:     uuid.NewString(),
			AccountID:   ref.AccountID,
			MemberID:    ref.MemberID,
			PlanCode:    ref.PlanCode,
			PackageCode: ref.PackageCode,
			Amount:      p.Amount,
			State:       paycom.StateCreated,
			CreateTime:  utils.NowUnixMillis(),
		}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		result = &paycom.CreateResult{
			CreateTime:  txn.CreateTime,
			Transaction: txn.OrderID,
			State:       txn.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *merchantService) PerformTransaction(ctx context.Context, p paycom.PerformParams) (*paycom.PerformResult, error) {
	var result *paycom.PerformResult
	var expired bool

	err := m.store.InTx(ctx, func(store repositories.IMerchantStore) error {
		txn, err := store.FindTransactionByPaycomID(ctx, p.ID)
		if err != nil {
			return err
		}
		if txn == nil {
			return paycom.ErrTransactionNotFound.WithData("id")
		}

		if txn.State == paycom.StateCompleted {
			// Idempotent replay; fulfillment already happened.
			result = &paycom.PerformResult{
				Transaction: txn.OrderID,
				PerformTime: txn.PerformTime,
				State:       txn.State,
			}
			return nil
		}

		now := utils.NowUnixMillis()
		if txn.State == paycom.StateCreated && now-txn.CreateTime > m.cfg.TransactionTimeoutMs {
			next, terr := paycom.Transition(txn.State, paycom.EventTimeout)
			if terr != nil {
				return terr
			}
			reason := paycom.ReasonTimeout
			txn.State = next
			txn.Reason = &reason
			txn.CancelTime = now
			if err := store.SaveTransaction(ctx, txn); err != nil {
				return err
			}
			m.logger.Warn("transaction expired before perform",
				zap.String("paycom_id", txn.PaycomID),
				zap.String("order_id", txn.OrderID))
			// The callback must succeed or the auto-cancel rolls back;
			// the protocol error is raised after the commit.
			expired = true
			return nil
		}

		next, terr := paycom.Transition(txn.State, paycom.EventPerform)
		if terr != nil {
			return terr
		}
		txn.State = next
		txn.PerformTime = now

		// Fulfillment first: if it cannot be applied the transaction
		// must stay Created so the provider retries.
		if err := store.FulfillOrder(ctx, txn); err != nil {
			m.logger.Error("order fulfillment failed",
				zap.String("paycom_id", txn.PaycomID),
				zap.String("order_id", txn.OrderID),
				zap.Error(err))
			return err
		}
		if err := store.SaveTransaction(ctx, txn); err != nil {
			return err
		}

		result = &paycom.PerformResult{
			Transaction: txn.OrderID,
			PerformTime: txn.PerformTime,
			State:       txn.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, paycom.ErrUnableToPerform
	}
	return result, nil
}

func (m *merchantService) CancelTransaction(ctx context.Context, p paycom.CancelParams) (*paycom.CancelResult, error) {
	var result *paycom.CancelResult

	err := m.store.InTx(ctx, func(store repositories.IMerchantStore) error {
		txn, err := store.FindTransactionByPaycomID(ctx, p.ID)
		if err != nil {
			return err
		}
		if txn == nil {
			return paycom.ErrTransactionNotFound.WithData("id")
		}

		if !txn.State.Active() {
			// Already cancelled: same snapshot, reason not re-validated.
			result = &paycom.CancelResult{
				Transaction: txn.OrderID,
				CancelTime:  txn.CancelTime,
				State:       txn.State,
			}
			return nil
		}

		wasCompleted := txn.State == paycom.StateCompleted
		next, terr := paycom.Transition(txn.State, paycom.EventCancel)
		if terr != nil {
			return terr
		}
		reason := p.Reason
		txn.State = next
		txn.Reason = &reason
		txn.CancelTime = utils.NowUnixMillis()

		if wasCompleted {
			// The merchant cannot refuse a refund acknowledgment, so a
			// failed reversal is recorded and the cancel proceeds.
			shortfall, rerr := store.ReverseOrder(ctx, txn)
			if rerr != nil {
				m.logger.Warn("reversal failed, cancelling anyway",
					zap.String("paycom_id", txn.PaycomID),
					zap.String("order_id", txn.OrderID),
					zap.Error(rerr))
			} else if shortfall > 0 {
				txn.ReversalShortfall = shortfall
				m.logger.Warn("reversal left a minute shortfall",
					zap.String("order_id", txn.OrderID),
					zap.Int64("shortfall", shortfall))
			}
		}

		if err := store.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		result = &paycom.CancelResult{
			Transaction: txn.OrderID,
			CancelTime:  txn.CancelTime,
			State:       txn.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *merchantService) CheckTransaction(ctx context.Context, p paycom.PerformParams) (*paycom.CheckResult, error) {
	txn, err := m.store.FindTransactionByPaycomID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, paycom.ErrTransactionNotFound.WithData("id")
	}
	return &paycom.CheckResult{
		CreateTime:  txn.CreateTime,
		PerformTime: txn.PerformTime,
		CancelTime:  txn.CancelTime,
		Transaction: txn.OrderID,
		State:       txn.State,
		Reason:      txn.Reason,
	}, nil
}

func (m *merchantService) GetStatement(ctx context.Context, p paycom.StatementParams) (*paycom.StatementResult, error) {
	txns, err := m.store.ListTransactionsByPaycomTime(ctx, p.From, p.To)
	if err != nil {
		return nil, err
	}
	entries := make([]paycom.StatementEntry, 0, len(txns))
	for i := range txns {
		t := &txns[i]
		entries = append(entries, paycom.StatementEntry{
			ID:          t.PaycomID,
			Time:        t.PaycomTime,
			Amount:      t.Amount,
			Account:     t.OrderAccount(),
			CreateTime:  t.CreateTime,
			PerformTime: t.PerformTime,
			CancelTime:  t.CancelTime,
			Transaction: t.OrderID,
			State:       t.State,
			Reason:      t.Reason,
		})
	}
	return &paycom.StatementResult{Transactions: entries}, nil
}
