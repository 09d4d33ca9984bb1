package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ovoz/internal/models/db_models"
	"ovoz/internal/repositories"
	"ovoz/pkg/paycom"
)

const (
	testMemberID   = "100001"
	starterPrice   = 9900000 // 99 000 UZS in tiyin
	packPrice      = 4500000
	packMinutes    = 300
	testPaycomTime = 1700000000000
)

var (
	planAccount = paycom.Account{UserID: testMemberID, PlanID: "starter", PackageID: "0"}
	pkgAccount  = paycom.Account{UserID: testMemberID, PlanID: "0", PackageID: "pack_300"}
)

func newTestStore() (*repositories.MemoryMerchantStore, uuid.UUID) {
	store := repositories.NewMemoryMerchantStore()
	accountID := uuid.New()
	store.SeedAccount(db_models.Account{
		BaseModel: db_models.BaseModel{ID: accountID},
		MemberID:  testMemberID,
		Email:     "talaba@example.uz",
	})
	store.SeedPlan(db_models.Plan{
		BaseModel:  db_models.BaseModel{ID: uuid.New()},
		Code:       "starter",
		Name:       "Starter",
		Period:     db_models.PeriodMonth,
		PriceMinor: starterPrice,
		Currency:   "UZS",
		IsActive:   true,
	})
	store.SeedPackage(db_models.MinutePackage{
		BaseModel:  db_models.BaseModel{ID: uuid.New()},
		Code:       "pack_300",
		Name:       "300 daqiqa",
		Minutes:    packMinutes,
		PriceMinor: packPrice,
		Currency:   "UZS",
		IsActive:   true,
	})
	return store, accountID
}

func newTestService(store repositories.IMerchantStore) MerchantService {
	return NewMerchantService(store, MerchantConfig{}, zap.NewNop())
}

func createParams(id string, account paycom.Account, amount int64) paycom.CreateParams {
	return paycom.CreateParams{ID: id, Time: testPaycomTime, Amount: amount, Account: account}
}

func TestCheckPerformTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("correct plan amount is allowed", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		res, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: planAccount})
		require.NoError(t, err)
		require.True(t, res.Allow)
	})

	t.Run("wrong amount is rejected", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: 5000000, Account: planAccount})
		requirePaycomCode(t, err, -31001)
	})

	t.Run("both plan and package set", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		bad := paycom.Account{UserID: testMemberID, PlanID: "starter", PackageID: "pack_300"}
		_, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: bad})
		requirePaycomCode(t, err, -31051)
	})

	t.Run("neither plan nor package set", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		bad := paycom.Account{UserID: testMemberID, PlanID: "0", PackageID: "0"}
		_, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: bad})
		requirePaycomCode(t, err, -31051)
	})

	t.Run("unknown user", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		bad := paycom.Account{UserID: "999999", PlanID: "starter", PackageID: "0"}
		_, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: bad})
		requirePaycomCode(t, err, -31050)
	})

	t.Run("unknown plan and package", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{
			Amount:  starterPrice,
			Account: paycom.Account{UserID: testMemberID, PlanID: "enterprise", PackageID: "0"},
		})
		requirePaycomCode(t, err, -31052)

		_, err = svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{
			Amount:  packPrice,
			Account: paycom.Account{UserID: testMemberID, PlanID: "0", PackageID: "pack_9000"},
		})
		requirePaycomCode(t, err, -31053)
	})

	t.Run("order with an active transaction is in progress", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("tx-1", planAccount, starterPrice))
		require.NoError(t, err)

		_, err = svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: planAccount})
		requirePaycomCode(t, err, -31055)
	})

	t.Run("paid order is already paid", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("tx-1", planAccount, starterPrice))
		require.NoError(t, err)
		_, err = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "tx-1"})
		require.NoError(t, err)

		_, err = svc.CheckPerformTransaction(ctx, paycom.CheckPerformParams{Amount: starterPrice, Account: planAccount})
		requirePaycomCode(t, err, -31054)
	})
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("creates in state 1 with merchant create_time", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		res, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)
		require.Equal(t, paycom.StateCreated, res.State)
		require.NotEmpty(t, res.Transaction)
		require.Greater(t, res.CreateTime, int64(0))
	})

	t.Run("replay with identical params returns the same snapshot", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		first, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		second, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("replay with different amount", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, createParams("abc123", planAccount, 5000000))
		requirePaycomCode(t, err, -31001)
	})

	t.Run("replay with different account", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, paycom.CreateParams{
			ID: "abc123", Time: testPaycomTime, Amount: starterPrice, Account: pkgAccount,
		})
		requirePaycomCode(t, err, -31056)
	})

	t.Run("second id against a busy order", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("tx-1", planAccount, starterPrice))
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, createParams("tx-2", planAccount, starterPrice))
		requirePaycomCode(t, err, -31055)
	})

	t.Run("different orders do not conflict", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("tx-1", planAccount, starterPrice))
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, createParams("tx-2", pkgAccount, packPrice))
		require.NoError(t, err)
	})

	t.Run("losing the insert race replays the winner's snapshot", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		store.Core().LoseCreateRace = true
		res, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)
		require.Equal(t, paycom.StateCreated, res.State)

		txn, err := store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		require.Equal(t, txn.OrderID, res.Transaction)
		require.Equal(t, txn.CreateTime, res.CreateTime)
	})

	t.Run("concurrent creates book the order exactly once", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		const workers = 16
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := "race-" + string(rune('a'+i))
				_, errs[i] = svc.CreateTransaction(ctx, createParams(id, planAccount, starterPrice))
			}(i)
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
			} else {
				requirePaycomCode(t, err, -31055)
			}
		}
		require.Equal(t, 1, created)
	})
}

func TestPerformTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("completes and fulfills exactly once", func(t *testing.T) {
		store, accountID := newTestStore()
		svc := newTestService(store)

		created, err := svc.CreateTransaction(ctx, createParams("abc123", pkgAccount, packPrice))
		require.NoError(t, err)

		res, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)
		require.Equal(t, paycom.StateCompleted, res.State)
		require.Greater(t, res.PerformTime, int64(0))
		require.Equal(t, created.Transaction, res.Transaction)
		require.Equal(t, 1, store.Core().FulfilledOrders[res.Transaction])

		// Minutes credited to the buyer.
		acc, err := store.FindAccountByMemberID(ctx, testMemberID)
		require.NoError(t, err)
		require.EqualValues(t, packMinutes, acc.MinuteBalance)
		_ = accountID

		// Retried perform returns the stored snapshot without a second credit.
		again, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)
		require.Equal(t, res, again)
		require.Equal(t, 1, store.Core().FulfilledOrders[res.Transaction])
	})

	t.Run("unknown id", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "missing"})
		requirePaycomCode(t, err, -31003)
	})

	t.Run("cancelled transaction cannot be performed", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)
		_, err = svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonUnknown})
		require.NoError(t, err)

		_, err = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		requirePaycomCode(t, err, -31008)

		txn, err := store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		require.Equal(t, paycom.StateCancelled, txn.State)
	})

	t.Run("expired transaction auto-cancels with timeout reason", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		// Age the record beyond the 12 hour window.
		txn, err := store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		txn.CreateTime = time.Now().UnixMilli() - DefaultTransactionTimeoutMs - time.Minute.Milliseconds()
		require.NoError(t, store.SaveTransaction(ctx, txn))

		_, err = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		requirePaycomCode(t, err, -31008)

		txn, err = store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		require.Equal(t, paycom.StateCancelled, txn.State)
		require.NotNil(t, txn.Reason)
		require.Equal(t, paycom.ReasonTimeout, *txn.Reason)
		require.Greater(t, txn.CancelTime, int64(0))
		require.Zero(t, store.Core().FulfilledOrders[txn.OrderID])

		// The cancel survives the failed perform: the provider sees the
		// cancelled state with the timeout reason on the next check.
		check, err := svc.CheckTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)
		require.Equal(t, paycom.StateCancelled, check.State)
		require.NotNil(t, check.Reason)
		require.Equal(t, paycom.ReasonTimeout, *check.Reason)
	})

	t.Run("failed fulfillment keeps the transaction created", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", pkgAccount, packPrice))
		require.NoError(t, err)

		store.Core().FailFulfill = true
		_, err = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.Error(t, err)

		txn, err := store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		require.Equal(t, paycom.StateCreated, txn.State)

		// The provider retries and the order fulfills.
		store.Core().FailFulfill = false
		res, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)
		require.Equal(t, paycom.StateCompleted, res.State)
	})

	t.Run("concurrent performs fulfill once", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		created, err := svc.CreateTransaction(ctx, createParams("abc123", pkgAccount, packPrice))
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
			}()
		}
		wg.Wait()

		require.Equal(t, 1, store.Core().FulfilledOrders[created.Transaction])
		acc, err := store.FindAccountByMemberID(ctx, testMemberID)
		require.NoError(t, err)
		require.EqualValues(t, packMinutes, acc.MinuteBalance)
	})
}

func TestCancelTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a created transaction", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		res, err := svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonDebitFailed})
		require.NoError(t, err)
		require.Equal(t, paycom.StateCancelled, res.State)
		require.Greater(t, res.CancelTime, int64(0))
		require.Zero(t, store.Core().ReversedOrders[res.Transaction])
	})

	t.Run("cancel after complete reverses fulfillment", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", pkgAccount, packPrice))
		require.NoError(t, err)
		performed, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)

		res, err := svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonRefund})
		require.NoError(t, err)
		require.Equal(t, paycom.StateCancelledAfterComplete, res.State)
		require.Equal(t, 1, store.Core().ReversedOrders[performed.Transaction])

		acc, err := store.FindAccountByMemberID(ctx, testMemberID)
		require.NoError(t, err)
		require.Zero(t, acc.MinuteBalance)
	})

	t.Run("reversal shortfall is recorded when minutes were spent", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", pkgAccount, packPrice))
		require.NoError(t, err)
		_, err = svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)

		// The pipeline consumed part of the balance before the refund.
		acc, err := store.FindAccountByMemberID(ctx, testMemberID)
		require.NoError(t, err)
		store.SeedAccount(db_models.Account{
			BaseModel:     db_models.BaseModel{ID: acc.ID},
			MemberID:      acc.MemberID,
			Email:         acc.Email,
			MinuteBalance: 100,
		})

		_, err = svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonRefund})
		require.NoError(t, err)

		txn, err := store.FindTransactionByPaycomID(ctx, "abc123")
		require.NoError(t, err)
		require.EqualValues(t, 200, txn.ReversalShortfall)

		acc, err = store.FindAccountByMemberID(ctx, testMemberID)
		require.NoError(t, err)
		require.Zero(t, acc.MinuteBalance)
	})

	t.Run("idempotent replay returns the same cancel_time", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)

		first, err := svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonDebitFailed})
		require.NoError(t, err)

		second, err := svc.CancelTransaction(ctx, paycom.CancelParams{ID: "abc123", Reason: paycom.ReasonUnknown})
		require.NoError(t, err)
		require.Equal(t, first.CancelTime, second.CancelTime)
		require.Equal(t, first.State, second.State)
	})

	t.Run("unknown id", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CancelTransaction(ctx, paycom.CancelParams{ID: "missing", Reason: paycom.ReasonUnknown})
		requirePaycomCode(t, err, -31003)
	})
}

func TestCheckTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshot of a completed transaction", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		created, err := svc.CreateTransaction(ctx, createParams("abc123", planAccount, starterPrice))
		require.NoError(t, err)
		performed, err := svc.PerformTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)

		res, err := svc.CheckTransaction(ctx, paycom.PerformParams{ID: "abc123"})
		require.NoError(t, err)
		require.Equal(t, created.CreateTime, res.CreateTime)
		require.Equal(t, performed.PerformTime, res.PerformTime)
		require.Zero(t, res.CancelTime)
		require.Equal(t, paycom.StateCompleted, res.State)
		require.Nil(t, res.Reason)
	})

	t.Run("unknown id", func(t *testing.T) {
		store, _ := newTestStore()
		svc := newTestService(store)

		_, err := svc.CheckTransaction(ctx, paycom.PerformParams{ID: "missing"})
		requirePaycomCode(t, err, -31003)
	})
}

func TestGetStatement(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	svc := newTestService(store)

	mk := func(id string, at int64, account paycom.Account, amount int64) {
		_, err := svc.CreateTransaction(ctx, paycom.CreateParams{ID: id, Time: at, Amount: amount, Account: account})
		require.NoError(t, err)
		// Free the order for the next create.
		_, err = svc.CancelTransaction(ctx, paycom.CancelParams{ID: id, Reason: paycom.ReasonUnknown})
		require.NoError(t, err)
	}

	mk("tx-b", 2000, planAccount, starterPrice)
	mk("tx-a", 1000, pkgAccount, packPrice)
	mk("tx-c", 3000, planAccount, starterPrice)

	t.Run("inclusive range ordered by provider time", func(t *testing.T) {
		res, err := svc.GetStatement(ctx, paycom.StatementParams{From: 1000, To: 2000})
		require.NoError(t, err)
		require.Len(t, res.Transactions, 2)
		require.Equal(t, "tx-a", res.Transactions[0].ID)
		require.Equal(t, "tx-b", res.Transactions[1].ID)
		require.Equal(t, pkgAccount, res.Transactions[0].Account)
	})

	t.Run("empty range", func(t *testing.T) {
		res, err := svc.GetStatement(ctx, paycom.StatementParams{From: 4000, To: 5000})
		require.NoError(t, err)
		require.Empty(t, res.Transactions)
	})
}

func requirePaycomCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	pe, ok := err.(*paycom.Error)
	require.True(t, ok, "expected a paycom error, got %v", err)
	require.Equal(t, code, pe.Code)
}
