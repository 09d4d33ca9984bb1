package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ovoz/internal/models/db_models"
)

// MemoryMerchantStore is an in-memory IMerchantStore for tests. A single
// mutex held for the whole InTx scope gives it the same serialization
// guarantees the Postgres store gets from row locks, and an error from
// the InTx callback restores the pre-transaction state the way
// db.Transaction rolls back.
type MemoryMerchantStore struct {
	core *MemoryCore
	inTx bool
}

type MemoryCore struct {
	mu sync.Mutex

	accounts map[uuid.UUID]*db_models.Account
	plans    map[string]*db_models.Plan
	packages map[string]*db_models.MinutePackage
	byPaycom map[string]*db_models.MerchantTransaction

	// FulfilledOrders counts FulfillOrder calls per internal order id so
	// tests can assert exactly-once fulfillment.
	FulfilledOrders map[string]int
	ReversedOrders  map[string]int
	// FailFulfill makes the next FulfillOrder calls fail.
	FailFulfill bool
	// LoseCreateRace makes the next CreateTransaction lose an insert
	// race: a rival row for the same provider id commits in another
	// transaction and the insert reports a duplicate.
	LoseCreateRace bool

	rival *db_models.MerchantTransaction
}

type coreSnapshot struct {
	accounts  map[uuid.UUID]*db_models.Account
	byPaycom  map[string]*db_models.MerchantTransaction
	fulfilled map[string]int
	reversed  map[string]int
}

func (c *MemoryCore) snapshot() coreSnapshot {
	snap := coreSnapshot{
		accounts:  make(map[uuid.UUID]*db_models.Account, len(c.accounts)),
		byPaycom:  make(map[string]*db_models.MerchantTransaction, len(c.byPaycom)),
		fulfilled: make(map[string]int, len(c.FulfilledOrders)),
		reversed:  make(map[string]int, len(c.ReversedOrders)),
	}
	for k, v := range c.accounts {
		cp := *v
		snap.accounts[k] = &cp
	}
	for k, v := range c.byPaycom {
		cp := *v
		snap.byPaycom[k] = &cp
	}
	for k, v := range c.FulfilledOrders {
		snap.fulfilled[k] = v
	}
	for k, v := range c.ReversedOrders {
		snap.reversed[k] = v
	}
	return snap
}

func (c *MemoryCore) restore(snap coreSnapshot) {
	c.accounts = snap.accounts
	c.byPaycom = snap.byPaycom
	c.FulfilledOrders = snap.fulfilled
	c.ReversedOrders = snap.reversed
	if c.rival != nil {
		// A rival create committed outside this transaction survives
		// the rollback.
		c.byPaycom[c.rival.PaycomID] = c.rival
		c.rival = nil
	}
}

func NewMemoryMerchantStore() *MemoryMerchantStore {
	return &MemoryMerchantStore{core: &MemoryCore{
		accounts:        make(map[uuid.UUID]*db_models.Account),
		plans:           make(map[string]*db_models.Plan),
		packages:        make(map[string]*db_models.MinutePackage),
		byPaycom:        make(map[string]*db_models.MerchantTransaction),
		FulfilledOrders: make(map[string]int),
		ReversedOrders:  make(map[string]int),
	}}
}

func (s *MemoryMerchantStore) Core() *MemoryCore { return s.core }

func (s *MemoryMerchantStore) SeedAccount(a db_models.Account) {
	s.core.accounts[a.ID] = &a
}

func (s *MemoryMerchantStore) SeedPlan(p db_models.Plan) {
	s.core.plans[p.Code] = &p
}

func (s *MemoryMerchantStore) SeedPackage(p db_models.MinutePackage) {
	s.core.packages[p.Code] = &p
}

func (s *MemoryMerchantStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.core.mu.Lock()
	return s.core.mu.Unlock
}

func (s *MemoryMerchantStore) InTx(ctx context.Context, fn func(store IMerchantStore) error) error {
	if s.inTx {
		return fn(s)
	}
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	snap := s.core.snapshot()
	if err := fn(&MemoryMerchantStore{core: s.core, inTx: true}); err != nil {
		s.core.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryMerchantStore) LockAccount(ctx context.Context, accountID uuid.UUID) error {
	return nil
}

func (s *MemoryMerchantStore) FindAccountByMemberID(ctx context.Context, memberID string) (*db_models.Account, error) {
	defer s.lock()()
	for _, a := range s.core.accounts {
		if a.MemberID == memberID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryMerchantStore) FindPlanByCode(ctx context.Context, code string) (*db_models.Plan, error) {
	defer s.lock()()
	p, ok := s.core.plans[code]
	if !ok || !p.IsActive {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryMerchantStore) FindPackageByCode(ctx context.Context, code string) (*db_models.MinutePackage, error) {
	defer s.lock()()
	p, ok := s.core.packages[code]
	if !ok || !p.IsActive {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryMerchantStore) FindTransactionByPaycomID(ctx context.Context, paycomID string) (*db_models.MerchantTransaction, error) {
	defer s.lock()()
	t, ok := s.core.byPaycom[paycomID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryMerchantStore) FindActiveTransactionForOrder(ctx context.Context, ref OrderRef) (*db_models.MerchantTransaction, error) {
	defer s.lock()()
	for _, t := range s.core.byPaycom {
		if sameOrder(t, ref) && t.State.Active() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryMerchantStore) HasCompletedTransactionForOrder(ctx context.Context, ref OrderRef) (bool, error) {
	defer s.lock()()
	for _, t := range s.core.byPaycom {
		if sameOrder(t, ref) && t.State == 2 {
			return true, nil
		}
	}
	return false, nil
}

func sameOrder(t *db_models.MerchantTransaction, ref OrderRef) bool {
	if t.AccountID != ref.AccountID {
		return false
	}
	if ref.PlanCode != "" {
		return t.PlanCode == ref.PlanCode
	}
	return t.PackageCode == ref.PackageCode
}

func (s *MemoryMerchantStore) CreateTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error {
	defer s.lock()()
	if _, ok := s.core.byPaycom[txn.PaycomID]; ok {
		return ErrDuplicateTransaction
	}
	if s.core.LoseCreateRace {
		s.core.LoseCreateRace = false
		rival := *txn
		rival.ID = uuid.New()
		rival.OrderID = uuid.NewString()
		s.core.rival = &rival
		return ErrDuplicateTransaction
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	cp := *txn
	s.core.byPaycom[txn.PaycomID] = &cp
	return nil
}

func (s *MemoryMerchantStore) SaveTransaction(ctx context.Context, txn *db_models.MerchantTransaction) error {
	defer s.lock()()
	cp := *txn
	s.core.byPaycom[txn.PaycomID] = &cp
	return nil
}

func (s *MemoryMerchantStore) ListTransactionsByPaycomTime(ctx context.Context, from, to int64) ([]db_models.MerchantTransaction, error) {
	defer s.lock()()
	var out []db_models.MerchantTransaction
	for _, t := range s.core.byPaycom {
		if t.PaycomTime >= from && t.PaycomTime <= to {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaycomTime < out[j].PaycomTime })
	return out, nil
}

func (s *MemoryMerchantStore) FulfillOrder(ctx context.Context, txn *db_models.MerchantTransaction) error {
	defer s.lock()()
	if s.core.FailFulfill {
		return context.DeadlineExceeded
	}
	s.core.FulfilledOrders[txn.OrderID]++
	if txn.PackageCode != "" {
		if pkg, ok := s.core.packages[txn.PackageCode]; ok {
			if a, ok := s.core.accounts[txn.AccountID]; ok {
				a.MinuteBalance += pkg.Minutes
			}
		}
	}
	return nil
}

func (s *MemoryMerchantStore) ReverseOrder(ctx context.Context, txn *db_models.MerchantTransaction) (int64, error) {
	defer s.lock()()
	s.core.ReversedOrders[txn.OrderID]++
	if txn.PackageCode == "" {
		return 0, nil
	}
	pkg, ok := s.core.packages[txn.PackageCode]
	if !ok {
		return 0, nil
	}
	a, ok := s.core.accounts[txn.AccountID]
	if !ok {
		return 0, nil
	}
	debit := pkg.Minutes
	var shortfall int64
	if a.MinuteBalance < debit {
		shortfall = debit - a.MinuteBalance
		debit = a.MinuteBalance
	}
	a.MinuteBalance -= debit
	return shortfall, nil
}
