package classify_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

// fakeDB is an in-memory classify.Store with the same commit semantics as
// the Postgres one: changes become visible only on SaveChanges.
type fakeDB struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
	txs   map[uuid.UUID][]*transaction.Transaction
	cats  map[uuid.UUID][]*category.Category
	saves int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users: map[uuid.UUID]*user.User{},
		txs:   map[uuid.UUID][]*transaction.Transaction{},
		cats:  map[uuid.UUID][]*category.Category{},
	}
}

func (db *fakeDB) addUser(base money.Currency) uuid.UUID {
	id := uuid.New()
	db.users[id] = &user.User{ID: id, Email: id.String() + "@example.com", BaseCurrency: base}

	return id
}

func (db *fakeDB) addCategory(userID uuid.UUID, label string) uuid.UUID {
	c := &category.Category{ID: uuid.New(), UserID: userID, Label: label}
	db.cats[userID] = append(db.cats[userID], c)

	return c.ID
}

func (db *fakeDB) addTransaction(userID uuid.UUID, label, amount string, currency money.Currency) uuid.UUID {
	t := &transaction.Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		Label:    label,
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
		Type:     transaction.TypeExpense,
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	db.txs[userID] = append(db.txs[userID], t)

	return t.ID
}

func (db *fakeDB) transaction(userID, id uuid.UUID) transaction.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, t := range db.txs[userID] {
		if t.ID == id {
			return *t
		}
	}

	return transaction.Transaction{}
}

func (db *fakeDB) categoryOf(userID, id uuid.UUID) string {
	t := db.transaction(userID, id)
	if t.CategoryID == nil {
		return ""
	}

	for _, c := range db.cats[userID] {
		if c.ID == *t.CategoryID {
			return c.Label
		}
	}

	return "?"
}

func (db *fakeDB) BeginApply(_ context.Context, userID uuid.UUID) (classify.ApplyTx, error) {
	db.mu.Lock()

	return &fakeApplyTx{db: db, userID: userID}, nil
}

type fakeApplyTx struct {
	db     *fakeDB
	userID uuid.UUID
	done   bool
}

func (f *fakeApplyTx) LoadUser(context.Context) (*user.User, error) {
	u, ok := f.db.users[f.userID]
	if !ok {
		return nil, user.ErrNotFound
	}

	cp := *u

	return &cp, nil
}

func (f *fakeApplyTx) LoadUserTransactions(context.Context) ([]*transaction.Transaction, error) {
	out := make([]*transaction.Transaction, 0, len(f.db.txs[f.userID]))
	for _, t := range f.db.txs[f.userID] {
		cp := *t
		out = append(out, &cp)
	}

	return out, nil
}

func (f *fakeApplyTx) LoadUserCategories(context.Context) ([]*category.Category, error) {
	return f.db.cats[f.userID], nil
}

func (f *fakeApplyTx) SaveChanges(_ context.Context, changes []classify.Change) error {
	for _, c := range changes {
		for _, t := range f.db.txs[f.userID] {
			if t.ID != c.TransactionID {
				continue
			}

			if c.AssignCategory != nil && t.CategoryID == nil {
				id := *c.AssignCategory
				t.CategoryID = &id
			}

			base := c.BaseAmount
			t.BaseAmount = &base
			t.BaseCurrency = c.BaseCurrency
		}
	}

	f.db.saves++
	f.release()

	return nil
}

func (f *fakeApplyTx) Rollback() error {
	f.release()
	return nil
}

func (f *fakeApplyTx) release() {
	if f.done {
		return
	}

	f.done = true
	f.db.mu.Unlock()
}

type fakeCache struct {
	mu      sync.Mutex
	matches map[string]string
}

func newFakeCache(pairs map[string]string) *fakeCache {
	c := &fakeCache{matches: map[string]string{}}
	for k, v := range pairs {
		c.matches[k] = v
	}

	return c
}

func (c *fakeCache) LookupBatch(_ context.Context, labels []string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]string{}

	for _, l := range labels {
		if v, ok := c.matches[l]; ok {
			out[l] = v
		}
	}

	return out, nil
}

func (c *fakeCache) UpsertBatch(_ context.Context, matches map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range matches {
		c.matches[k] = v
	}

	return nil
}

type staticRates struct {
	snapshot *money.Snapshot
}

func (s staticRates) Snapshot(context.Context) (*money.Snapshot, error) {
	return s.snapshot, nil
}

func rates(rs ...money.Rate) staticRates {
	return staticRates{snapshot: money.NewSnapshot(time.Now(), rs)}
}

func rate(from, to money.Currency, r string) money.Rate {
	return money.Rate{Base: from, Target: to, Rate: decimal.RequireFromString(r)}
}
