package classify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

func TestBatchApplier_AssignsLearnedCategories(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")
	db.addCategory(userID, "Transport")
	coffee := db.addTransaction(userID, "Coffee", "3.20", money.EUR)
	bus := db.addTransaction(userID, "Bus ticket", "2.00", money.EUR)

	cache := newFakeCache(map[string]string{"Coffee": "Food", "Bus ticket": "Transport"})
	applier := classify.NewBatchApplier(db, cache, rates())

	res, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, "Food", db.categoryOf(userID, coffee))
	assert.Equal(t, "Transport", db.categoryOf(userID, bus))
	assert.Equal(t, 1, db.saves)
}

func TestBatchApplier_UnknownLabelStaysUnset(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")
	coffee := db.addTransaction(userID, "Coffee", "3.20", money.EUR)
	misc := db.addTransaction(userID, "Misc Item", "9.99", money.EUR)

	applier := classify.NewBatchApplier(db, newFakeCache(map[string]string{"Coffee": "Food"}), rates())

	res, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Assigned)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, "Food", db.categoryOf(userID, coffee))
	assert.Empty(t, db.categoryOf(userID, misc))
}

func TestBatchApplier_NeverFabricatesCategories(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")
	txID := db.addTransaction(userID, "Cinema", "12.00", money.EUR)

	applier := classify.NewBatchApplier(db, newFakeCache(map[string]string{"Cinema": "Entertainment"}), rates())

	res, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)

	assert.Zero(t, res.Assigned)
	assert.Equal(t, 1, res.MissingCategory)
	assert.Empty(t, db.categoryOf(userID, txID))
	assert.Len(t, db.cats[userID], 1)
}

func TestBatchApplier_ResolvesLabelsLearnedBeforeTransactionExisted(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Groceries")

	cache := newFakeCache(nil)
	require.NoError(t, cache.UpsertBatch(context.Background(), map[string]string{"LIDL 123": "Groceries"}))

	late := db.addTransaction(userID, "  LIDL 123 ", "45.10", money.EUR)

	_, err := classify.NewBatchApplier(db, cache, rates()).Apply(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, "Groceries", db.categoryOf(userID, late))
}

func TestBatchApplier_ConvertsToReportingCurrency(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.USD)
	db.addCategory(userID, "Travel")
	txID := db.addTransaction(userID, "Hotel", "100", money.EUR)

	applier := classify.NewBatchApplier(db, newFakeCache(nil), rates(rate(money.EUR, money.USD, "1.18")))

	res, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, res.Unconvertible)

	got := db.transaction(userID, txID)
	require.NotNil(t, got.BaseAmount)
	assert.Equal(t, "118.00", got.BaseAmount.StringFixed(2))
	assert.Equal(t, money.USD, got.BaseCurrency)
	assert.Equal(t, money.EUR, got.Currency)
	assert.Equal(t, "100", got.Amount.String())
}

func TestBatchApplier_UnconvertibleRowDoesNotBlockBatch(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")

	var ids []uuid.UUID
	for _, label := range []string{"Bakery", "Cafe", "Deli"} {
		ids = append(ids, db.addTransaction(userID, label, "10.00", money.GBP))
	}

	odd := db.addTransaction(userID, "Kiosk", "10.00", money.SEK)

	cache := newFakeCache(map[string]string{"Bakery": "Food", "Cafe": "Food", "Deli": "Food", "Kiosk": "Food"})
	applier := classify.NewBatchApplier(db, cache, rates(rate(money.GBP, money.EUR, "1.1652")))

	res, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Assigned)
	require.Len(t, res.Unconvertible, 1)
	assert.Equal(t, classify.ConversionUnavailable{TransactionID: odd, From: money.SEK, To: money.EUR}, res.Unconvertible[0])

	for _, id := range ids {
		got := db.transaction(userID, id)
		assert.Equal(t, "Food", db.categoryOf(userID, id))
		assert.Equal(t, money.EUR, got.BaseCurrency)
		assert.Equal(t, "11.65", got.BaseAmount.StringFixed(2))
	}

	kiosk := db.transaction(userID, odd)
	assert.Equal(t, "Food", db.categoryOf(userID, odd))
	assert.Equal(t, money.Unconvertible, kiosk.BaseCurrency)
	assert.True(t, kiosk.BaseAmount.IsZero())
}

func TestBatchApplier_RerunWritesNothing(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")
	db.addTransaction(userID, "Coffee", "3.20", money.EUR)
	db.addTransaction(userID, "Misc Item", "1.00", money.EUR)

	applier := classify.NewBatchApplier(db, newFakeCache(map[string]string{"Coffee": "Food"}), rates())

	first, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Written)

	second, err := applier.Apply(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, second.Written)
	assert.Zero(t, second.Assigned)
}

func TestBatchApplier_Failures(t *testing.T) {
	userID := uuid.New()
	someTx := []*transaction.Transaction{{ID: uuid.New(), Label: "Coffee", Currency: money.EUR}}
	someCats := []*category.Category{{ID: uuid.New(), Label: "Food"}}

	type testCase struct {
		name    string
		setup   func(tx *classify.MockApplyTx)
		wantErr error
	}

	tests := []testCase{
		{
			name: "UserNotFound",
			setup: func(tx *classify.MockApplyTx) {
				tx.EXPECT().LoadUser(gomock.Any()).Return(nil, user.ErrNotFound)
			},
			wantErr: classify.ErrUserNotFound,
		},
		{
			name: "NoTransactions",
			setup: func(tx *classify.MockApplyTx) {
				tx.EXPECT().LoadUser(gomock.Any()).Return(&user.User{ID: userID, BaseCurrency: money.EUR}, nil)
				tx.EXPECT().LoadUserTransactions(gomock.Any()).Return(nil, nil)
			},
			wantErr: classify.ErrNoTransactions,
		},
		{
			name: "NoCategories",
			setup: func(tx *classify.MockApplyTx) {
				tx.EXPECT().LoadUser(gomock.Any()).Return(&user.User{ID: userID, BaseCurrency: money.EUR}, nil)
				tx.EXPECT().LoadUserTransactions(gomock.Any()).Return(someTx, nil)
				tx.EXPECT().LoadUserCategories(gomock.Any()).Return(nil, nil)
			},
			wantErr: classify.ErrNoCategories,
		},
		{
			name: "SaveFails",
			setup: func(tx *classify.MockApplyTx) {
				tx.EXPECT().LoadUser(gomock.Any()).Return(&user.User{ID: userID, BaseCurrency: money.EUR}, nil)
				tx.EXPECT().LoadUserTransactions(gomock.Any()).Return(someTx, nil)
				tx.EXPECT().LoadUserCategories(gomock.Any()).Return(someCats, nil)
				tx.EXPECT().SaveChanges(gomock.Any(), gomock.Len(1)).Return(errors.New("serialization failure"))
			},
			wantErr: classify.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := classify.NewMockStore(ctrl)
			tx := classify.NewMockApplyTx(ctrl)
			cache := classify.NewMockCache(ctrl)

			store.EXPECT().BeginApply(gomock.Any(), userID).Return(tx, nil)
			tx.EXPECT().Rollback().Return(nil)
			cache.EXPECT().LookupBatch(gomock.Any(), gomock.Any()).Return(map[string]string{}, nil).AnyTimes()
			tt.setup(tx)

			res, err := classify.NewBatchApplier(store, cache, rates()).Apply(context.Background(), userID)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBatchApplier_MissingUserReportedBeforeRates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rateSource := classify.NewMockRateSource(ctrl)
	rateSource.EXPECT().Snapshot(gomock.Any()).Return(nil, errors.New("rates table unavailable")).AnyTimes()

	applier := classify.NewBatchApplier(newFakeDB(), newFakeCache(nil), rateSource)

	res, err := applier.Apply(context.Background(), uuid.New())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, classify.ErrUserNotFound)
	assert.True(t, classify.IsTerminal(err))
}

func TestBatchApplier_RatesFailureWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")
	coffee := db.addTransaction(userID, "Coffee", "3.20", money.EUR)

	rateSource := classify.NewMockRateSource(ctrl)
	rateSource.EXPECT().Snapshot(gomock.Any()).Return(nil, errors.New("rates table unavailable"))

	applier := classify.NewBatchApplier(db, newFakeCache(map[string]string{"Coffee": "Food"}), rateSource)

	res, err := applier.Apply(context.Background(), userID)
	assert.Nil(t, res)
	require.ErrorContains(t, err, "loading exchange rates")
	assert.Empty(t, db.categoryOf(userID, coffee))
	assert.Zero(t, db.saves)
}

func TestBatchApplier_HonoursCancellation(t *testing.T) {
	db := newFakeDB()
	userID := db.addUser(money.EUR)
	db.addCategory(userID, "Food")

	for range 5 {
		db.addTransaction(userID, "Coffee", "1.00", money.EUR)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applier := classify.NewBatchApplier(db, newFakeCache(map[string]string{"Coffee": "Food"}), rates(), classify.WithBatchSize(2))

	_, err := applier.Apply(ctx, userID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, db.saves)
}
