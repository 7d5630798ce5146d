package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_Create(t *testing.T) {
	userID := uuid.New()

	type args struct {
		params transaction.CreateParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *transaction.MockRepository)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{
				params: transaction.CreateParams{
					Label:    "  Coffee ",
					Amount:   amount("-3.50"),
					Currency: money.EUR,
					Type:     transaction.TypeExpense,
					Date:     time.Date(2023, 10, 27, 0, 0, 0, 0, time.UTC),
				},
			},
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					CreateTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, tx *transaction.Transaction) error {
						assert.Equal(t, "Coffee", tx.Label)
						assert.Equal(t, "3.5", tx.Amount.String())
						assert.Equal(t, userID, tx.UserID)
						tx.ID = uuid.New()
						tx.CreatedAt = time.Now()
						return nil
					})
			},
			wantErr: false,
		},
		{
			name: "RepoError",
			args: args{
				params: transaction.CreateParams{
					Amount: amount("5"),
				},
			},
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					CreateTransaction(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := transaction.NewService(repo)
			got, err := svc.Create(context.Background(), userID, tt.args.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			assert.NoError(t, err)
			assert.NotNil(t, got)
			assert.NotEmpty(t, got.ID)
		})
	}
}

func TestService_List(t *testing.T) {
	filter := transaction.ListFilter{UserID: uuid.New(), Uncategorized: true}

	type testCase struct {
		name      string
		setupMock func(m *transaction.MockRepository)
		wantLen   int
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					ListTransactions(gomock.Any(), filter).
					Return([]*transaction.Transaction{
						{ID: uuid.New()},
						{ID: uuid.New()},
					}, nil)
			},
			wantLen: 2,
		},
		{
			name: "Error",
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					ListTransactions(gomock.Any(), filter).
					Return(nil, errors.New("list error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := transaction.NewService(repo)
			got, err := svc.List(context.Background(), filter)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestService_ImportBatch_NoConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	itx := transaction.NewMockImportTx(ctrl)
	svc := transaction.NewService(repo)
	userID := uuid.New()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	params := []transaction.CreateParams{
		{
			Label:    "COFFEE SHOP",
			Amount:   amount("10.00"),
			Currency: money.EUR,
			Type:     transaction.TypeExpense,
			Date:     date,
		},
	}

	repo.EXPECT().BeginImport(gomock.Any(), userID, date, date).Return(itx, nil)
	itx.EXPECT().FindDuplicates(gomock.Any(), params).Return(nil, nil)
	itx.EXPECT().CreateTransactions(gomock.Any(), gomock.Any()).Return(nil)
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	result, err := svc.ImportBatch(context.Background(), userID, params)
	require.NoError(t, err)
	require.Len(t, result.Imported, 1)
	assert.Equal(t, userID, result.Imported[0].UserID)
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, result.New)
}

func TestService_ImportBatch_WithConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	itx := transaction.NewMockImportTx(ctrl)
	svc := transaction.NewService(repo)
	userID := uuid.New()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	params := []transaction.CreateParams{
		{
			Label:    "COFFEE SHOP",
			Amount:   amount("10"),
			Currency: money.EUR,
			Type:     transaction.TypeExpense,
			Date:     date,
		},
		{
			Label:    "LUNCH PLACE",
			Amount:   amount("20"),
			Currency: money.EUR,
			Type:     transaction.TypeExpense,
			Date:     date,
		},
	}

	existing := &transaction.Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		Amount:   amount("10.00"),
		Currency: money.EUR,
		Type:     transaction.TypeExpense,
		Label:    "COFFEE SHOP",
		Date:     date,
	}

	repo.EXPECT().BeginImport(gomock.Any(), userID, date, date).Return(itx, nil)
	itx.EXPECT().FindDuplicates(gomock.Any(), params).Return([]*transaction.Transaction{existing}, nil)
	itx.EXPECT().Rollback().Return(nil)

	result, err := svc.ImportBatch(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Empty(t, result.Imported)
	assert.Len(t, result.New, 1)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, params[0], result.Conflicts[0].Incoming)
	assert.Equal(t, existing, result.Conflicts[0].Existing)
}

func TestService_ImportBatch_SameLabelOtherCurrencyIsNotDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	itx := transaction.NewMockImportTx(ctrl)
	svc := transaction.NewService(repo)
	userID := uuid.New()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	params := []transaction.CreateParams{
		{Label: "Hotel", Amount: amount("100"), Currency: money.USD, Type: transaction.TypeExpense, Date: date},
	}

	existing := &transaction.Transaction{
		Label: "Hotel", Amount: amount("100"), Currency: money.EUR, Type: transaction.TypeExpense, Date: date,
	}

	repo.EXPECT().BeginImport(gomock.Any(), userID, date, date).Return(itx, nil)
	itx.EXPECT().FindDuplicates(gomock.Any(), params).Return([]*transaction.Transaction{existing}, nil)
	itx.EXPECT().CreateTransactions(gomock.Any(), gomock.Any()).Return(nil)
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	result, err := svc.ImportBatch(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Len(t, result.Imported, 1)
	assert.Empty(t, result.Conflicts)
}

func TestService_ImportBatch_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	svc := transaction.NewService(repo)

	result, err := svc.ImportBatch(context.Background(), uuid.New(), []transaction.CreateParams{})
	require.NoError(t, err)
	assert.Empty(t, result.Imported)
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, result.New)
}

func TestService_CreateBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	itx := transaction.NewMockImportTx(ctrl)
	svc := transaction.NewService(repo)
	userID := uuid.New()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	params := []transaction.CreateParams{
		{
			Label:    "COFFEE SHOP",
			Amount:   amount("10"),
			Currency: money.EUR,
			Type:     transaction.TypeExpense,
			Date:     date,
		},
	}

	repo.EXPECT().BeginImport(gomock.Any(), userID, date, date).Return(itx, nil)
	itx.EXPECT().CreateTransactions(gomock.Any(), gomock.Any()).Return(nil)
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	txs, err := svc.CreateBatch(context.Background(), userID, params)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, amount("10").Equal(txs[0].Amount))
	assert.Equal(t, transaction.TypeExpense, txs[0].Type)
}

func TestUnmatchedLabels(t *testing.T) {
	catID := uuid.New()

	txs := []*transaction.Transaction{
		{Label: " Coffee "},
		{Label: "Coffee"},
		{Label: "Bus ticket"},
		{Label: "Rent", CategoryID: &catID},
		{Label: "   "},
	}

	assert.Equal(t, []string{"Bus ticket", "Coffee"}, transaction.UnmatchedLabels(txs))
}

func TestTransaction_Signed(t *testing.T) {
	expense := &transaction.Transaction{Amount: amount("12.30"), Type: transaction.TypeExpense}
	income := &transaction.Transaction{Amount: amount("12.30"), Type: transaction.TypeIncome}

	assert.Equal(t, "-12.3", expense.Signed().String())
	assert.Equal(t, "12.3", income.Signed().String())
}
