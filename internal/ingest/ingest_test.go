package ingest_test

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

	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type mocks struct {
	txs        *ingest.MockTransactions
	categories *ingest.MockCategories
	dispatcher *ingest.MockDispatcher
}

func newService(t *testing.T) (*ingest.Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		txs:        ingest.NewMockTransactions(ctrl),
		categories: ingest.NewMockCategories(ctrl),
		dispatcher: ingest.NewMockDispatcher(ctrl),
	}

	return ingest.NewService(m.txs, m.categories, m.dispatcher, nil), m
}

func params(label string) transaction.CreateParams {
	return transaction.CreateParams{
		Label:    label,
		Amount:   decimal.RequireFromString("10"),
		Currency: money.EUR,
		Type:     transaction.TypeExpense,
		Date:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func stored(userID uuid.UUID, label string) *transaction.Transaction {
	return &transaction.Transaction{ID: uuid.New(), UserID: userID, Label: label}
}

func TestService_Import(t *testing.T) {
	userID := uuid.New()
	in := []transaction.CreateParams{params("Coffee"), params("Rent")}
	imported := []*transaction.Transaction{stored(userID, "Coffee"), stored(userID, "Rent")}

	type testCase struct {
		name      string
		setupMock func(m mocks)
		want      ingest.Classification
		wantID    string
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Requested",
			setupMock: func(m mocks) {
				m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).Return(&transaction.ImportResult{Imported: imported}, nil)
				m.txs.EXPECT().
					List(gomock.Any(), transaction.ListFilter{UserID: userID, Uncategorized: true}).
					Return(append(imported, stored(userID, "Older")), nil)
				m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food", "Housing"}, nil)
				m.dispatcher.EXPECT().
					Dispatch(gomock.Any(), userID, []string{"Coffee", "Older", "Rent"}, []string{"Food", "Housing"}).
					Return(&classify.DispatchResult{CorrelationID: "c-1", Sent: []string{"Older"}}, nil)
			},
			want:   ingest.ClassificationRequested,
			wantID: "c-1",
		},
		{
			name: "SkippedWhenAllKnown",
			setupMock: func(m mocks) {
				m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).Return(&transaction.ImportResult{Imported: imported}, nil)
				m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(imported, nil)
				m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food"}, nil)
				m.dispatcher.EXPECT().Dispatch(gomock.Any(), userID, gomock.Any(), gomock.Any()).
					Return(&classify.DispatchResult{Skipped: true}, nil)
			},
			want: ingest.ClassificationSkipped,
		},
		{
			name: "DispatchFailureKeepsTransactions",
			setupMock: func(m mocks) {
				m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).Return(&transaction.ImportResult{Imported: imported}, nil)
				m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(imported, nil)
				m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food"}, nil)
				m.dispatcher.EXPECT().Dispatch(gomock.Any(), userID, gomock.Any(), gomock.Any()).
					Return(nil, classify.ErrDispatchTransport)
			},
			want: ingest.ClassificationUnavailable,
		},
		{
			name: "CategoryLookupFailure",
			setupMock: func(m mocks) {
				m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).Return(&transaction.ImportResult{Imported: imported}, nil)
				m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(imported, nil)
				m.categories.EXPECT().Labels(gomock.Any(), userID).Return(nil, errors.New("db down"))
			},
			want: ingest.ClassificationUnavailable,
		},
		{
			name: "ImportError",
			setupMock: func(m mocks) {
				m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			out, err := svc.Import(context.Background(), userID, in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Len(t, out.Imported, 2)
			assert.Equal(t, tt.want, out.Classification)
			assert.Equal(t, tt.wantID, out.CorrelationID)

			if tt.want == ingest.ClassificationUnavailable {
				assert.NotEmpty(t, out.Reason)
			}
		})
	}
}

func TestService_Import_ConflictsStoreNothing(t *testing.T) {
	userID := uuid.New()
	svc, m := newService(t)

	in := []transaction.CreateParams{params("Coffee"), params("Rent")}
	conflict := transaction.Conflict{Incoming: in[0], Existing: stored(userID, "Coffee")}

	m.txs.EXPECT().ImportBatch(gomock.Any(), userID, in).
		Return(&transaction.ImportResult{New: in[1:], Conflicts: []transaction.Conflict{conflict}}, nil)

	out, err := svc.Import(context.Background(), userID, in)
	require.NoError(t, err)

	assert.True(t, out.HasConflicts())
	assert.Empty(t, out.Imported)
	assert.Equal(t, in[1:], out.New)
	assert.Empty(t, out.Classification)
}

func TestService_Import_NothingToStore(t *testing.T) {
	userID := uuid.New()
	svc, m := newService(t)

	m.txs.EXPECT().ImportBatch(gomock.Any(), userID, nil).Return(&transaction.ImportResult{}, nil)

	out, err := svc.Import(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Classification)
}

func TestService_Confirm(t *testing.T) {
	userID := uuid.New()
	svc, m := newService(t)

	in := []transaction.CreateParams{params("Coffee")}
	created := []*transaction.Transaction{stored(userID, "Coffee")}

	gomock.InOrder(
		m.txs.EXPECT().CreateBatch(gomock.Any(), userID, in).Return(created, nil),
		m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(created, nil),
	)
	m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food"}, nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), userID, []string{"Coffee"}, []string{"Food"}).
		Return(&classify.DispatchResult{CorrelationID: "c-2"}, nil)

	out, err := svc.Confirm(context.Background(), userID, in)
	require.NoError(t, err)
	assert.Equal(t, created, out.Imported)
	assert.Equal(t, ingest.ClassificationRequested, out.Classification)
}

func TestService_Confirm_Error(t *testing.T) {
	svc, m := newService(t)

	m.txs.EXPECT().CreateBatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.Confirm(context.Background(), uuid.New(), []transaction.CreateParams{params("x")})
	assert.Error(t, err)
}

func TestService_Classify(t *testing.T) {
	userID := uuid.New()
	svc, m := newService(t)

	m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	out := svc.Classify(context.Background(), userID)
	assert.Equal(t, ingest.ClassificationUnavailable, out.Classification)
}
