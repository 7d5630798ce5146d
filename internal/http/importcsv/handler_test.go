package importcsv_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/http/importcsv"
	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

const statement = "date,label,amount,currency\n2024-03-01,Coffee,-3.20,EUR\n2024-03-02,Hotel,-180,CHF\n"

type mocks struct {
	txs        *ingest.MockTransactions
	categories *ingest.MockCategories
	dispatcher *ingest.MockDispatcher
}

func setup(t *testing.T) (http.Handler, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		txs:        ingest.NewMockTransactions(ctrl),
		categories: ingest.NewMockCategories(ctrl),
		dispatcher: ingest.NewMockDispatcher(ctrl),
	}

	h := importcsv.NewHandler(importer.NewService(), ingest.NewService(m.txs, m.categories, m.dispatcher, nil))

	r := chi.NewRouter()
	r.Route("/import", h.Routes)

	return r, m
}

func upload(t *testing.T, userID uuid.UUID, bank, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	if bank != "" {
		require.NoError(t, mw.WriteField("bank", bank))
	}

	if content != "" {
		fw, err := mw.CreateFormFile("file", "statement.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func TestHandler_Import(t *testing.T) {
	userID := uuid.New()
	router, m := setup(t)

	created := []*transaction.Transaction{
		{ID: uuid.New(), UserID: userID, Label: "Coffee", Amount: decimal.RequireFromString("3.2"), Currency: money.EUR, Type: transaction.TypeExpense},
		{ID: uuid.New(), UserID: userID, Label: "Hotel", Amount: decimal.RequireFromString("180"), Currency: money.CHF, Type: transaction.TypeExpense},
	}

	m.txs.EXPECT().ImportBatch(gomock.Any(), userID, gomock.Len(2)).Return(&transaction.ImportResult{Imported: created}, nil)
	m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(created, nil)
	m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food", "Travel"}, nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), userID, []string{"Coffee", "Hotel"}, []string{"Food", "Travel"}).
		Return(&classify.DispatchResult{CorrelationID: "corr-1", Sent: []string{"Coffee", "Hotel"}}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, upload(t, userID, "generic", statement))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Imported       int    `json:"imported"`
		Classification string `json:"classification"`
		CorrelationID  string `json:"correlation_id"`
		Transactions   []struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, "requested", resp.Classification)
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.Equal(t, "180.00", resp.Transactions[1].Amount)
	assert.Equal(t, "CHF", resp.Transactions[1].Currency)
}

func TestHandler_Import_DispatchUnavailable(t *testing.T) {
	userID := uuid.New()
	router, m := setup(t)

	created := []*transaction.Transaction{{ID: uuid.New(), UserID: userID, Label: "Coffee", Currency: money.EUR}}

	m.txs.EXPECT().ImportBatch(gomock.Any(), userID, gomock.Any()).Return(&transaction.ImportResult{Imported: created}, nil)
	m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(created, nil)
	m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food"}, nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, classify.ErrDispatchTransport)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, upload(t, userID, "generic", statement))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classification":"unavailable"`)
}

func TestHandler_Import_Conflicts(t *testing.T) {
	userID := uuid.New()
	router, m := setup(t)

	incoming := transaction.CreateParams{
		Label:    "Coffee",
		Amount:   decimal.RequireFromString("3.2"),
		Currency: money.EUR,
		Type:     transaction.TypeExpense,
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	m.txs.EXPECT().ImportBatch(gomock.Any(), userID, gomock.Any()).Return(&transaction.ImportResult{
		Conflicts: []transaction.Conflict{{Incoming: incoming, Existing: &transaction.Transaction{ID: uuid.New(), Label: "Coffee", Currency: money.EUR}}},
	}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, upload(t, userID, "generic", statement))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"2024-03-01"`)
}

func TestHandler_Import_BadRequests(t *testing.T) {
	userID := uuid.New()

	type testCase struct {
		name       string
		bank       string
		content    string
		wantStatus int
	}

	tests := []testCase{
		{name: "MissingBank", content: statement, wantStatus: http.StatusBadRequest},
		{name: "MissingFile", bank: "generic", wantStatus: http.StatusBadRequest},
		{name: "UnknownBank", bank: "revolut", content: statement, wantStatus: http.StatusUnprocessableEntity},
		{name: "Unparseable", bank: "generic", content: "date,label,amount,currency\n2024-03-01,Coffee,x,EUR\n", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setup(t)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, upload(t, userID, tt.bank, tt.content))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_Confirm(t *testing.T) {
	userID := uuid.New()
	router, m := setup(t)

	created := []*transaction.Transaction{{ID: uuid.New(), UserID: userID, Label: "Coffee", Currency: money.EUR}}

	m.txs.EXPECT().CreateBatch(gomock.Any(), userID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, params []transaction.CreateParams) ([]*transaction.Transaction, error) {
			require.Len(t, params, 1)
			assert.Equal(t, transaction.TypeExpense, params[0].Type)
			assert.Equal(t, "3.2", params[0].Amount.String())
			return created, nil
		})
	m.txs.EXPECT().List(gomock.Any(), gomock.Any()).Return(created, nil)
	m.categories.EXPECT().Labels(gomock.Any(), userID).Return([]string{"Food"}, nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), userID, gomock.Any(), gomock.Any()).Return(&classify.DispatchResult{Skipped: true}, nil)

	body := `{"params":[{"label":"Coffee","amount":"-3.2","currency":"eur","date":"2024-03-01"}]}`
	req := httptest.NewRequest(http.MethodPost, "/import/confirm", bytes.NewBufferString(body))
	req = req.WithContext(auth.WithUserID(req.Context(), userID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"classification":"skipped"`)
}

func TestHandler_Banks(t *testing.T) {
	router, _ := setup(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/import/banks", nil))

	var formats []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &formats))
	require.Len(t, formats, 2)
	assert.Equal(t, "cgd", formats[0]["bank"])
	assert.Equal(t, "generic", formats[1]["bank"])
	assert.NotEmpty(t, formats[0]["description"])
}
