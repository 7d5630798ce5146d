package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	grouperhttp "github.com/MrJamesThe3rd/grouper/internal/http"
	httpcategory "github.com/MrJamesThe3rd/grouper/internal/http/category"
	"github.com/MrJamesThe3rd/grouper/internal/http/importcsv"
	httpmatching "github.com/MrJamesThe3rd/grouper/internal/http/matching"
	httprates "github.com/MrJamesThe3rd/grouper/internal/http/rates"
	httpreport "github.com/MrJamesThe3rd/grouper/internal/http/report"
	httptx "github.com/MrJamesThe3rd/grouper/internal/http/transaction"
	httpuser "github.com/MrJamesThe3rd/grouper/internal/http/user"
	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/rates"
	"github.com/MrJamesThe3rd/grouper/internal/report"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

type requestStub struct {
	reqs []classify.Request
}

func (s *requestStub) ListRequests(_ context.Context, _ uuid.UUID, limit int) ([]classify.Request, error) {
	if limit < len(s.reqs) {
		return s.reqs[:limit], nil
	}

	return s.reqs, nil
}

type env struct {
	router   http.Handler
	auth     *auth.Authenticator
	users    *user.MockRepository
	cats     *category.MockRepository
	matches  *matching.MockRepository
	applier  *classify.MockApplier
	requests *requestStub
}

func newEnv(t *testing.T) *env {
	ctrl := gomock.NewController(t)

	authenticator, err := auth.New("test-secret")
	require.NoError(t, err)

	e := &env{
		auth:     authenticator,
		users:    user.NewMockRepository(ctrl),
		cats:     category.NewMockRepository(ctrl),
		matches:  matching.NewMockRepository(ctrl),
		applier:  classify.NewMockApplier(ctrl),
		requests: &requestStub{},
	}

	categorySvc := category.NewService(e.cats)
	txSvc := transaction.NewService(transaction.NewMockRepository(ctrl))
	ingestSvc := ingest.NewService(ingest.NewMockTransactions(ctrl), ingest.NewMockCategories(ctrl), ingest.NewMockDispatcher(ctrl), nil)
	reportSvc := report.NewService(report.NewMockTransactions(ctrl), report.NewMockCategories(ctrl), report.NewMockUsers(ctrl), report.NewMockRateSource(ctrl))

	e.router = grouperhttp.New(authenticator, []string{"*"}, grouperhttp.Handlers{
		Users:        httpuser.NewHandler(user.NewService(e.users, categorySvc), authenticator, nil),
		Categories:   httpcategory.NewHandler(categorySvc),
		Transactions: httptx.NewHandler(txSvc),
		Import:       importcsv.NewHandler(importer.NewService(), ingestSvc),
		Matching:     httpmatching.NewHandler(matching.NewService(e.matches), e.applier, ingestSvc, e.requests),
		Rates:        httprates.NewHandler(rates.NewService(rates.NewMockRepository(ctrl), time.Minute)),
		Reports:      httpreport.NewHandler(reportSvc),
	})

	return e
}

func (e *env) do(t *testing.T, method, path, body string, userID *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if userID != nil {
		token, err := e.auth.Issue(*userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func TestRouter_Health(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	e := newEnv(t)

	paths := []string{
		"/api/v1/me",
		"/api/v1/categories",
		"/api/v1/transactions",
		"/api/v1/matching/requests",
		"/api/v1/reports/summary",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, p, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRouter_Onboarding(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	e.users.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *user.User) error {
			assert.Equal(t, "ana@example.com", u.Email)
			assert.Equal(t, money.GBP, u.BaseCurrency)
			u.ID = userID
			return nil
		})
	e.cats.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(nil).Times(len(category.Defaults))

	rec := e.do(t, http.MethodPost, "/api/v1/users", `{"email":" Ana@Example.com ","base_currency":"gbp"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, userID, resp.User.ID)

	parsed, err := e.auth.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestRouter_OnboardingErrors(t *testing.T) {
	type testCase struct {
		name      string
		body      string
		setupMock func(e *env)
		wantCode  int
	}

	tests := []testCase{
		{name: "InvalidCurrency", body: `{"email":"a@b.c","base_currency":"JPY"}`, setupMock: func(*env) {}, wantCode: http.StatusUnprocessableEntity},
		{name: "InvalidEmail", body: `{"email":"nope"}`, setupMock: func(*env) {}, wantCode: http.StatusUnprocessableEntity},
		{name: "BadJSON", body: `{`, setupMock: func(*env) {}, wantCode: http.StatusBadRequest},
		{
			name: "EmailTaken",
			body: `{"email":"a@b.c"}`,
			setupMock: func(e *env) {
				e.users.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(user.ErrEmailTaken)
			},
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			tt.setupMock(e)

			rec := e.do(t, http.MethodPost, "/api/v1/users", tt.body, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRouter_Me(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	e.users.EXPECT().GetUser(gomock.Any(), userID).Return(&user.User{ID: userID, Email: "a@b.c", BaseCurrency: money.EUR}, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/me", "", &userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"base_currency":"EUR"`)
}

func TestRouter_Categories(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	e.cats.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(category.ErrDuplicateLabel)

	rec := e.do(t, http.MethodPost, "/api/v1/categories", `{"label":"Food"}`, &userID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	e.cats.EXPECT().ListCategories(gomock.Any(), userID).Return([]*category.Category{{ID: uuid.New(), Label: "Food"}}, nil)

	rec = e.do(t, http.MethodGet, "/api/v1/categories", "", &userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"Food"`)
}

func TestRouter_MatchingApply(t *testing.T) {
	userID := uuid.New()
	txID := uuid.New()

	type testCase struct {
		name     string
		result   *classify.ApplyResult
		err      error
		wantCode int
		wantBody string
	}

	tests := []testCase{
		{
			name: "Applied",
			result: &classify.ApplyResult{
				UserID:        userID,
				Transactions:  3,
				Assigned:      2,
				Unresolved:    1,
				Written:       3,
				Unconvertible: []classify.ConversionUnavailable{{TransactionID: txID, From: money.SEK, To: money.EUR}},
			},
			wantCode: http.StatusOK,
			wantBody: `"from":"SEK"`,
		},
		{name: "NoTransactions", err: classify.ErrNoTransactions, wantCode: http.StatusUnprocessableEntity},
		{name: "UserMissing", err: classify.ErrUserNotFound, wantCode: http.StatusNotFound},
		{name: "Persistence", err: classify.ErrPersistence, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.applier.EXPECT().Apply(gomock.Any(), userID).Return(tt.result, tt.err)

			rec := e.do(t, http.MethodPost, "/api/v1/matching/apply", "", &userID)
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter_MatchingLookupAndUpsert(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	e.matches.EXPECT().FindMatch(gomock.Any(), "UBER TRIP").Return("Transport", true, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/matching?label=UBER+TRIP", "", &userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"label":"UBER TRIP","category_label":"Transport","found":true}`, rec.Body.String())

	e.matches.EXPECT().SaveMatch(gomock.Any(), "UBER TRIP", "Transport").Return(nil)

	rec = e.do(t, http.MethodPost, "/api/v1/matching", `{"label":" UBER TRIP ","category_label":"Transport"}`, &userID)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/matching", `{"label":" ","category_label":"Transport"}`, &userID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRouter_MatchingRequests(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	e.requests.reqs = []classify.Request{
		{CorrelationID: "c-2", Status: classify.StatusPending, Labels: 4},
		{CorrelationID: "c-1", Status: classify.StatusFailed, Reason: "model timeout"},
	}

	rec := e.do(t, http.MethodGet, "/api/v1/matching/requests?limit=1", "", &userID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "c-2", resp[0]["correlation_id"])

	rec = e.do(t, http.MethodGet, "/api/v1/matching/requests?limit=zero", "", &userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RatesValidation(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	bodies := map[string]string{
		"Empty":        `{"rates":[]}`,
		"SamePair":     `{"rates":[{"base":"EUR","target":"EUR","rate":"1"}]}`,
		"NonPositive":  `{"rates":[{"base":"EUR","target":"USD","rate":"0"}]}`,
		"UnknownCode":  `{"rates":[{"base":"EUR","target":"JPY","rate":"160"}]}`,
		"MalformedDoc": `{"rates":`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := e.do(t, http.MethodPut, "/api/v1/rates", body, &userID)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
