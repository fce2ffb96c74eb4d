package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarginSight/internal/analysis"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchStore struct {
	batches map[string]*analysis.Batch
	results map[string]*analysis.Result
	details map[string]*EntityDetail
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{
		batches: make(map[string]*analysis.Batch),
		results: make(map[string]*analysis.Result),
		details: make(map[string]*EntityDetail),
	}
}

func (f *fakeBatchStore) CreateBatch(ctx context.Context, userID, month string) (*analysis.Batch, error) {
	b := &analysis.Batch{
		ID:        "batch-1",
		UserID:    userID,
		Month:     month,
		Status:    analysis.StatusPending,
		CreatedAt: time.Now(),
	}
	f.batches[b.ID] = b
	return b, nil
}

func (f *fakeBatchStore) GetBatch(ctx context.Context, batchID string) (*analysis.Batch, error) {
	b, ok := f.batches[batchID]
	if !ok {
		return nil, analysis.ErrBatchNotFound
	}
	return b, nil
}

func (f *fakeBatchStore) SetDocuments(ctx context.Context, batchID string, refs analysis.DocumentRefs) (*analysis.Batch, error) {
	b, ok := f.batches[batchID]
	if !ok {
		return nil, analysis.ErrBatchNotFound
	}
	if refs.ProForma != "" {
		b.Documents.ProForma = refs.ProForma
	}
	if refs.Compensation != "" {
		b.Documents.Compensation = refs.Compensation
	}
	if refs.Hours != "" {
		b.Documents.Hours = refs.Hours
	}
	if refs.Expenses != "" {
		b.Documents.Expenses = refs.Expenses
	}
	if refs.ProfitLoss != "" {
		b.Documents.ProfitLoss = refs.ProfitLoss
	}
	return b, nil
}

func (f *fakeBatchStore) ListBatches(ctx context.Context, userID string) ([]*analysis.Batch, error) {
	var out []*analysis.Batch
	for _, b := range f.batches {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBatchStore) MarkProcessing(ctx context.Context, batchID string) (bool, error) {
	return true, nil
}

func (f *fakeBatchStore) MarkFailed(ctx context.Context, batchID string, message string) error {
	return nil
}

func (f *fakeBatchStore) SaveResult(ctx context.Context, batchID string, res *analysis.Result) error {
	f.results[batchID] = res
	return nil
}

func (f *fakeBatchStore) GetResults(ctx context.Context, batchID string) (*analysis.Result, error) {
	if _, ok := f.batches[batchID]; !ok {
		return nil, analysis.ErrBatchNotFound
	}
	res, ok := f.results[batchID]
	if !ok {
		return nil, ErrNotCompleted
	}
	return res, nil
}

func (f *fakeBatchStore) GetEntityDetail(ctx context.Context, batchID, entityType, code string) (*EntityDetail, error) {
	if _, ok := f.batches[batchID]; !ok {
		return nil, analysis.ErrBatchNotFound
	}
	d, ok := f.details[code]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return d, nil
}

type fakeRunner struct {
	res *analysis.Result
	err error
}

func (f *fakeRunner) Run(ctx context.Context, batchID string) (*analysis.Result, error) {
	return f.res, f.err
}

func newTestRouter(store BatchStore, runner Runner) *mux.Router {
	h := NewHandler(store, runner)
	router := mux.NewRouter()
	router.HandleFunc("/analysis/batches", h.CreateBatch).Methods("POST")
	router.HandleFunc("/analysis/batches", h.ListBatches).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}", h.GetBatch).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}/documents", h.SetDocuments).Methods("POST")
	router.HandleFunc("/analysis/batches/{batchId}/run", h.RunBatch).Methods("POST")
	router.HandleFunc("/analysis/batches/{batchId}/results", h.GetResults).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}/detail/{entityType}/{code}", h.GetEntityDetail).Methods("GET")
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateBatch(t *testing.T) {
	router := newTestRouter(newFakeBatchStore(), &fakeRunner{})

	rec := doJSON(t, router, "POST", "/analysis/batches", map[string]string{
		"user_id": "user-1", "month": "2026-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	var batch analysis.Batch
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, analysis.StatusPending, batch.Status)
	assert.Equal(t, "2026-01", batch.Month)
}

func TestCreateBatchValidation(t *testing.T) {
	router := newTestRouter(newFakeBatchStore(), &fakeRunner{})

	rec := doJSON(t, router, "POST", "/analysis/batches", map[string]string{"month": "2026-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)

	rec = doJSON(t, router, "POST", "/analysis/batches", map[string]string{"user_id": "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDocumentsPartialUpdate(t *testing.T) {
	store := newFakeBatchStore()
	router := newTestRouter(store, &fakeRunner{})
	store.CreateBatch(context.Background(), "user-1", "2026-01")

	rec := doJSON(t, router, "POST", "/analysis/batches/batch-1/documents", map[string]string{
		"pro_forma_path": "m/proforma.xlsx",
		"hours_path":     "m/hours.csv",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var batch analysis.Batch
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &batch))
	assert.Equal(t, "m/proforma.xlsx", batch.Documents.ProForma)
	assert.Equal(t, "m/hours.csv", batch.Documents.Hours)
	assert.Empty(t, batch.Documents.ProfitLoss)
}

func TestSetDocumentsUnknownBatch(t *testing.T) {
	router := newTestRouter(newFakeBatchStore(), &fakeRunner{})
	rec := doJSON(t, router, "POST", "/analysis/batches/nope/documents", map[string]string{
		"pro_forma_path": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunBatchSuccess(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	res := &analysis.Result{
		Totals:           analysis.Totals{Revenue: decimal.NewFromInt(1000000)},
		ValidationPassed: true,
	}
	router := newTestRouter(store, &fakeRunner{res: res})

	rec := doJSON(t, router, "POST", "/analysis/batches/batch-1/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status           string `json:"status"`
		ValidationPassed bool   `json:"validation_passed"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &payload))
	assert.Equal(t, analysis.StatusCompleted, payload.Status)
	assert.True(t, payload.ValidationPassed)
}

func TestRunBatchErrorMapping(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", analysis.ErrBatchNotFound, http.StatusNotFound},
		{"missing documents", &analysis.MissingDocumentsError{Missing: []string{analysis.DocHours}}, http.StatusBadRequest},
		{"already processing", analysis.ErrAlreadyProcessing, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(store, &fakeRunner{err: tc.err})
			rec := doJSON(t, router, "POST", "/analysis/batches/batch-1/run", nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}
}

func TestGetResultsNotCompleted(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	router := newTestRouter(store, &fakeRunner{})

	rec := doJSON(t, router, "GET", "/analysis/batches/batch-1/results", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetResultsCompleted(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	store.results["batch-1"] = &analysis.Result{
		RevenueCenters: []*analysis.RevenueCenter{
			{Code: "A-100", Revenue: decimal.NewFromInt(100000)},
		},
		ValidationPassed: true,
	}
	router := newTestRouter(store, &fakeRunner{})

	rec := doJSON(t, router, "GET", "/analysis/batches/batch-1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res analysis.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &res))
	require.Len(t, res.RevenueCenters, 1)
	assert.Equal(t, "A-100", res.RevenueCenters[0].Code)
}

func TestGetEntityDetailUnknownType(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	router := newTestRouter(store, &fakeRunner{})

	rec := doJSON(t, router, "GET", "/analysis/batches/batch-1/detail/nonsense/A-100", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEntityDetailNotFound(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	router := newTestRouter(store, &fakeRunner{})

	rec := doJSON(t, router, "GET", "/analysis/batches/batch-1/detail/revenue_center/A-100", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntityDetailUppercasesCode(t *testing.T) {
	store := newFakeBatchStore()
	store.CreateBatch(context.Background(), "user-1", "2026-01")
	store.details["A-100"] = &EntityDetail{
		Type: analysis.EntityRevenueCenter,
		RevenueCenter: &analysis.RevenueCenter{
			Code: "A-100", Revenue: decimal.NewFromInt(100000),
		},
	}
	router := newTestRouter(store, &fakeRunner{})

	rec := doJSON(t, router, "GET", "/analysis/batches/batch-1/detail/revenue_center/a-100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail EntityDetail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &detail))
	require.NotNil(t, detail.RevenueCenter)
	assert.Equal(t, "A-100", detail.RevenueCenter.Code)
}

func TestAllocationBreakdownFormulas(t *testing.T) {
	rc := &analysis.RevenueCenter{
		Code:           "A-100",
		Revenue:        decimal.NewFromInt(100000),
		Tag:            analysis.TagData,
		SGAAllocation:  decimal.NewFromInt(5000),
		DataAllocation: decimal.NewFromInt(5000),
	}
	pools := analysis.PoolsDetail{
		SGAPnL:            decimal.NewFromInt(50000),
		DataPnL:           decimal.NewFromInt(20000),
		TotalRevenue:      decimal.NewFromInt(1000000),
		DataTaggedRevenue: decimal.NewFromInt(400000),
	}

	out := buildAllocationBreakdown(rc, pools)
	require.Len(t, out, 2)
	assert.Equal(t, "SG&A", out[0].Pool)
	assert.Equal(t, "(100000.00 / 1000000.00) × 50000.00", out[0].Formula)
	assert.Equal(t, "Data Infrastructure", out[1].Pool)
	assert.Equal(t, "(100000.00 / 400000.00) × 20000.00", out[1].Formula)
}
