package analysisapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"MarginSight/api"
	"MarginSight/api/constants"
	"MarginSight/internal/analysis"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// BatchStore is the persistence surface the HTTP layer needs: the
// orchestrator's Store plus the batch lifecycle and read queries.
type BatchStore interface {
	analysis.Store
	CreateBatch(ctx context.Context, userID, month string) (*analysis.Batch, error)
	SetDocuments(ctx context.Context, batchID string, refs analysis.DocumentRefs) (*analysis.Batch, error)
	ListBatches(ctx context.Context, userID string) ([]*analysis.Batch, error)
	GetResults(ctx context.Context, batchID string) (*analysis.Result, error)
	GetEntityDetail(ctx context.Context, batchID, entityType, code string) (*EntityDetail, error)
}

// Runner triggers one analysis run.
type Runner interface {
	Run(ctx context.Context, batchID string) (*analysis.Result, error)
}

// AllocationBreakdown is the human-readable drill-down for one pool
// allocation on a revenue center.
type AllocationBreakdown struct {
	Pool    string          `json:"pool"`
	Formula string          `json:"formula"`
	Amount  decimal.Decimal `json:"amount"`
}

// EntityDetail is the single-entity drill-down payload.
type EntityDetail struct {
	Type             string                     `json:"type"`
	RevenueCenter    *analysis.RevenueCenter    `json:"revenue_center,omitempty"`
	CostCenter       *analysis.CostCenter       `json:"cost_center,omitempty"`
	NonRevenueClient *analysis.NonRevenueClient `json:"non_revenue_client,omitempty"`
	Hours            []analysis.HoursLine       `json:"hours"`
	Expenses         []analysis.ExpenseLine     `json:"expenses"`
	Allocations      []AllocationBreakdown      `json:"allocation_breakdown,omitempty"`
}

type Handler struct {
	store  BatchStore
	runner Runner
}

func NewHandler(store BatchStore, runner Runner) *Handler {
	return &Handler{store: store, runner: runner}
}

// CreateBatch starts a new monthly analysis in pending state.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Month  string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	if req.UserID == "" {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrUserIDRequired)
		return
	}
	if req.Month == "" {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrMonthRequired)
		return
	}
	batch, err := h.store.CreateBatch(r.Context(), req.UserID, req.Month)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		return
	}
	api.LogInfo("created analysis batch %s for month %s", batch.ID, batch.Month)
	api.RespondWithPayload(w, true, "", batch)
}

// SetDocuments records storage paths for any subset of the five source
// documents. Processing requires all five to be set.
func (h *Handler) SetDocuments(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchId"]
	var refs analysis.DocumentRefs
	if err := json.NewDecoder(r.Body).Decode(&refs); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrFailedToParseJSONBody)
		return
	}
	batch, err := h.store.SetDocuments(r.Context(), batchID, refs)
	if err != nil {
		if errors.Is(err, analysis.ErrBatchNotFound) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
			return
		}
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", batch)
}

// RunBatch triggers processing. Missing document references reject the
// trigger with 400 and the batch never leaves pending; a batch already
// in processing rejects with 409.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchId"]
	res, err := h.runner.Run(r.Context(), batchID)
	if err != nil {
		var missing *analysis.MissingDocumentsError
		switch {
		case errors.Is(err, analysis.ErrBatchNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
		case errors.As(err, &missing):
			api.RespondWithError(w, http.StatusBadRequest,
				constants.ErrMissingDocumentPaths+": "+strings.Join(missing.Missing, ", "))
		case errors.Is(err, analysis.ErrAlreadyProcessing):
			api.RespondWithError(w, http.StatusConflict, constants.ErrAlreadyProcessing)
		default:
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"status":            analysis.StatusCompleted,
		"totals":            res.Totals,
		"validation_passed": res.ValidationPassed,
		"validation_items":  res.Validation,
	})
}

// GetBatch returns the full batch record.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchId"]
	batch, err := h.store.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, analysis.ErrBatchNotFound) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
			return
		}
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", batch)
}

// ListBatches returns a user's batches, newest first.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrUserIDRequired)
		return
	}
	batches, err := h.store.ListBatches(r.Context(), userID)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", batches)
}

// GetResults returns the classified entities and pools detail of a
// completed batch, each list ordered descending by its primary
// monetary figure.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchId"]
	res, err := h.store.GetResults(r.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrBatchNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
		case errors.Is(err, ErrNotCompleted):
			api.RespondWithError(w, http.StatusConflict, constants.ErrResultsNotAvailable)
		default:
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		}
		return
	}
	api.RespondWithPayload(w, true, "", res)
}

// GetEntityDetail returns one entity with its hours and expense line
// items and, for revenue centers, the allocation breakdown.
func (h *Handler) GetEntityDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batchID := vars["batchId"]
	entityType := vars["entityType"]
	code := strings.ToUpper(vars["code"])

	switch entityType {
	case analysis.EntityRevenueCenter, analysis.EntityCostCenter, analysis.EntityNonRevenueClient:
	default:
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrUnknownEntityType)
		return
	}

	detail, err := h.store.GetEntityDetail(r.Context(), batchID, entityType, code)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrBatchNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
		case errors.Is(err, ErrEntityNotFound):
			api.RespondWithError(w, http.StatusNotFound, constants.ErrEntityNotFound)
		default:
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrDB+": "+err.Error())
		}
		return
	}
	api.RespondWithPayload(w, true, "", detail)
}

// allocationFormula renders the audit formula the drill-down shows:
// (project_revenue / denominator_revenue) × pool.
func allocationFormula(projectRevenue, denominator, pool decimal.Decimal) string {
	return fmt.Sprintf("(%s / %s) × %s",
		projectRevenue.StringFixed(2), denominator.StringFixed(2), pool.StringFixed(2))
}

// buildAllocationBreakdown explains each nonzero allocation on a
// revenue center in terms of the batch's pool denominators.
func buildAllocationBreakdown(rc *analysis.RevenueCenter, pools analysis.PoolsDetail) []AllocationBreakdown {
	var out []AllocationBreakdown
	if !rc.SGAAllocation.IsZero() {
		out = append(out, AllocationBreakdown{
			Pool:    "SG&A",
			Formula: allocationFormula(rc.Revenue, pools.TotalRevenue, pools.SGAPnL),
			Amount:  rc.SGAAllocation,
		})
	}
	if !rc.DataAllocation.IsZero() {
		out = append(out, AllocationBreakdown{
			Pool:    "Data Infrastructure",
			Formula: allocationFormula(rc.Revenue, pools.DataTaggedRevenue, pools.DataPnL),
			Amount:  rc.DataAllocation,
		})
	}
	if !rc.WorkplaceAllocation.IsZero() {
		out = append(out, AllocationBreakdown{
			Pool:    "Workplace Well-being",
			Formula: allocationFormula(rc.Revenue, pools.WellnessTaggedRevenue, pools.WorkplacePnL),
			Amount:  rc.WorkplaceAllocation,
		})
	}
	return out
}
