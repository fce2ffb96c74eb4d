package analysisapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"MarginSight/internal/analysis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotCompleted guards the results read path: a batch only has a
	// snapshot once it has completed a run.
	ErrNotCompleted = errors.New("batch has not completed")

	ErrEntityNotFound = errors.New("entity not found in batch")
)

// PgStore persists batches and result snapshots in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const batchColumns = `
	batch_id, user_id, month, status,
	COALESCE(pro_forma_path,''), COALESCE(compensation_path,''), COALESCE(hours_path,''),
	COALESCE(expenses_path,''), COALESCE(profit_loss_path,''),
	total_revenue, total_labor_cost, total_expense_cost, total_margin_dollars, margin_percent,
	sga_pool, data_pool, workplace_pool,
	revenue_center_count, cost_center_count, non_revenue_count,
	validation_passed, COALESCE(validation_items,'[]'::jsonb), COALESCE(error_message,''),
	created_at, processing_started_at, processed_at`

func scanBatch(row pgx.Row) (*analysis.Batch, error) {
	b := &analysis.Batch{}
	var items []byte
	err := row.Scan(
		&b.ID, &b.UserID, &b.Month, &b.Status,
		&b.Documents.ProForma, &b.Documents.Compensation, &b.Documents.Hours,
		&b.Documents.Expenses, &b.Documents.ProfitLoss,
		&b.TotalRevenue, &b.TotalLaborCost, &b.TotalExpenseCost, &b.TotalMarginDollars, &b.MarginPercent,
		&b.SGAPool, &b.DataPool, &b.WorkplacePool,
		&b.RevenueCenterCount, &b.CostCenterCount, &b.NonRevenueCount,
		&b.ValidationPassed, &items, &b.ErrorMessage,
		&b.CreatedAt, &b.ProcessingStartedAt, &b.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, analysis.ErrBatchNotFound
		}
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &b.Validation); err != nil {
			return nil, fmt.Errorf("failed to decode validation items: %w", err)
		}
	}
	return b, nil
}

func (s *PgStore) CreateBatch(ctx context.Context, userID, month string) (*analysis.Batch, error) {
	batchID := uuid.New().String()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO analysis_batches (batch_id, user_id, month, status,
			total_revenue, total_labor_cost, total_expense_cost, total_margin_dollars, margin_percent,
			sga_pool, data_pool, workplace_pool,
			revenue_center_count, cost_center_count, non_revenue_count,
			validation_passed, created_at)
		VALUES ($1, $2, $3, $4, 0,0,0,0,0, 0,0,0, 0,0,0, false, now())
		RETURNING `+batchColumns,
		batchID, userID, month, analysis.StatusPending)
	return scanBatch(row)
}

func (s *PgStore) GetBatch(ctx context.Context, batchID string) (*analysis.Batch, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM analysis_batches WHERE batch_id = $1`, batchID)
	return scanBatch(row)
}

func (s *PgStore) ListBatches(ctx context.Context, userID string) ([]*analysis.Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM analysis_batches WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*analysis.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetDocuments overwrites any document path present in refs, leaving
// the rest untouched. Rejected while a run is in flight.
func (s *PgStore) SetDocuments(ctx context.Context, batchID string, refs analysis.DocumentRefs) (*analysis.Batch, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE analysis_batches SET
			pro_forma_path    = COALESCE(NULLIF($2,''), pro_forma_path),
			compensation_path = COALESCE(NULLIF($3,''), compensation_path),
			hours_path        = COALESCE(NULLIF($4,''), hours_path),
			expenses_path     = COALESCE(NULLIF($5,''), expenses_path),
			profit_loss_path  = COALESCE(NULLIF($6,''), profit_loss_path)
		WHERE batch_id = $1 AND status <> $7
		RETURNING `+batchColumns,
		batchID, refs.ProForma, refs.Compensation, refs.Hours, refs.Expenses, refs.ProfitLoss,
		analysis.StatusProcessing)
	return scanBatch(row)
}

// MarkProcessing claims the batch atomically: the conditional update is
// the only lock, so two concurrent triggers race on RowsAffected.
func (s *PgStore) MarkProcessing(ctx context.Context, batchID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_batches
		SET status = $2, processing_started_at = now(), error_message = NULL
		WHERE batch_id = $1 AND status <> $2`,
		batchID, analysis.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) MarkFailed(ctx context.Context, batchID string, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE analysis_batches
		SET status = $2, error_message = $3, processed_at = now()
		WHERE batch_id = $1`,
		batchID, analysis.StatusFailed, message)
	return err
}

// SaveResult writes the aggregate totals and the full detail snapshot
// in one transaction. Prior detail rows are deleted first: the batch's
// detail set is a snapshot of its most recent successful run, never a
// merge of runs.
func (s *PgStore) SaveResult(ctx context.Context, batchID string, res *analysis.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	items, err := json.Marshal(res.Validation)
	if err != nil {
		return fmt.Errorf("failed to encode validation items: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE analysis_batches SET
			status = $2, processed_at = now(), error_message = NULL,
			total_revenue = $3, total_labor_cost = $4, total_expense_cost = $5,
			total_margin_dollars = $6, margin_percent = $7,
			sga_pool = $8, data_pool = $9, workplace_pool = $10,
			revenue_center_count = $11, cost_center_count = $12, non_revenue_count = $13,
			validation_passed = $14, validation_items = $15
		WHERE batch_id = $1`,
		batchID, analysis.StatusCompleted,
		res.Totals.Revenue.StringFixed(2), res.Totals.LaborCost.StringFixed(2), res.Totals.ExpenseCost.StringFixed(2),
		res.Totals.MarginDollars.StringFixed(2), res.Totals.MarginPercent.StringFixed(4),
		res.Pools.SGAPnL.StringFixed(2), res.Pools.DataPnL.StringFixed(2), res.Pools.WorkplacePnL.StringFixed(2),
		len(res.RevenueCenters), len(res.CostCenters), len(res.NonRevenue),
		res.ValidationPassed, items)
	if err != nil {
		return fmt.Errorf("failed to update batch totals: %w", err)
	}

	for _, table := range []string{
		"analysis_revenue_centers", "analysis_cost_centers", "analysis_non_revenue_clients",
		"analysis_pools_detail", "analysis_hours_detail", "analysis_expenses_detail",
	} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE batch_id = $1`, batchID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	rcRows := make([][]interface{}, len(res.RevenueCenters))
	for i, rc := range res.RevenueCenters {
		rcRows[i] = []interface{}{
			batchID, rc.Code, rc.Name, rc.Section, rc.Category, rc.Tag,
			rc.Revenue.StringFixed(2), rc.Hours.String(), rc.LaborCost.StringFixed(2), rc.ExpenseCost.StringFixed(2),
			rc.SGAAllocation.StringFixed(2), rc.DataAllocation.StringFixed(2), rc.WorkplaceAllocation.StringFixed(2),
			rc.MarginDollars.StringFixed(2), rc.MarginPercent.StringFixed(4),
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analysis_revenue_centers"},
		[]string{"batch_id", "contract_code", "project_name", "section", "category", "allocation_tag",
			"revenue", "hours", "labor_cost", "expense_cost",
			"sga_allocation", "data_allocation", "workplace_allocation",
			"margin_dollars", "margin_percent"},
		pgx.CopyFromRows(rcRows),
	); err != nil {
		return fmt.Errorf("failed to insert revenue centers: %w", err)
	}

	ccRows := make([][]interface{}, len(res.CostCenters))
	for i, cc := range res.CostCenters {
		ccRows[i] = []interface{}{
			batchID, cc.Code, cc.Description, cc.Pool,
			cc.Hours.String(), cc.LaborCost.StringFixed(2), cc.ExpenseCost.StringFixed(2), cc.TotalCost.StringFixed(2),
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analysis_cost_centers"},
		[]string{"batch_id", "contract_code", "description", "pool", "hours", "labor_cost", "expense_cost", "total_cost"},
		pgx.CopyFromRows(ccRows),
	); err != nil {
		return fmt.Errorf("failed to insert cost centers: %w", err)
	}

	nrRows := make([][]interface{}, len(res.NonRevenue))
	for i, nr := range res.NonRevenue {
		nrRows[i] = []interface{}{
			batchID, nr.Code, nr.Description,
			nr.Hours.String(), nr.LaborCost.StringFixed(2), nr.ExpenseCost.StringFixed(2), nr.TotalCost.StringFixed(2),
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analysis_non_revenue_clients"},
		[]string{"batch_id", "contract_code", "description", "hours", "labor_cost", "expense_cost", "total_cost"},
		pgx.CopyFromRows(nrRows),
	); err != nil {
		return fmt.Errorf("failed to insert non-revenue clients: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_pools_detail (batch_id,
			sga_pnl, data_pnl, workplace_pnl, excluded_amount,
			sga_cost_centers, data_cost_centers,
			total_revenue, data_tagged_revenue, wellness_tagged_revenue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		batchID,
		res.Pools.SGAPnL.StringFixed(2), res.Pools.DataPnL.StringFixed(2), res.Pools.WorkplacePnL.StringFixed(2),
		res.Pools.ExcludedAmount.StringFixed(2),
		res.Pools.SGACostCenters.StringFixed(2), res.Pools.DataCostCenters.StringFixed(2),
		res.Pools.TotalRevenue.StringFixed(2), res.Pools.DataTaggedRevenue.StringFixed(2),
		res.Pools.WellnessTaggedRevenue.StringFixed(2))
	if err != nil {
		return fmt.Errorf("failed to insert pools detail: %w", err)
	}

	hoursRows := make([][]interface{}, len(res.HoursLines))
	for i, hl := range res.HoursLines {
		hoursRows[i] = []interface{}{
			batchID, hl.Code, hl.StaffKey, hl.WorkDate,
			hl.Hours.String(), hl.HourlyRate.StringFixed(4), hl.LaborCost.StringFixed(2), hl.RateResolved,
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analysis_hours_detail"},
		[]string{"batch_id", "contract_code", "staff_key", "work_date", "hours", "hourly_cost", "labor_cost", "rate_resolved"},
		pgx.CopyFromRows(hoursRows),
	); err != nil {
		return fmt.Errorf("failed to insert hours detail: %w", err)
	}

	expenseRows := make([][]interface{}, len(res.ExpenseLines))
	for i, el := range res.ExpenseLines {
		expenseRows[i] = []interface{}{
			batchID, el.Code, el.ExpenseDate, el.Amount.StringFixed(2), el.Notes,
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analysis_expenses_detail"},
		[]string{"batch_id", "contract_code", "expense_date", "amount", "notes"},
		pgx.CopyFromRows(expenseRows),
	); err != nil {
		return fmt.Errorf("failed to insert expenses detail: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit result snapshot: %w", err)
	}
	return nil
}

// GetResults loads the snapshot of a completed batch, entities ordered
// descending by their primary monetary figure.
func (s *PgStore) GetResults(ctx context.Context, batchID string) (*analysis.Result, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != analysis.StatusCompleted {
		return nil, ErrNotCompleted
	}

	res := &analysis.Result{
		Validation:       batch.Validation,
		ValidationPassed: batch.ValidationPassed,
		Totals: analysis.Totals{
			Revenue:       batch.TotalRevenue,
			LaborCost:     batch.TotalLaborCost,
			ExpenseCost:   batch.TotalExpenseCost,
			MarginDollars: batch.TotalMarginDollars,
			MarginPercent: batch.MarginPercent,
		},
	}

	rcRows, err := s.pool.Query(ctx, `
		SELECT contract_code, project_name, section, category, COALESCE(allocation_tag,''),
			revenue, hours, labor_cost, expense_cost,
			sga_allocation, data_allocation, workplace_allocation, margin_dollars, margin_percent
		FROM analysis_revenue_centers WHERE batch_id = $1
		ORDER BY revenue DESC, contract_code`, batchID)
	if err != nil {
		return nil, err
	}
	defer rcRows.Close()
	for rcRows.Next() {
		rc := &analysis.RevenueCenter{}
		if err := rcRows.Scan(&rc.Code, &rc.Name, &rc.Section, &rc.Category, &rc.Tag,
			&rc.Revenue, &rc.Hours, &rc.LaborCost, &rc.ExpenseCost,
			&rc.SGAAllocation, &rc.DataAllocation, &rc.WorkplaceAllocation,
			&rc.MarginDollars, &rc.MarginPercent); err != nil {
			return nil, err
		}
		res.RevenueCenters = append(res.RevenueCenters, rc)
	}

	ccRows, err := s.pool.Query(ctx, `
		SELECT contract_code, description, pool, hours, labor_cost, expense_cost, total_cost
		FROM analysis_cost_centers WHERE batch_id = $1
		ORDER BY total_cost DESC, contract_code`, batchID)
	if err != nil {
		return nil, err
	}
	defer ccRows.Close()
	for ccRows.Next() {
		cc := &analysis.CostCenter{}
		if err := ccRows.Scan(&cc.Code, &cc.Description, &cc.Pool,
			&cc.Hours, &cc.LaborCost, &cc.ExpenseCost, &cc.TotalCost); err != nil {
			return nil, err
		}
		res.CostCenters = append(res.CostCenters, cc)
	}

	nrRows, err := s.pool.Query(ctx, `
		SELECT contract_code, description, hours, labor_cost, expense_cost, total_cost
		FROM analysis_non_revenue_clients WHERE batch_id = $1
		ORDER BY total_cost DESC, contract_code`, batchID)
	if err != nil {
		return nil, err
	}
	defer nrRows.Close()
	for nrRows.Next() {
		nr := &analysis.NonRevenueClient{}
		if err := nrRows.Scan(&nr.Code, &nr.Description,
			&nr.Hours, &nr.LaborCost, &nr.ExpenseCost, &nr.TotalCost); err != nil {
			return nil, err
		}
		res.NonRevenue = append(res.NonRevenue, nr)
	}

	pools, err := s.getPoolsDetail(ctx, batchID)
	if err != nil {
		return nil, err
	}
	res.Pools = pools

	return res, nil
}

func (s *PgStore) getPoolsDetail(ctx context.Context, batchID string) (analysis.PoolsDetail, error) {
	var d analysis.PoolsDetail
	err := s.pool.QueryRow(ctx, `
		SELECT sga_pnl, data_pnl, workplace_pnl, excluded_amount,
			sga_cost_centers, data_cost_centers,
			total_revenue, data_tagged_revenue, wellness_tagged_revenue
		FROM analysis_pools_detail WHERE batch_id = $1`, batchID).
		Scan(&d.SGAPnL, &d.DataPnL, &d.WorkplacePnL, &d.ExcludedAmount,
			&d.SGACostCenters, &d.DataCostCenters,
			&d.TotalRevenue, &d.DataTaggedRevenue, &d.WellnessTaggedRevenue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return d, ErrNotCompleted
		}
		return d, err
	}
	return d, nil
}

// GetEntityDetail loads one entity with its backing line items and, for
// revenue centers, the allocation breakdown.
func (s *PgStore) GetEntityDetail(ctx context.Context, batchID, entityType, code string) (*EntityDetail, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	detail := &EntityDetail{Type: entityType}
	switch entityType {
	case analysis.EntityRevenueCenter:
		rc := &analysis.RevenueCenter{}
		err := s.pool.QueryRow(ctx, `
			SELECT contract_code, project_name, section, category, COALESCE(allocation_tag,''),
				revenue, hours, labor_cost, expense_cost,
				sga_allocation, data_allocation, workplace_allocation, margin_dollars, margin_percent
			FROM analysis_revenue_centers WHERE batch_id = $1 AND contract_code = $2`, batchID, code).
			Scan(&rc.Code, &rc.Name, &rc.Section, &rc.Category, &rc.Tag,
				&rc.Revenue, &rc.Hours, &rc.LaborCost, &rc.ExpenseCost,
				&rc.SGAAllocation, &rc.DataAllocation, &rc.WorkplaceAllocation,
				&rc.MarginDollars, &rc.MarginPercent)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEntityNotFound
			}
			return nil, err
		}
		detail.RevenueCenter = rc
		pools, err := s.getPoolsDetail(ctx, batchID)
		if err != nil {
			return nil, err
		}
		detail.Allocations = buildAllocationBreakdown(rc, pools)
	case analysis.EntityCostCenter:
		cc := &analysis.CostCenter{}
		err := s.pool.QueryRow(ctx, `
			SELECT contract_code, description, pool, hours, labor_cost, expense_cost, total_cost
			FROM analysis_cost_centers WHERE batch_id = $1 AND contract_code = $2`, batchID, code).
			Scan(&cc.Code, &cc.Description, &cc.Pool, &cc.Hours, &cc.LaborCost, &cc.ExpenseCost, &cc.TotalCost)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEntityNotFound
			}
			return nil, err
		}
		detail.CostCenter = cc
	case analysis.EntityNonRevenueClient:
		nr := &analysis.NonRevenueClient{}
		err := s.pool.QueryRow(ctx, `
			SELECT contract_code, description, hours, labor_cost, expense_cost, total_cost
			FROM analysis_non_revenue_clients WHERE batch_id = $1 AND contract_code = $2`, batchID, code).
			Scan(&nr.Code, &nr.Description, &nr.Hours, &nr.LaborCost, &nr.ExpenseCost, &nr.TotalCost)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEntityNotFound
			}
			return nil, err
		}
		detail.NonRevenueClient = nr
	}

	hoursRows, err := s.pool.Query(ctx, `
		SELECT contract_code, staff_key, COALESCE(work_date,''), hours, hourly_cost, labor_cost, rate_resolved
		FROM analysis_hours_detail WHERE batch_id = $1 AND contract_code = $2
		ORDER BY staff_key, work_date`, batchID, code)
	if err != nil {
		return nil, err
	}
	defer hoursRows.Close()
	for hoursRows.Next() {
		var hl analysis.HoursLine
		if err := hoursRows.Scan(&hl.Code, &hl.StaffKey, &hl.WorkDate,
			&hl.Hours, &hl.HourlyRate, &hl.LaborCost, &hl.RateResolved); err != nil {
			return nil, err
		}
		detail.Hours = append(detail.Hours, hl)
	}

	expenseRows, err := s.pool.Query(ctx, `
		SELECT contract_code, COALESCE(expense_date,''), amount, COALESCE(notes,'')
		FROM analysis_expenses_detail WHERE batch_id = $1 AND contract_code = $2
		ORDER BY expense_date`, batchID, code)
	if err != nil {
		return nil, err
	}
	defer expenseRows.Close()
	for expenseRows.Next() {
		var el analysis.ExpenseLine
		if err := expenseRows.Scan(&el.Code, &el.ExpenseDate, &el.Amount, &el.Notes); err != nil {
			return nil, err
		}
		detail.Expenses = append(detail.Expenses, el)
	}

	return detail, nil
}
