package analysis

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document kinds. The five source exports a batch is computed from.
const (
	DocProForma     = "pro_forma"
	DocCompensation = "compensation"
	DocHours        = "hours"
	DocExpenses     = "expenses"
	DocProfitLoss   = "profit_loss"
)

// Batch lifecycle states
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Overhead pools
const (
	PoolSGA       = "SGA"
	PoolData      = "DATA_INFRA"
	PoolWorkplace = "WORKPLACE"
)

// Allocation tags carried on pro forma rows
const (
	TagData     = "Data"
	TagWellness = "Wellness"
)

// Entity types used by the drill-down endpoint
const (
	EntityRevenueCenter    = "revenue_center"
	EntityCostCenter       = "cost_center"
	EntityNonRevenueClient = "non_revenue_client"
)

// DocumentRefs holds the storage paths of the five source documents.
type DocumentRefs struct {
	ProForma     string `json:"pro_forma_path"`
	Compensation string `json:"compensation_path"`
	Hours        string `json:"hours_path"`
	Expenses     string `json:"expenses_path"`
	ProfitLoss   string `json:"profit_loss_path"`
}

// Missing returns the document kinds that have no storage path set yet.
func (r DocumentRefs) Missing() []string {
	var missing []string
	if r.ProForma == "" {
		missing = append(missing, DocProForma)
	}
	if r.Compensation == "" {
		missing = append(missing, DocCompensation)
	}
	if r.Hours == "" {
		missing = append(missing, DocHours)
	}
	if r.Expenses == "" {
		missing = append(missing, DocExpenses)
	}
	if r.ProfitLoss == "" {
		missing = append(missing, DocProfitLoss)
	}
	return missing
}

// DocumentSet holds the raw bytes of the five fetched documents, keyed by
// the original storage path so parse errors can name the offending file.
type DocumentSet struct {
	ProForma     Document
	Compensation Document
	Hours        Document
	Expenses     Document
	ProfitLoss   Document
}

type Document struct {
	Path string
	Data []byte
}

// Batch is one analysis run request for a reporting month.
type Batch struct {
	ID                  string          `json:"batch_id"`
	UserID              string          `json:"user_id"`
	Month               string          `json:"month"`
	Status              string          `json:"status"`
	Documents           DocumentRefs    `json:"documents"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalLaborCost      decimal.Decimal `json:"total_labor_cost"`
	TotalExpenseCost    decimal.Decimal `json:"total_expense_cost"`
	TotalMarginDollars  decimal.Decimal `json:"total_margin_dollars"`
	MarginPercent       decimal.Decimal `json:"margin_percent"`
	SGAPool             decimal.Decimal `json:"sga_pool"`
	DataPool            decimal.Decimal `json:"data_pool"`
	WorkplacePool       decimal.Decimal `json:"workplace_pool"`
	RevenueCenterCount  int             `json:"revenue_center_count"`
	CostCenterCount     int             `json:"cost_center_count"`
	NonRevenueCount     int             `json:"non_revenue_count"`
	ValidationPassed    bool            `json:"validation_passed"`
	Validation          []ValidationItem `json:"validation_items,omitempty"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	ProcessingStartedAt *time.Time      `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
}

// ---------- normalized extraction records ----------

type RevenueRow struct {
	Code     string
	Name     string
	Section  string
	Category string
	Tag      string // "", TagData or TagWellness
	Revenue  decimal.Decimal
}

type HoursRow struct {
	StaffKey string
	Code     string
	Hours    decimal.Decimal
	WorkDate string // YYYY-MM-DD
}

type ExpenseRow struct {
	Code        string
	ExpenseDate string // YYYY-MM-DD
	Amount      decimal.Decimal
	Notes       string
}

type PnLLine struct {
	Label    string
	Pool     string // "" when the line belongs to no pool
	Amount   decimal.Decimal
	Excluded bool
}

// RecordSet is the normalized output of the document extractor. Expense
// rows are billable only; non-billable rows are dropped at extraction.
type RecordSet struct {
	Revenue  []RevenueRow
	Rates    map[string]decimal.Decimal // staff key -> resolved hourly rate
	Hours    []HoursRow
	Expenses []ExpenseRow
	PnL      []PnLLine
}

// ---------- classified entities ----------

type RevenueCenter struct {
	Code                string          `json:"contract_code"`
	Name                string          `json:"project_name"`
	Section             string          `json:"section"`
	Category            string          `json:"category"`
	Tag                 string          `json:"allocation_tag,omitempty"`
	Revenue             decimal.Decimal `json:"revenue"`
	Hours               decimal.Decimal `json:"hours"`
	LaborCost           decimal.Decimal `json:"labor_cost"`
	ExpenseCost         decimal.Decimal `json:"expense_cost"`
	SGAAllocation       decimal.Decimal `json:"sga_allocation"`
	DataAllocation      decimal.Decimal `json:"data_allocation"`
	WorkplaceAllocation decimal.Decimal `json:"workplace_allocation"`
	MarginDollars       decimal.Decimal `json:"margin_dollars"`
	MarginPercent       decimal.Decimal `json:"margin_percent"`
}

type CostCenter struct {
	Code        string          `json:"contract_code"`
	Description string          `json:"description"`
	Pool        string          `json:"pool"`
	Hours       decimal.Decimal `json:"hours"`
	LaborCost   decimal.Decimal `json:"labor_cost"`
	ExpenseCost decimal.Decimal `json:"expense_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

type NonRevenueClient struct {
	Code        string          `json:"contract_code"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
	LaborCost   decimal.Decimal `json:"labor_cost"`
	ExpenseCost decimal.Decimal `json:"expense_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// PoolsDetail keeps the pool-derivation inputs for audit drill-down.
type PoolsDetail struct {
	SGAPnL                decimal.Decimal `json:"sga_pnl"`
	DataPnL               decimal.Decimal `json:"data_pnl"`
	WorkplacePnL          decimal.Decimal `json:"workplace_pnl"`
	ExcludedAmount        decimal.Decimal `json:"excluded_amount"`
	SGACostCenters        decimal.Decimal `json:"sga_cost_centers"`
	DataCostCenters       decimal.Decimal `json:"data_cost_centers"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	DataTaggedRevenue     decimal.Decimal `json:"data_tagged_revenue"`
	WellnessTaggedRevenue decimal.Decimal `json:"wellness_tagged_revenue"`
}

// HoursLine is a per-contract drill-down row retained after aggregation.
type HoursLine struct {
	Code         string          `json:"contract_code"`
	StaffKey     string          `json:"staff_key"`
	WorkDate     string          `json:"work_date"`
	Hours        decimal.Decimal `json:"hours"`
	HourlyRate   decimal.Decimal `json:"hourly_cost"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	RateResolved bool            `json:"rate_resolved"`
}

type ExpenseLine struct {
	Code        string          `json:"contract_code"`
	ExpenseDate string          `json:"expense_date"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes,omitempty"`
}

// ---------- validation ----------

const (
	CheckPass = "pass"
	CheckWarn = "warn"
	CheckFail = "fail"
)

type ValidationItem struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Totals are the batch-level aggregates persisted on the batch row.
// Labor and expense cost cover all three entity classes; margin covers
// revenue centers only.
type Totals struct {
	Revenue       decimal.Decimal `json:"revenue"`
	LaborCost     decimal.Decimal `json:"labor_cost"`
	ExpenseCost   decimal.Decimal `json:"expense_cost"`
	MarginDollars decimal.Decimal `json:"margin_dollars"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

// Result is the full snapshot of one successful run.
type Result struct {
	RevenueCenters   []*RevenueCenter    `json:"revenue_centers"`
	CostCenters      []*CostCenter       `json:"cost_centers"`
	NonRevenue       []*NonRevenueClient `json:"non_revenue_clients"`
	Pools            PoolsDetail         `json:"pools_detail"`
	HoursLines       []HoursLine         `json:"-"`
	ExpenseLines     []ExpenseLine       `json:"-"`
	Totals           Totals              `json:"totals"`
	Validation       []ValidationItem    `json:"validation"`
	ValidationPassed bool                `json:"validation_passed"`
}
