package analysis

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func csvDoc(t *testing.T, path string, rows [][]string) Document {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("csv encode: %v", err)
	}
	return Document{Path: path, Data: buf.Bytes()}
}

// monthFixture is one consistent reporting month:
//
//	revenue centers  A-100 (100k, Data), B-200 (600k), D-400 (300k, Data)
//	cost centers     CC-SGA (50k total), CC-DATA-01 (20k total)
//	non-revenue      ZZ-900 (hours only, no revenue row)
//	pools            SG&A 50k, Data Infrastructure 20k
//
// Both pools reconcile exactly against their cost centers, and every
// staff key resolves a rate, so validation passes with a single
// non-revenue warning.
func monthFixture(t *testing.T) *RecordSet {
	t.Helper()
	return &RecordSet{
		Revenue: []RevenueRow{
			{Code: "A-100", Name: "Alpha Engagement", Section: "Consulting", Category: "Fixed Fee", Tag: TagData, Revenue: d(t, "100000")},
			{Code: "B-200", Name: "Beta Retainer", Section: "Consulting", Category: "Retainer", Revenue: d(t, "600000")},
			{Code: "D-400", Name: "Delta Platform", Section: "Engineering", Category: "Fixed Fee", Tag: TagData, Revenue: d(t, "300000")},
		},
		Rates: map[string]decimal.Decimal{
			"emp1": d(t, "50"),
			"emp2": d(t, "80"),
			"emp3": d(t, "100"),
		},
		Hours: []HoursRow{
			{StaffKey: "emp1", Code: "A-100", Hours: d(t, "100"), WorkDate: "2026-01-12"},
			{StaffKey: "emp2", Code: "B-200", Hours: d(t, "200"), WorkDate: "2026-01-13"},
			{StaffKey: "emp3", Code: "CC-SGA", Hours: d(t, "400"), WorkDate: "2026-01-14"},
			{StaffKey: "emp3", Code: "CC-DATA-01", Hours: d(t, "200"), WorkDate: "2026-01-15"},
			{StaffKey: "emp1", Code: "ZZ-900", Hours: d(t, "10"), WorkDate: "2026-01-16"},
		},
		Expenses: []ExpenseRow{
			{Code: "A-100", ExpenseDate: "2026-01-20", Amount: d(t, "2000"), Notes: "travel"},
			{Code: "CC-SGA", ExpenseDate: "2026-01-21", Amount: d(t, "10000"), Notes: "office lease"},
		},
		PnL: []PnLLine{
			{Label: "SG&A", Pool: PoolSGA, Amount: d(t, "50000")},
			{Label: "Data Infrastructure", Pool: PoolData, Amount: d(t, "20000")},
			{Label: "SG&A one-time settlement", Pool: PoolSGA, Amount: d(t, "12345"), Excluded: true},
		},
	}
}

// runPipeline executes the full computation over a record set, exactly
// as the orchestrator sequences it.
func runPipeline(t *testing.T, rs *RecordSet) (*Classification, PoolsDetail, *AggregateOutcome, Totals, []ValidationItem, bool) {
	t.Helper()
	cls := Classify(rs)
	agg := Aggregate(rs, cls)
	pools := DerivePools(rs, cls)
	allocWarnings := Allocate(cls, pools)
	totals := ComputeMargins(cls)
	items, passed := Validate(cls, pools, agg, allocWarnings)
	return cls, pools, agg, totals, items, passed
}
