package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractProFormaCSV(t *testing.T) {
	doc := csvDoc(t, "2026-01/proforma.csv", [][]string{
		{"Contract Code", "Project Name", "Section", "Category", "Revenue", "Allocation Tag"},
		{"a-100", "Alpha Engagement", "Consulting", "Fixed Fee", "$100,000.00", "Data"},
		{"B-200", "Beta Retainer", "Consulting", "Retainer", "600000", ""},
		{"W-700", "Wellness Program", "People", "Retainer", "(2,500)", "well-being"},
		{"", "orphan row without a code", "", "", "99", ""},
	})

	rows, err := ExtractProForma(doc)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "A-100", rows[0].Code, "codes are uppercased")
	assert.Equal(t, TagData, rows[0].Tag)
	assert.True(t, rows[0].Revenue.Equal(d(t, "100000")))

	assert.Equal(t, "", rows[1].Tag)

	assert.Equal(t, TagWellness, rows[2].Tag)
	assert.True(t, rows[2].Revenue.Equal(d(t, "-2500")), "parenthesized amounts are negative")
}

func TestExtractProFormaMissingRevenueColumn(t *testing.T) {
	doc := csvDoc(t, "broken.csv", [][]string{
		{"Contract Code", "Project Name"},
		{"A-100", "Alpha"},
	})

	_, err := ExtractProForma(doc)
	var ferr *DocumentFormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, DocProForma, ferr.Doc)
	assert.Contains(t, ferr.Detail, "revenue column")
}

func TestExtractCompensationHourlyAndSalary(t *testing.T) {
	doc := csvDoc(t, "comp.csv", [][]string{
		{"Staff Key", "Hourly Rate", "Annual Salary"},
		{"emp1", "75.50", ""},
		{"emp2", "", "104,000"},
		{"emp3", "0", "0"},
	})

	rates, err := ExtractCompensation(doc)
	require.NoError(t, err)
	require.Len(t, rates, 2)

	assert.True(t, rates["emp1"].Equal(d(t, "75.50")))
	// 104000 / 2080 standard work hours.
	assert.True(t, rates["emp2"].Equal(d(t, "50")), "got %s", rates["emp2"])
	assert.NotContains(t, rates, "emp3")
}

func TestExtractCompensationHeaderVariants(t *testing.T) {
	doc := csvDoc(t, "comp.csv", [][]string{
		{"Employee ID", "Rate"},
		{"emp9", "42"},
	})
	rates, err := ExtractCompensation(doc)
	require.NoError(t, err)
	assert.True(t, rates["emp9"].Equal(d(t, "42")))
}

func TestExtractHoursSkipsZeroAndBlankRows(t *testing.T) {
	doc := csvDoc(t, "hours.csv", [][]string{
		{"Staff Key", "Contract Code", "Date", "Hours"},
		{"emp1", "a-100", "2026-01-12", "7.5"},
		{"emp1", "A-100", "2026-01-13", "0"},
		{"", "A-100", "2026-01-14", "4"},
		{"emp2", "", "2026-01-14", "4"},
	})

	rows, err := ExtractHours(doc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "emp1", rows[0].StaffKey)
	assert.Equal(t, "A-100", rows[0].Code)
	assert.Equal(t, "2026-01-12", rows[0].WorkDate)
	assert.True(t, rows[0].Hours.Equal(d(t, "7.5")))
}

func TestExtractExpensesDropsNonBillable(t *testing.T) {
	doc := csvDoc(t, "expenses.csv", [][]string{
		{"Contract Code", "Expense Date", "Amount", "Billable", "Notes"},
		{"A-100", "2026-01-20", "$1,250.00", "Yes", "client travel"},
		{"A-100", "2026-01-21", "400", "No", "team lunch"},
		{"B-200", "2026-01-22", "90", "y", ""},
	})

	rows, err := ExtractExpenses(doc)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Amount.Equal(d(t, "1250")))
	assert.Equal(t, "client travel", rows[0].Notes)
	assert.Equal(t, "B-200", rows[1].Code)
}

func TestExtractExpensesRequiresBillableColumn(t *testing.T) {
	doc := csvDoc(t, "expenses.csv", [][]string{
		{"Contract Code", "Amount"},
		{"A-100", "10"},
	})
	_, err := ExtractExpenses(doc)
	var ferr *DocumentFormatError
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, ferr.Detail, "billable")
}

func TestExtractProfitLossPoolsAndExclusions(t *testing.T) {
	doc := csvDoc(t, "pnl.csv", [][]string{
		{"Line Item", "Amount"},
		{"Revenue", "1,000,000"},
		{"Selling, General & Administrative", "50,000"},
		{"Data Infrastructure", "20,000"},
		{"Workplace Well-being", "8,000"},
		{"SG&A legal settlement", "nil"},
		{"Interest expense", "1,200"},
	})

	lines, err := ExtractProfitLoss(doc)
	require.NoError(t, err)
	require.Len(t, lines, 4, "unpooled lines are dropped")

	assert.Equal(t, PoolSGA, lines[0].Pool)
	assert.True(t, lines[0].Amount.Equal(d(t, "50000")))
	assert.Equal(t, PoolData, lines[1].Pool)
	assert.Equal(t, PoolWorkplace, lines[2].Pool)

	assert.True(t, lines[3].Excluded, "nil-marked lines carry the excluded flag")
	assert.True(t, lines[3].Amount.IsZero())
}

func TestExtractProfitLossXLSXByNamedSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Summary"))
	_, err := f.NewSheet("Income Statement")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Income Statement", "A1", &[]interface{}{"Line Item", "Amount"}))
	require.NoError(t, f.SetSheetRow("Income Statement", "A2", &[]interface{}{"SG&A", "50000"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	lines, err := ExtractProfitLoss(Document{Path: "pnl.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, PoolSGA, lines[0].Pool)
	assert.True(t, lines[0].Amount.Equal(d(t, "50000")))
}

func TestExtractAllBuildsARecordSet(t *testing.T) {
	set := &DocumentSet{
		ProForma: csvDoc(t, "proforma.csv", [][]string{
			{"Contract Code", "Revenue", "Allocation Tag"},
			{"A-100", "100000", "Data"},
		}),
		Compensation: csvDoc(t, "comp.csv", [][]string{
			{"Staff Key", "Hourly Rate"},
			{"emp1", "50"},
		}),
		Hours: csvDoc(t, "hours.csv", [][]string{
			{"Staff Key", "Contract Code", "Date", "Hours"},
			{"emp1", "A-100", "2026-01-12", "8"},
		}),
		Expenses: csvDoc(t, "expenses.csv", [][]string{
			{"Contract Code", "Amount", "Billable"},
			{"A-100", "250", "yes"},
		}),
		ProfitLoss: csvDoc(t, "pnl.csv", [][]string{
			{"Line Item", "Amount"},
			{"SG&A", "50000"},
		}),
	}

	rs, err := ExtractAll(set)
	require.NoError(t, err)
	assert.Len(t, rs.Revenue, 1)
	assert.Len(t, rs.Rates, 1)
	assert.Len(t, rs.Hours, 1)
	assert.Len(t, rs.Expenses, 1)
	assert.Len(t, rs.PnL, 1)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "contract_code", normalizeHeader("  Contract Code "))
	assert.Equal(t, "hourly_rate", normalizeHeader("Hourly-Rate"))
	assert.Equal(t, "is_billable", normalizeHeader("Is Billable?"))
	assert.Equal(t, "", normalizeHeader("   "))
}
