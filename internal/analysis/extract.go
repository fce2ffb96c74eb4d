package analysis

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"MarginSight/internal/config"

	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// sheet is one tab of a source workbook, rows as raw strings.
type sheet struct {
	Name string
	Rows [][]string
}

type workbook struct {
	Sheets []sheet
}

// openWorkbook parses raw document bytes by extension: xlsx through
// excelize, legacy xls through extrame/xls, csv as a single sheet.
func openWorkbook(path string, data []byte) (*workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("csv parse failed: %w", err)
		}
		return &workbook{Sheets: []sheet{{Name: "Sheet1", Rows: rows}}}, nil
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("xls parse failed: %w", err)
		}
		out := &workbook{}
		for i := 0; i < wb.NumSheets(); i++ {
			ws := wb.GetSheet(i)
			if ws == nil {
				continue
			}
			s := sheet{Name: ws.Name}
			for r := 0; r <= int(ws.MaxRow); r++ {
				row := ws.Row(r)
				if row == nil {
					s.Rows = append(s.Rows, nil)
					continue
				}
				cells := make([]string, row.LastCol()+1)
				for c := row.FirstCol(); c <= row.LastCol(); c++ {
					cells[c] = row.Col(c)
				}
				s.Rows = append(s.Rows, cells)
			}
			out.Sheets = append(out.Sheets, s)
		}
		return out, nil
	default:
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("xlsx parse failed: %w", err)
		}
		defer f.Close()
		out := &workbook{}
		for _, name := range f.GetSheetList() {
			rows, err := f.GetRows(name)
			if err != nil {
				return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
			}
			out.Sheets = append(out.Sheets, sheet{Name: name, Rows: rows})
		}
		return out, nil
	}
}

// findSheet returns the first sheet whose normalized name contains any
// of the markers, or nil.
func (w *workbook) findSheet(markers ...string) *sheet {
	for i := range w.Sheets {
		name := strings.ToLower(strings.ReplaceAll(w.Sheets[i].Name, " ", ""))
		for _, m := range markers {
			if strings.Contains(name, m) {
				return &w.Sheets[i]
			}
		}
	}
	return nil
}

func (w *workbook) firstSheet() *sheet {
	if len(w.Sheets) == 0 {
		return nil
	}
	return &w.Sheets[0]
}

// normalizeHeader converts a raw header cell to a lookup key: trimmed,
// lowercased, spaces and punctuation collapsed to underscores.
func normalizeHeader(h string) string {
	hn := strings.TrimSpace(h)
	hn = strings.Trim(hn, ", \t\n\r'\"`")
	hn = strings.ToLower(hn)
	for _, ch := range []string{" ", "-", "/", "#", "?", "."} {
		hn = strings.ReplaceAll(hn, ch, "_")
	}
	for strings.Contains(hn, "__") {
		hn = strings.ReplaceAll(hn, "__", "_")
	}
	return strings.Trim(hn, "_")
}

// headerIndex locates columns by candidate names. The source exports
// rename headers between periods, so every logical column carries a
// list of spellings it has been seen under.
type headerIndex struct {
	cols map[string]int
}

func buildHeaderIndex(header []string) headerIndex {
	idx := headerIndex{cols: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, seen := idx.cols[key]; !seen {
			idx.cols[key] = i
		}
	}
	return idx
}

func (h headerIndex) find(candidates ...string) (int, bool) {
	for _, c := range candidates {
		if i, ok := h.cols[c]; ok {
			return i, true
		}
	}
	return -1, false
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseAmount cleans a monetary cell: currency symbols, thousand
// separators, and accountant-style parentheses for negatives.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func normalizeDateCell(s string) string {
	layouts := []string{"2006-01-02", "02-01-2006", "01/02/2006", "2 Jan 2006", "2006/01/02", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func truthyCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "billable", "x":
		return true
	}
	return false
}

// excludedCell recognizes the P&L's explicit "nil" exclusion markers.
func excludedCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nil", "(nil)", "excluded", "exclude":
		return true
	}
	return false
}

// dataRows returns the header row and the rows below it, skipping
// leading blank rows.
func dataRows(s *sheet) ([]string, [][]string) {
	for i, row := range s.Rows {
		empty := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			return row, s.Rows[i+1:]
		}
	}
	return nil, nil
}

// ExtractProForma reads the revenue pro forma: one row per contract
// code with revenue and an optional allocation tag.
func ExtractProForma(doc Document) ([]RevenueRow, error) {
	wb, err := openWorkbook(doc.Path, doc.Data)
	if err != nil {
		return nil, &DocumentFormatError{Doc: DocProForma, Path: doc.Path, Detail: err.Error()}
	}
	s := wb.findSheet("proforma")
	if s == nil {
		s = wb.firstSheet()
	}
	if s == nil {
		return nil, &DocumentFormatError{Doc: DocProForma, Path: doc.Path, Detail: "pro forma sheet not found"}
	}
	header, rows := dataRows(s)
	if header == nil {
		return nil, &DocumentFormatError{Doc: DocProForma, Path: doc.Path, Detail: "pro forma sheet is empty"}
	}
	idx := buildHeaderIndex(header)
	codeCol, ok := idx.find("contract_code", "contract", "project_code", "code", "contract_no")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocProForma, Path: doc.Path, Detail: "contract code column not found"}
	}
	revCol, ok := idx.find("revenue", "monthly_revenue", "total_revenue", "amount")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocProForma, Path: doc.Path, Detail: "revenue column not found"}
	}
	nameCol, _ := idx.find("project_name", "project", "name", "description")
	sectionCol, _ := idx.find("section", "practice", "group")
	categoryCol, _ := idx.find("category", "type", "project_type")
	tagCol, _ := idx.find("allocation_tag", "allocation", "pool_tag", "tag")

	var out []RevenueRow
	for _, row := range rows {
		code := strings.ToUpper(cellAt(row, codeCol))
		if code == "" {
			continue
		}
		revenue, _ := parseAmount(cellAt(row, revCol))
		out = append(out, RevenueRow{
			Code:     code,
			Name:     cellAt(row, nameCol),
			Section:  cellAt(row, sectionCol),
			Category: cellAt(row, categoryCol),
			Tag:      normalizeTag(cellAt(row, tagCol)),
			Revenue:  revenue,
		})
	}
	return out, nil
}

func normalizeTag(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "data", "data_infra", "data infrastructure":
		return TagData
	case "wellness", "well-being", "wellbeing", "workplace":
		return TagWellness
	}
	return ""
}

// ExtractCompensation reads the rate table: staff key mapped to an
// hourly rate, or a salary converted at the standard work year.
func ExtractCompensation(doc Document) (map[string]decimal.Decimal, error) {
	wb, err := openWorkbook(doc.Path, doc.Data)
	if err != nil {
		return nil, &DocumentFormatError{Doc: DocCompensation, Path: doc.Path, Detail: err.Error()}
	}
	s := wb.findSheet("comp", "rate")
	if s == nil {
		s = wb.firstSheet()
	}
	if s == nil {
		return nil, &DocumentFormatError{Doc: DocCompensation, Path: doc.Path, Detail: "compensation sheet not found"}
	}
	header, rows := dataRows(s)
	if header == nil {
		return nil, &DocumentFormatError{Doc: DocCompensation, Path: doc.Path, Detail: "compensation sheet is empty"}
	}
	idx := buildHeaderIndex(header)
	staffCol, ok := idx.find("staff_key", "staff_id", "employee_id", "employee", "staff")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocCompensation, Path: doc.Path, Detail: "staff key column not found"}
	}
	rateCol, hasRate := idx.find("hourly_rate", "hourly_cost", "rate")
	salaryCol, hasSalary := idx.find("annual_salary", "salary")
	if !hasRate && !hasSalary {
		return nil, &DocumentFormatError{Doc: DocCompensation, Path: doc.Path, Detail: "neither hourly rate nor salary column found"}
	}

	rates := make(map[string]decimal.Decimal)
	for _, row := range rows {
		staff := cellAt(row, staffCol)
		if staff == "" {
			continue
		}
		if hasRate {
			if rate, ok := parseAmount(cellAt(row, rateCol)); ok && rate.IsPositive() {
				rates[staff] = rate
				continue
			}
		}
		if hasSalary {
			if salary, ok := parseAmount(cellAt(row, salaryCol)); ok && salary.IsPositive() {
				rates[staff] = salary.Div(decimal.NewFromInt(config.WorkHoursPerYear))
			}
		}
	}
	return rates, nil
}

// ExtractHours reads the time-tracking export: one row per
// staff/day/contract.
func ExtractHours(doc Document) ([]HoursRow, error) {
	wb, err := openWorkbook(doc.Path, doc.Data)
	if err != nil {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: err.Error()}
	}
	s := wb.firstSheet()
	if s == nil {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: "hours sheet not found"}
	}
	header, rows := dataRows(s)
	if header == nil {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: "hours sheet is empty"}
	}
	idx := buildHeaderIndex(header)
	staffCol, ok := idx.find("staff_key", "staff_id", "employee_id", "employee", "staff")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: "staff key column not found"}
	}
	codeCol, ok := idx.find("contract_code", "contract", "project_code", "code")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: "contract code column not found"}
	}
	hoursCol, ok := idx.find("hours", "hours_worked", "qty", "quantity")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocHours, Path: doc.Path, Detail: "hours column not found"}
	}
	dateCol, _ := idx.find("date", "work_date", "day")

	var out []HoursRow
	for _, row := range rows {
		staff := cellAt(row, staffCol)
		code := strings.ToUpper(cellAt(row, codeCol))
		if staff == "" || code == "" {
			continue
		}
		hours, ok := parseAmount(cellAt(row, hoursCol))
		if !ok || hours.IsZero() {
			continue
		}
		out = append(out, HoursRow{
			StaffKey: staff,
			Code:     code,
			Hours:    hours,
			WorkDate: normalizeDateCell(cellAt(row, dateCol)),
		})
	}
	return out, nil
}

// ExtractExpenses reads the billable expense export. Non-billable rows
// are dropped here, before any aggregation sees them.
func ExtractExpenses(doc Document) ([]ExpenseRow, error) {
	wb, err := openWorkbook(doc.Path, doc.Data)
	if err != nil {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: err.Error()}
	}
	s := wb.firstSheet()
	if s == nil {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: "expenses sheet not found"}
	}
	header, rows := dataRows(s)
	if header == nil {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: "expenses sheet is empty"}
	}
	idx := buildHeaderIndex(header)
	codeCol, ok := idx.find("contract_code", "contract", "project_code", "code")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: "contract code column not found"}
	}
	amountCol, ok := idx.find("amount", "expense_amount", "total")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: "amount column not found"}
	}
	billableCol, hasBillable := idx.find("billable", "is_billable", "billable_flag")
	if !hasBillable {
		return nil, &DocumentFormatError{Doc: DocExpenses, Path: doc.Path, Detail: "billable flag column not found"}
	}
	dateCol, _ := idx.find("date", "expense_date")
	notesCol, _ := idx.find("notes", "note", "memo", "description")

	var out []ExpenseRow
	for _, row := range rows {
		code := strings.ToUpper(cellAt(row, codeCol))
		if code == "" {
			continue
		}
		if !truthyCell(cellAt(row, billableCol)) {
			continue
		}
		amount, ok := parseAmount(cellAt(row, amountCol))
		if !ok {
			continue
		}
		out = append(out, ExpenseRow{
			Code:        code,
			ExpenseDate: normalizeDateCell(cellAt(row, dateCol)),
			Amount:      amount,
			Notes:       cellAt(row, notesCol),
		})
	}
	return out, nil
}

// ExtractProfitLoss reads the income statement and keeps the labeled
// pool lines. Lines carrying an explicit "nil" exclusion marker are
// retained with the Excluded flag so the reconciler can report what was
// left out of each pool.
func ExtractProfitLoss(doc Document) ([]PnLLine, error) {
	wb, err := openWorkbook(doc.Path, doc.Data)
	if err != nil {
		return nil, &DocumentFormatError{Doc: DocProfitLoss, Path: doc.Path, Detail: err.Error()}
	}
	s := wb.findSheet("incomestatement", "profitloss", "p&l", "pl")
	if s == nil {
		s = wb.firstSheet()
	}
	if s == nil {
		return nil, &DocumentFormatError{Doc: DocProfitLoss, Path: doc.Path, Detail: "income statement sheet not found"}
	}
	header, rows := dataRows(s)
	if header == nil {
		return nil, &DocumentFormatError{Doc: DocProfitLoss, Path: doc.Path, Detail: "income statement sheet is empty"}
	}
	idx := buildHeaderIndex(header)
	labelCol, ok := idx.find("line_item", "label", "account", "description")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocProfitLoss, Path: doc.Path, Detail: "line item column not found"}
	}
	amountCol, ok := idx.find("amount", "value", "total")
	if !ok {
		return nil, &DocumentFormatError{Doc: DocProfitLoss, Path: doc.Path, Detail: "amount column not found"}
	}
	excludeCol, _ := idx.find("excluded", "exclude")

	var out []PnLLine
	for _, row := range rows {
		label := cellAt(row, labelCol)
		if label == "" {
			continue
		}
		pool := poolForLabel(label)
		if pool == "" {
			continue
		}
		amountCell := cellAt(row, amountCol)
		excluded := excludedCell(amountCell)
		if excludeCol >= 0 && excludedCell(cellAt(row, excludeCol)) {
			excluded = true
		}
		amount := decimal.Zero
		if !excludedCell(amountCell) {
			amount, _ = parseAmount(amountCell)
		}
		out = append(out, PnLLine{Label: label, Pool: pool, Amount: amount, Excluded: excluded})
	}
	return out, nil
}

// poolForLabel maps a P&L line label to its overhead pool.
func poolForLabel(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "sg&a"), strings.Contains(l, "sga"),
		strings.Contains(l, "general & administrative"), strings.Contains(l, "general and administrative"),
		strings.Contains(l, "selling, general"):
		return PoolSGA
	case strings.Contains(l, "data infrastructure"), strings.Contains(l, "data infra"):
		return PoolData
	case strings.Contains(l, "workplace well"), strings.Contains(l, "well-being"), strings.Contains(l, "wellbeing"):
		return PoolWorkplace
	}
	return ""
}

// ExtractAll runs the five extractors over a fetched document set.
func ExtractAll(set *DocumentSet) (*RecordSet, error) {
	revenue, err := ExtractProForma(set.ProForma)
	if err != nil {
		return nil, err
	}
	rates, err := ExtractCompensation(set.Compensation)
	if err != nil {
		return nil, err
	}
	hours, err := ExtractHours(set.Hours)
	if err != nil {
		return nil, err
	}
	expenses, err := ExtractExpenses(set.Expenses)
	if err != nil {
		return nil, err
	}
	pnl, err := ExtractProfitLoss(set.ProfitLoss)
	if err != nil {
		return nil, err
	}
	return &RecordSet{
		Revenue:  revenue,
		Rates:    rates,
		Hours:    hours,
		Expenses: expenses,
		PnL:      pnl,
	}, nil
}
