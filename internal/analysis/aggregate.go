package analysis

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AggregateOutcome carries the drill-down line items and the rate gaps
// discovered while rolling up costs.
type AggregateOutcome struct {
	HoursLines   []HoursLine
	ExpenseLines []ExpenseLine
	RateGaps     []RateGap
}

// Aggregate rolls labor cost (hours × resolved hourly rate) and
// billable expense cost up to each classified entity. Hours whose staff
// key has no compensation row contribute zero labor cost and are
// reported as rate gaps; the hours themselves still count.
func Aggregate(rs *RecordSet, cls *Classification) *AggregateOutcome {
	out := &AggregateOutcome{}

	addHours := func(code string, hours, labor decimal.Decimal) {
		if rc, ok := cls.RevenueCenters[code]; ok {
			rc.Hours = rc.Hours.Add(hours)
			rc.LaborCost = rc.LaborCost.Add(labor)
			return
		}
		if cc, ok := cls.CostCenters[code]; ok {
			cc.Hours = cc.Hours.Add(hours)
			cc.LaborCost = cc.LaborCost.Add(labor)
			return
		}
		if nr, ok := cls.NonRevenue[code]; ok {
			nr.Hours = nr.Hours.Add(hours)
			nr.LaborCost = nr.LaborCost.Add(labor)
		}
	}

	addExpense := func(code string, amount decimal.Decimal) {
		if rc, ok := cls.RevenueCenters[code]; ok {
			rc.ExpenseCost = rc.ExpenseCost.Add(amount)
			return
		}
		if cc, ok := cls.CostCenters[code]; ok {
			cc.ExpenseCost = cc.ExpenseCost.Add(amount)
			return
		}
		if nr, ok := cls.NonRevenue[code]; ok {
			nr.ExpenseCost = nr.ExpenseCost.Add(amount)
		}
	}

	for _, h := range rs.Hours {
		rate, resolved := rs.Rates[h.StaffKey]
		labor := decimal.Zero
		if resolved {
			labor = h.Hours.Mul(rate)
		} else {
			rate = decimal.Zero
			out.RateGaps = append(out.RateGaps, RateGap{StaffKey: h.StaffKey, Code: h.Code, Hours: h.Hours})
		}
		addHours(h.Code, h.Hours, labor)
		out.HoursLines = append(out.HoursLines, HoursLine{
			Code:         h.Code,
			StaffKey:     h.StaffKey,
			WorkDate:     h.WorkDate,
			Hours:        h.Hours,
			HourlyRate:   rate,
			LaborCost:    labor,
			RateResolved: resolved,
		})
	}

	for _, e := range rs.Expenses {
		addExpense(e.Code, e.Amount)
		out.ExpenseLines = append(out.ExpenseLines, ExpenseLine{
			Code:        e.Code,
			ExpenseDate: e.ExpenseDate,
			Amount:      e.Amount,
			Notes:       e.Notes,
		})
	}

	for _, cc := range cls.CostCenters {
		cc.TotalCost = cc.LaborCost.Add(cc.ExpenseCost)
	}
	for _, nr := range cls.NonRevenue {
		nr.TotalCost = nr.LaborCost.Add(nr.ExpenseCost)
	}

	sort.Slice(out.HoursLines, func(i, j int) bool {
		a, b := out.HoursLines[i], out.HoursLines[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.StaffKey != b.StaffKey {
			return a.StaffKey < b.StaffKey
		}
		return a.WorkDate < b.WorkDate
	})
	sort.Slice(out.ExpenseLines, func(i, j int) bool {
		a, b := out.ExpenseLines[i], out.ExpenseLines[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ExpenseDate < b.ExpenseDate
	})

	return out
}
