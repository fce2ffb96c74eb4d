package analysis

import "github.com/shopspring/decimal"

// ComputeMargins derives margin dollars and margin percent per Revenue
// Center, then the batch totals. Cost Centers and Non-Revenue Clients
// carry no margin; their revenue is zero by definition.
func ComputeMargins(cls *Classification) Totals {
	totals := Totals{
		Revenue:       decimal.Zero,
		LaborCost:     decimal.Zero,
		ExpenseCost:   decimal.Zero,
		MarginDollars: decimal.Zero,
		MarginPercent: decimal.Zero,
	}

	for _, code := range cls.Codes {
		if rc, ok := cls.RevenueCenters[code]; ok {
			rc.MarginDollars = rc.Revenue.
				Sub(rc.LaborCost).
				Sub(rc.ExpenseCost).
				Sub(rc.SGAAllocation).
				Sub(rc.DataAllocation).
				Sub(rc.WorkplaceAllocation)
			if rc.Revenue.IsPositive() {
				rc.MarginPercent = rc.MarginDollars.Mul(hundred).Div(rc.Revenue)
			} else {
				rc.MarginPercent = decimal.Zero
			}
			totals.Revenue = totals.Revenue.Add(rc.Revenue)
			totals.LaborCost = totals.LaborCost.Add(rc.LaborCost)
			totals.ExpenseCost = totals.ExpenseCost.Add(rc.ExpenseCost)
			totals.MarginDollars = totals.MarginDollars.Add(rc.MarginDollars)
			continue
		}
		if cc, ok := cls.CostCenters[code]; ok {
			totals.LaborCost = totals.LaborCost.Add(cc.LaborCost)
			totals.ExpenseCost = totals.ExpenseCost.Add(cc.ExpenseCost)
			continue
		}
		if nr, ok := cls.NonRevenue[code]; ok {
			totals.LaborCost = totals.LaborCost.Add(nr.LaborCost)
			totals.ExpenseCost = totals.ExpenseCost.Add(nr.ExpenseCost)
		}
	}

	if totals.Revenue.IsPositive() {
		totals.MarginPercent = totals.MarginDollars.Mul(hundred).Div(totals.Revenue)
	}
	return totals
}
