package analysis

import "github.com/shopspring/decimal"

var (
	oneDollar        = decimal.NewFromInt(1)
	reconcileFraction = decimal.NewFromFloat(0.0001) // 0.01% of the pool
	hundred           = decimal.NewFromInt(100)
)

// PoolTolerance is the drift allowed when two independently derived
// figures for the same pool are compared: the lesser of $1 or 0.01% of
// the pool. Cents-level rounding drift is expected, not an error.
func PoolTolerance(pool decimal.Decimal) decimal.Decimal {
	fraction := pool.Abs().Mul(reconcileFraction)
	if fraction.LessThan(oneDollar) {
		return fraction
	}
	return oneDollar
}

// DerivePools computes the pool totals two independent ways: from the
// labeled P&L lines (minus explicit exclusions) and, for SG&A and Data,
// cross-derived from the classified Cost Centers. It also fixes the
// revenue denominators the allocation engine divides by.
func DerivePools(rs *RecordSet, cls *Classification) PoolsDetail {
	d := PoolsDetail{
		SGAPnL:                decimal.Zero,
		DataPnL:               decimal.Zero,
		WorkplacePnL:          decimal.Zero,
		ExcludedAmount:        decimal.Zero,
		SGACostCenters:        decimal.Zero,
		DataCostCenters:       decimal.Zero,
		TotalRevenue:          decimal.Zero,
		DataTaggedRevenue:     decimal.Zero,
		WellnessTaggedRevenue: decimal.Zero,
	}

	for _, line := range rs.PnL {
		if line.Excluded {
			d.ExcludedAmount = d.ExcludedAmount.Add(line.Amount)
			continue
		}
		switch line.Pool {
		case PoolSGA:
			d.SGAPnL = d.SGAPnL.Add(line.Amount)
		case PoolData:
			d.DataPnL = d.DataPnL.Add(line.Amount)
		case PoolWorkplace:
			d.WorkplacePnL = d.WorkplacePnL.Add(line.Amount)
		}
	}

	for _, code := range cls.Codes {
		if cc, ok := cls.CostCenters[code]; ok {
			switch cc.Pool {
			case PoolSGA:
				d.SGACostCenters = d.SGACostCenters.Add(cc.TotalCost)
			case PoolData:
				d.DataCostCenters = d.DataCostCenters.Add(cc.TotalCost)
			}
			continue
		}
		if rc, ok := cls.RevenueCenters[code]; ok {
			d.TotalRevenue = d.TotalRevenue.Add(rc.Revenue)
			switch rc.Tag {
			case TagData:
				d.DataTaggedRevenue = d.DataTaggedRevenue.Add(rc.Revenue)
			case TagWellness:
				d.WellnessTaggedRevenue = d.WellnessTaggedRevenue.Add(rc.Revenue)
			}
		}
	}

	return d
}
