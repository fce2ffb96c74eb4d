package analysis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate runs the fixed, ordered consistency suite and returns the
// item list plus the overall verdict. Warn items never block
// completion; the verdict fails only on fail items.
func Validate(cls *Classification, pools PoolsDetail, agg *AggregateOutcome, allocWarnings []ValidationItem) ([]ValidationItem, bool) {
	var items []ValidationItem

	// 1. Partition completeness: every observed code in exactly one bucket.
	overlap := 0
	unclassified := 0
	for _, code := range cls.Codes {
		n := 0
		if _, ok := cls.RevenueCenters[code]; ok {
			n++
		}
		if _, ok := cls.CostCenters[code]; ok {
			n++
		}
		if _, ok := cls.NonRevenue[code]; ok {
			n++
		}
		if n == 0 {
			unclassified++
		}
		if n > 1 {
			overlap++
		}
	}
	if unclassified == 0 && overlap == 0 {
		items = append(items, ValidationItem{
			Check:  "partition_completeness",
			Status: CheckPass,
			Message: fmt.Sprintf("%d contract codes partitioned: %d revenue centers, %d cost centers, %d non-revenue clients",
				len(cls.Codes), len(cls.RevenueCenters), len(cls.CostCenters), len(cls.NonRevenue)),
		})
	} else {
		items = append(items, ValidationItem{
			Check:   "partition_completeness",
			Status:  CheckFail,
			Message: fmt.Sprintf("partition broken: %d unclassified, %d multiply classified", unclassified, overlap),
		})
	}
	for _, code := range cls.Ambiguous {
		items = append(items, ValidationItem{
			Check:   "partition_ambiguity",
			Status:  CheckWarn,
			Message: fmt.Sprintf("contract %s matches the cost-center pattern but has client revenue; treated as a revenue center", code),
		})
	}

	// 2. Pool reconciliation: P&L-derived vs cost-center-derived.
	items = append(items, reconcileItem("SG&A", pools.SGAPnL, pools.SGACostCenters))
	items = append(items, reconcileItem("Data Infrastructure", pools.DataPnL, pools.DataCostCenters))

	// 3. Rate resolution completeness.
	if len(agg.RateGaps) == 0 {
		items = append(items, ValidationItem{
			Check:   "rate_resolution",
			Status:  CheckPass,
			Message: "every hours row resolved to a compensation rate",
		})
	} else {
		staff := make(map[string]decimal.Decimal)
		for _, gap := range agg.RateGaps {
			staff[gap.StaffKey] = staff[gap.StaffKey].Add(gap.Hours)
		}
		var parts []string
		for _, gap := range agg.RateGaps {
			if hours, pending := staff[gap.StaffKey]; pending {
				parts = append(parts, fmt.Sprintf("%s (%s h)", gap.StaffKey, hours.String()))
				delete(staff, gap.StaffKey)
			}
		}
		items = append(items, ValidationItem{
			Check:   "rate_resolution",
			Status:  CheckFail,
			Message: "no compensation rate for: " + strings.Join(parts, ", ") + "; their labor cost is reported as zero",
		})
	}

	// 4. Allocation-sum reconciliation: Σ allocations per pool vs pool total.
	sumSGA, sumData, sumWellness := decimal.Zero, decimal.Zero, decimal.Zero
	for _, code := range cls.Codes {
		if rc, ok := cls.RevenueCenters[code]; ok {
			sumSGA = sumSGA.Add(rc.SGAAllocation)
			sumData = sumData.Add(rc.DataAllocation)
			sumWellness = sumWellness.Add(rc.WorkplaceAllocation)
		}
	}
	items = append(items, allocationSumItem("SG&A", sumSGA, pools.SGAPnL, !pools.TotalRevenue.IsZero()))
	items = append(items, allocationSumItem("Data Infrastructure", sumData, pools.DataPnL, !pools.DataTaggedRevenue.IsZero()))
	items = append(items, allocationSumItem("Workplace Well-being", sumWellness, pools.WorkplacePnL, !pools.WellnessTaggedRevenue.IsZero()))

	// Zero-denominator warnings from the allocation engine.
	items = append(items, allocWarnings...)

	// 5. Non-revenue presence: real but unbilled activity, never fatal.
	if len(cls.NonRevenue) == 0 {
		items = append(items, ValidationItem{
			Check:   "non_revenue_presence",
			Status:  CheckPass,
			Message: "no unbilled activity detected",
		})
	} else {
		var codes []string
		for _, code := range cls.Codes {
			if _, ok := cls.NonRevenue[code]; ok {
				codes = append(codes, code)
			}
		}
		items = append(items, ValidationItem{
			Check:   "non_revenue_presence",
			Status:  CheckWarn,
			Message: fmt.Sprintf("%d contract codes have activity but no recognized revenue: %s", len(codes), strings.Join(codes, ", ")),
		})
	}

	passed := true
	for _, item := range items {
		if item.Status == CheckFail {
			passed = false
			break
		}
	}
	return items, passed
}

func reconcileItem(label string, pnl, crossDerived decimal.Decimal) ValidationItem {
	diff := pnl.Sub(crossDerived).Abs()
	if diff.LessThanOrEqual(PoolTolerance(pnl)) {
		return ValidationItem{
			Check:   "pool_reconciliation",
			Status:  CheckPass,
			Message: fmt.Sprintf("%s pool reconciled: P&L %s vs cost centers %s", label, pnl.StringFixed(2), crossDerived.StringFixed(2)),
		}
	}
	return ValidationItem{
		Check:  "pool_reconciliation",
		Status: CheckWarn,
		Message: fmt.Sprintf("%s pool mismatch: P&L %s vs cost centers %s (diff %s)",
			label, pnl.StringFixed(2), crossDerived.StringFixed(2), diff.StringFixed(2)),
	}
}

func allocationSumItem(label string, allocated, pool decimal.Decimal, hadDenominator bool) ValidationItem {
	if !hadDenominator {
		// Nothing could be allocated; the zero-denominator warning
		// already covers it.
		return ValidationItem{
			Check:   "allocation_reconciliation",
			Status:  CheckPass,
			Message: fmt.Sprintf("%s pool had no eligible revenue; no allocations to reconcile", label),
		}
	}
	diff := allocated.Sub(pool).Abs()
	if diff.LessThanOrEqual(PoolTolerance(pool)) {
		return ValidationItem{
			Check:   "allocation_reconciliation",
			Status:  CheckPass,
			Message: fmt.Sprintf("%s allocations sum to %s against a pool of %s", label, allocated.StringFixed(2), pool.StringFixed(2)),
		}
	}
	return ValidationItem{
		Check:  "allocation_reconciliation",
		Status: CheckWarn,
		Message: fmt.Sprintf("%s allocations sum to %s but the pool is %s (diff %s)",
			label, allocated.StringFixed(2), pool.StringFixed(2), diff.StringFixed(2)),
	}
}
