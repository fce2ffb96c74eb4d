package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Allocate distributes each overhead pool across eligible Revenue
// Centers proportionally to revenue share. SG&A covers every Revenue
// Center; Data and Workplace only the matching tag. A pool with no
// eligible revenue to receive it allocates nothing and is reported.
//
// Iteration is over the sorted code list, so identical inputs always
// produce identical outputs.
func Allocate(cls *Classification, pools PoolsDetail) []ValidationItem {
	var warnings []ValidationItem

	zeroDenominator := func(pool string, total decimal.Decimal) {
		warnings = append(warnings, ValidationItem{
			Check:  "allocation_denominator",
			Status: CheckWarn,
			Message: fmt.Sprintf("%s pool of %s has no eligible tagged revenue; nothing allocated",
				poolLabel(pool), total.StringFixed(2)),
		})
	}

	sgaOK := !pools.TotalRevenue.IsZero()
	if !sgaOK && !pools.SGAPnL.IsZero() {
		zeroDenominator(PoolSGA, pools.SGAPnL)
	}
	dataOK := !pools.DataTaggedRevenue.IsZero()
	if !dataOK && !pools.DataPnL.IsZero() {
		zeroDenominator(PoolData, pools.DataPnL)
	}
	wellnessOK := !pools.WellnessTaggedRevenue.IsZero()
	if !wellnessOK && !pools.WorkplacePnL.IsZero() {
		zeroDenominator(PoolWorkplace, pools.WorkplacePnL)
	}

	for _, code := range cls.Codes {
		rc, ok := cls.RevenueCenters[code]
		if !ok {
			continue
		}
		rc.SGAAllocation = decimal.Zero
		rc.DataAllocation = decimal.Zero
		rc.WorkplaceAllocation = decimal.Zero

		if sgaOK {
			rc.SGAAllocation = rc.Revenue.Div(pools.TotalRevenue).Mul(pools.SGAPnL)
		}
		if rc.Tag == TagData && dataOK {
			rc.DataAllocation = rc.Revenue.Div(pools.DataTaggedRevenue).Mul(pools.DataPnL)
		}
		if rc.Tag == TagWellness && wellnessOK {
			rc.WorkplaceAllocation = rc.Revenue.Div(pools.WellnessTaggedRevenue).Mul(pools.WorkplacePnL)
		}
	}

	return warnings
}
