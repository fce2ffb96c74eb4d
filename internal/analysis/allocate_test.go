package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateByRevenueShare(t *testing.T) {
	rs := monthFixture(t)
	cls := Classify(rs)
	Aggregate(rs, cls)
	pools := DerivePools(rs, cls)

	warnings := Allocate(cls, pools)
	require.Empty(t, warnings)

	// A-100 holds 10% of total revenue and 25% of Data-tagged revenue.
	a := cls.RevenueCenters["A-100"]
	assert.True(t, a.SGAAllocation.Equal(d(t, "5000")), "got %s", a.SGAAllocation)
	assert.True(t, a.DataAllocation.Equal(d(t, "5000")), "got %s", a.DataAllocation)
	assert.True(t, a.WorkplaceAllocation.IsZero())

	// B-200 is untagged: SG&A only.
	b := cls.RevenueCenters["B-200"]
	assert.True(t, b.SGAAllocation.Equal(d(t, "30000")))
	assert.True(t, b.DataAllocation.IsZero())

	dd := cls.RevenueCenters["D-400"]
	assert.True(t, dd.SGAAllocation.Equal(d(t, "15000")))
	assert.True(t, dd.DataAllocation.Equal(d(t, "15000")))
}

func TestAllocateConservesEachPool(t *testing.T) {
	rs := monthFixture(t)
	cls := Classify(rs)
	Aggregate(rs, cls)
	pools := DerivePools(rs, cls)
	Allocate(cls, pools)

	sumSGA, sumData := d(t, "0"), d(t, "0")
	for _, rc := range cls.RevenueCenters {
		sumSGA = sumSGA.Add(rc.SGAAllocation)
		sumData = sumData.Add(rc.DataAllocation)
	}
	assert.True(t, sumSGA.Sub(pools.SGAPnL).Abs().LessThanOrEqual(d(t, "0.01")),
		"SG&A allocations %s drifted from pool %s", sumSGA, pools.SGAPnL)
	assert.True(t, sumData.Sub(pools.DataPnL).Abs().LessThanOrEqual(d(t, "0.01")),
		"Data allocations %s drifted from pool %s", sumData, pools.DataPnL)
}

func TestAllocateZeroDenominatorAllocatesNothingAndWarns(t *testing.T) {
	rs := &RecordSet{
		Revenue: []RevenueRow{
			{Code: "B-200", Revenue: d(t, "500000")}, // untagged
		},
		PnL: []PnLLine{
			{Label: "Workplace Well-being", Pool: PoolWorkplace, Amount: d(t, "8000")},
		},
	}
	cls := Classify(rs)
	Aggregate(rs, cls)
	pools := DerivePools(rs, cls)

	warnings := Allocate(cls, pools)
	require.Len(t, warnings, 1)
	assert.Equal(t, "allocation_denominator", warnings[0].Check)
	assert.Equal(t, CheckWarn, warnings[0].Status)
	assert.Contains(t, warnings[0].Message, "Workplace Well-being")

	assert.True(t, cls.RevenueCenters["B-200"].WorkplaceAllocation.IsZero())
}

func TestAllocateSoleTaggedCenterAbsorbsWholePool(t *testing.T) {
	rs := &RecordSet{
		Revenue: []RevenueRow{
			{Code: "W-700", Tag: TagWellness, Revenue: d(t, "50000")},
			{Code: "B-200", Revenue: d(t, "950000")},
		},
		PnL: []PnLLine{
			{Label: "Workplace Well-being", Pool: PoolWorkplace, Amount: d(t, "8000")},
		},
	}
	cls := Classify(rs)
	Aggregate(rs, cls)
	pools := DerivePools(rs, cls)
	Allocate(cls, pools)

	assert.True(t, cls.RevenueCenters["W-700"].WorkplaceAllocation.Equal(d(t, "8000")))
	assert.True(t, cls.RevenueCenters["B-200"].WorkplaceAllocation.IsZero())
}
