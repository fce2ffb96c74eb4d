package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findItems(items []ValidationItem, check string) []ValidationItem {
	var out []ValidationItem
	for _, it := range items {
		if it.Check == check {
			out = append(out, it)
		}
	}
	return out
}

func TestValidateCleanMonthPassesWithNonRevenueWarning(t *testing.T) {
	_, _, _, _, items, passed := runPipeline(t, monthFixture(t))

	assert.True(t, passed, "warn items must not block completion")

	part := findItems(items, "partition_completeness")
	require.Len(t, part, 1)
	assert.Equal(t, CheckPass, part[0].Status)

	recon := findItems(items, "pool_reconciliation")
	require.Len(t, recon, 2)
	for _, it := range recon {
		assert.Equal(t, CheckPass, it.Status, it.Message)
	}

	rate := findItems(items, "rate_resolution")
	require.Len(t, rate, 1)
	assert.Equal(t, CheckPass, rate[0].Status)

	alloc := findItems(items, "allocation_reconciliation")
	require.Len(t, alloc, 3)
	for _, it := range alloc {
		assert.Equal(t, CheckPass, it.Status, it.Message)
	}

	nonrev := findItems(items, "non_revenue_presence")
	require.Len(t, nonrev, 1)
	assert.Equal(t, CheckWarn, nonrev[0].Status)
	assert.Contains(t, nonrev[0].Message, "ZZ-900")
}

func TestValidateRateGapFailsTheVerdict(t *testing.T) {
	rs := monthFixture(t)
	rs.Hours = append(rs.Hours, HoursRow{StaffKey: "ghost", Code: "A-100", Hours: d(t, "12")})

	_, _, _, _, items, passed := runPipeline(t, rs)

	assert.False(t, passed)
	rate := findItems(items, "rate_resolution")
	require.Len(t, rate, 1)
	assert.Equal(t, CheckFail, rate[0].Status)
	assert.Contains(t, rate[0].Message, "ghost")
	assert.Contains(t, rate[0].Message, "12")
}

func TestValidatePoolMismatchWarnsButCompletes(t *testing.T) {
	rs := monthFixture(t)
	// Inflate the SG&A P&L well past the cost-center cross total.
	rs.PnL[0].Amount = d(t, "58000")

	_, _, _, _, items, passed := runPipeline(t, rs)

	assert.True(t, passed, "a pool mismatch is a warning, not a failure")
	recon := findItems(items, "pool_reconciliation")
	require.Len(t, recon, 2)
	var sga ValidationItem
	for _, it := range recon {
		if it.Status == CheckWarn {
			sga = it
		}
	}
	require.Equal(t, CheckWarn, sga.Status)
	assert.Contains(t, sga.Message, "58000.00")
	assert.Contains(t, sga.Message, "50000.00")
}

func TestValidateDriftWithinToleranceStillReconciles(t *testing.T) {
	rs := monthFixture(t)
	// 60 cents of drift on a 50k pool sits under the $1 cap.
	rs.PnL[0].Amount = d(t, "50000.60")

	_, _, _, _, items, passed := runPipeline(t, rs)

	assert.True(t, passed)
	for _, it := range findItems(items, "pool_reconciliation") {
		assert.Equal(t, CheckPass, it.Status, it.Message)
	}
}

func TestValidateAmbiguousCodeWarns(t *testing.T) {
	rs := monthFixture(t)
	rs.Revenue = append(rs.Revenue, RevenueRow{Code: "CC-RESOLD", Revenue: d(t, "100")})

	_, _, _, _, items, passed := runPipeline(t, rs)

	assert.True(t, passed)
	amb := findItems(items, "partition_ambiguity")
	require.Len(t, amb, 1)
	assert.Equal(t, CheckWarn, amb[0].Status)
	assert.Contains(t, amb[0].Message, "CC-RESOLD")
}

func TestValidateNoUnbilledActivityPasses(t *testing.T) {
	rs := monthFixture(t)
	// Drop the ZZ-900 hours so no non-revenue client exists.
	var kept []HoursRow
	for _, h := range rs.Hours {
		if h.Code != "ZZ-900" {
			kept = append(kept, h)
		}
	}
	rs.Hours = kept

	_, _, _, _, items, passed := runPipeline(t, rs)

	assert.True(t, passed)
	nonrev := findItems(items, "non_revenue_presence")
	require.Len(t, nonrev, 1)
	assert.Equal(t, CheckPass, nonrev[0].Status)
}
