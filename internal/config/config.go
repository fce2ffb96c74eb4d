package config

import "time"

const (
	DefaultTimeZone = "America/New_York"

	// Wall-clock budget for one batch run; the reaper fails anything
	// stuck in processing longer than this.
	BatchTimeout = 60 * time.Second

	// DefaultReaperSchedule checks for stuck batches every minute.
	DefaultReaperSchedule = "*/1 * * * *"

	// AbortOnRateGap controls the unresolved-hourly-rate policy. False:
	// unresolved hours cost zero and the gap is a validation failure.
	// True: any gap aborts the whole batch.
	AbortOnRateGap = false

	// WorkHoursPerYear converts annual salary to an hourly rate when the
	// compensation sheet carries no hourly figure.
	WorkHoursPerYear = 2080
)

// Cost-center recognition. A contract code carrying one of these
// prefixes is internal overhead, never a client engagement.
var CostCenterPrefixes = []string{"CC-", "OH-"}

// Substrings that assign a recognized cost center to the Data
// Infrastructure pool; everything else lands in SG&A. Workplace
// Well-being has no cost-center side.
var DataPoolMarkers = []string{"DATA", "INFRA"}
