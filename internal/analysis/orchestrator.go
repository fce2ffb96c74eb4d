package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"MarginSight/internal/config"
)

// Store is the relational persistence the orchestrator drives. The
// pending→processing transition must be atomic in the datastore: two
// concurrent triggers for the same batch id must not both win.
type Store interface {
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	// MarkProcessing claims the batch with a conditional update and
	// reports whether this caller won the claim.
	MarkProcessing(ctx context.Context, batchID string) (bool, error)
	MarkFailed(ctx context.Context, batchID string, message string) error
	// SaveResult persists the aggregate totals and the full detail
	// snapshot in one transaction, replacing any prior detail rows.
	SaveResult(ctx context.Context, batchID string, res *Result) error
}

// DocumentStore fetches the five source documents from object storage.
type DocumentStore interface {
	FetchAll(ctx context.Context, refs DocumentRefs) (*DocumentSet, error)
}

type Orchestrator struct {
	store Store
	docs  DocumentStore
}

func NewOrchestrator(store Store, docs DocumentStore) *Orchestrator {
	return &Orchestrator{store: store, docs: docs}
}

// Run executes one full analysis for a batch: claim, fetch, extract,
// classify, aggregate, reconcile, allocate, margin, validate, persist.
// Warn-level findings still complete; only document format errors,
// storage failures and persistence failures move the batch to failed.
func (o *Orchestrator) Run(ctx context.Context, batchID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, config.BatchTimeout)
	defer cancel()

	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if missing := batch.Documents.Missing(); len(missing) > 0 {
		// Reject before any state change; the batch stays pending.
		return nil, &MissingDocumentsError{Missing: missing}
	}

	claimed, err := o.store.MarkProcessing(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch %s: %w", batchID, err)
	}
	if !claimed {
		return nil, ErrAlreadyProcessing
	}
	log.Printf("[INFO] batch %s: processing started (month %s)", batchID, batch.Month)
	started := time.Now()

	set, err := o.docs.FetchAll(ctx, batch.Documents)
	if err != nil {
		return nil, o.fail(ctx, batchID, fmt.Errorf("document fetch failed: %w", err))
	}

	rs, err := ExtractAll(set)
	if err != nil {
		return nil, o.fail(ctx, batchID, err)
	}

	cls := Classify(rs)
	agg := Aggregate(rs, cls)
	if config.AbortOnRateGap && len(agg.RateGaps) > 0 {
		return nil, o.fail(ctx, batchID, fmt.Errorf("aborting: %d hours rows have no resolvable rate", len(agg.RateGaps)))
	}
	pools := DerivePools(rs, cls)
	allocWarnings := Allocate(cls, pools)
	totals := ComputeMargins(cls)
	items, passed := Validate(cls, pools, agg, allocWarnings)

	res := &Result{
		Pools:            pools,
		HoursLines:       agg.HoursLines,
		ExpenseLines:     agg.ExpenseLines,
		Totals:           totals,
		Validation:       items,
		ValidationPassed: passed,
	}
	for _, code := range cls.Codes {
		if rc, ok := cls.RevenueCenters[code]; ok {
			res.RevenueCenters = append(res.RevenueCenters, rc)
		} else if cc, ok := cls.CostCenters[code]; ok {
			res.CostCenters = append(res.CostCenters, cc)
		} else if nr, ok := cls.NonRevenue[code]; ok {
			res.NonRevenue = append(res.NonRevenue, nr)
		}
	}
	sortResult(res)

	if err := o.store.SaveResult(ctx, batchID, res); err != nil {
		// A partial multi-table write is a failed run, never a
		// partially valid one; the snapshot transaction rolls back.
		return nil, o.fail(ctx, batchID, fmt.Errorf("failed to persist result: %w", err))
	}

	log.Printf("[INFO] batch %s: completed in %v (validation passed: %v, %d items)",
		batchID, time.Since(started), passed, len(items))
	return res, nil
}

// fail moves the batch to failed with the stored error message, keeping
// the original error for the caller.
func (o *Orchestrator) fail(ctx context.Context, batchID string, cause error) error {
	log.Printf("[ERROR] batch %s: %v", batchID, cause)
	// The run context may already be cancelled or timed out; the status
	// write must still land.
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := o.store.MarkFailed(ctx, batchID, cause.Error()); err != nil {
		log.Printf("[ERROR] batch %s: failed to record failure: %v", batchID, err)
	}
	return cause
}

// sortResult orders entities by their primary monetary figure,
// descending, as the results endpoint serves them.
func sortResult(res *Result) {
	sort.SliceStable(res.RevenueCenters, func(i, j int) bool {
		return res.RevenueCenters[i].Revenue.GreaterThan(res.RevenueCenters[j].Revenue)
	})
	sort.SliceStable(res.CostCenters, func(i, j int) bool {
		return res.CostCenters[i].TotalCost.GreaterThan(res.CostCenters[j].TotalCost)
	})
	sort.SliceStable(res.NonRevenue, func(i, j int) bool {
		return res.NonRevenue[i].TotalCost.GreaterThan(res.NonRevenue[j].TotalCost)
	})
}
