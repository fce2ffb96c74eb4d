package analysis

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrBatchNotFound is returned when no batch exists for the given id.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrAlreadyProcessing is returned when the conditional state
	// transition into processing finds the batch already claimed.
	ErrAlreadyProcessing = errors.New("batch is already processing")
)

// DocumentFormatError marks a fatal structural defect in a source
// document: a required sheet or column is absent. The batch fails.
type DocumentFormatError struct {
	Doc    string // document kind, e.g. pro_forma
	Path   string // storage path, when known
	Detail string
}

func (e *DocumentFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("document format error in %s (%s): %s", e.Doc, e.Path, e.Detail)
	}
	return fmt.Sprintf("document format error in %s: %s", e.Doc, e.Detail)
}

// MissingDocumentsError rejects a run trigger before any state change.
type MissingDocumentsError struct {
	Missing []string
}

func (e *MissingDocumentsError) Error() string {
	return fmt.Sprintf("cannot start processing, missing document references: %v", e.Missing)
}

// RateGap records hours whose staff key has no compensation row. The
// labor cost of those hours is reported as zero, never silently wrong.
type RateGap struct {
	StaffKey string
	Code     string
	Hours    decimal.Decimal
}

func (g RateGap) Error() string {
	return fmt.Sprintf("rate resolution failed for staff %s on %s (%s hours treated as zero cost)",
		g.StaffKey, g.Code, g.Hours.String())
}
