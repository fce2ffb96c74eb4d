package constants

// Common error messages
const (
	ErrInvalidJSON           = "invalid json or missing fields"
	ErrInvalidRequestBody    = "Invalid request body"
	ErrUserIDRequired        = "user_id required"
	ErrMonthRequired         = "month required (format YYYY-MM)"
	ErrBatchIDRequired       = "batch_id required"
	ErrBatchNotFound         = "Batch not found"
	ErrDB                    = "DB error"
	ErrMethodNotAllowed      = "Method Not Allowed"
	ErrUnknownEntityType     = "unknown entity type; expected revenue_center, cost_center or non_revenue_client"
	ErrEntityNotFound        = "Entity not found in this batch"
	ErrResultsNotAvailable   = "Batch has not completed; results are not available"
	ErrAlreadyProcessing     = "Batch is already processing"
	ErrMissingDocumentPaths  = "All five document paths must be set before processing"
	ErrUnknownDocumentKind   = "unknown document kind"
	ErrFailedToParseJSONBody = "failed to parse JSON body"
)

// DB / SQL error templates
const (
	ErrTxStartFailed  = "failed to start transaction: "
	ErrTxCommitFailed = "failed to commit transaction: "
	ErrQueryFailed    = "query failed: "
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "Content-Type"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
	MonthFormat    = "2006-01"
)
