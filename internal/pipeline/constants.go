package pipeline

// Record outcomes reported to the metrics recorder.
const (
	OutcomeRead     = "read"
	OutcomeInserted = "inserted"
	OutcomeSkipped  = "skipped"
)

// Batch statuses reported to the metrics recorder.
const (
	BatchSucceeded = "succeeded"
	BatchFailed    = "failed"
)

// CSV column names of a transaction batch file.
const (
	ColTransactionID   = "transaction_id"
	ColCustomerID      = "customer_id"
	ColAmount          = "amount"
	ColCurrency        = "currency"
	ColTimestamp       = "timestamp"
	ColTimezone        = "timezone"
	ColStatus          = "status"
	ColProductCategory = "product_category"
)

// RequiredColumns must all be present in the header row of a batch file.
var RequiredColumns = []string{
	ColTransactionID,
	ColCustomerID,
	ColAmount,
	ColCurrency,
	ColTimestamp,
	ColTimezone,
	ColStatus,
	ColProductCategory,
}
