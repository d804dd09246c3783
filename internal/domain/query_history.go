package domain

import "time"

// Query history statuses.
const (
	QueryStatusSuccess = "SUCCESS"
	QueryStatusError   = "ERROR"
)

// QueryHistoryEntry represents a single dataset query execution record.
type QueryHistoryEntry struct {
	ID           string
	Organization string
	Dataset      string
	Principal    string
	Description  *string
	CompiledSQL  *string
	Status       string
	ErrorMessage *string
	DurationMs   int64
	RowsReturned *int64
	CreatedAt    time.Time
}

// QueryHistoryFilter holds filter parameters for listing query history.
type QueryHistoryFilter struct {
	Organization *string
	Dataset      *string
	Status       *string
	Page         PageRequest
}
