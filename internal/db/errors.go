package db

// Op constants map to backend API operation names for error context.
const (
	OpPing          = "ping"
	OpIndex         = "index"
	OpGet           = "get"
	OpExists        = "exists"
	OpDelete        = "delete"
	OpBulk          = "bulk"
	OpDeleteByQuery = "delete_by_query"
	OpSearch        = "search"
	OpCount         = "count"
	OpScroll        = "scroll"
	OpClearScroll   = "clear_scroll"
	OpCreateIndex   = "indices.create"
	OpDeleteIndex   = "indices.delete"
	OpIndexExists   = "indices.exists"
	OpPutMapping    = "indices.put_mapping"
	OpGetMapping    = "indices.get_mapping"
	OpRefresh       = "indices.refresh"
)

// Error wraps an underlying error with the operation name and, when the
// backend reported one, the response status code.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
