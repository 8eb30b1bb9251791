package models

// Pagination is the cursor attached to every list payload.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Next returns the page number to request after this one.
func (p Pagination) Next() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page + 1
}

// Page is the {items, pagination} list envelope.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ListParams are the common list query parameters. Zero values are omitted from the request.
type ListParams struct {
	Page     int
	Limit    int
	Sort     string
	Category string
	UserID   string
}
