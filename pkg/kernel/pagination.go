package kernel

// Page-size bounds applied by PaginationOptions.Normalize
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationOptions is the page request as read from the query string.
// Stores call Normalize before building LIMIT/OFFSET.
type PaginationOptions struct {
	Page     int
	PageSize int
}

// Normalize clamps Page to >= 1 and PageSize to [1, MaxPageSize]; zero means DefaultPageSize
func (o PaginationOptions) Normalize() PaginationOptions {
	switch {
	case o.PageSize < 1:
		o.PageSize = DefaultPageSize
	case o.PageSize > MaxPageSize:
		o.PageSize = MaxPageSize
	}
	o.Page = max(o.Page, 1)
	return o
}

// Offset is the number of rows before the normalized page
func (o PaginationOptions) Offset() int {
	n := o.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page is the pagination block of a listing response
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// Paginated is one page of T. Items is never nil so it encodes as [].
type Paginated[T any] struct {
	Items []T  `json:"items"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

// NewPaginated derives the page count from total and size
func NewPaginated[T any](items []T, page, size, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Paginated[T]{
		Items: items,
		Page:  Page{Number: page, Size: size, Total: total, Pages: pages},
		Empty: len(items) == 0,
	}
}

// HasNext reports whether a later page exists
func (p Paginated[T]) HasNext() bool {
	return p.Page.Number < p.Page.Pages
}
