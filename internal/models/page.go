package models

import (
	"fmt"
	"math"
	"strings"
)

// Direction is the direction of a single sort term.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Order sorts by one field.
type Order struct {
	Field     string
	Direction Direction
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field, Direction: Ascending} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

// Sort is an ordered list of sort terms. The zero value is unsorted.
type Sort struct {
	Orders []Order
}

// Unsorted returns the explicit "no ordering" marker.
func Unsorted() Sort { return Sort{} }

// SortBy builds a [Sort] from orders, first term taking precedence.
func SortBy(orders ...Order) Sort {
	return Sort{Orders: orders}
}

// IsSorted reports whether at least one term is present.
func (s Sort) IsSorted() bool { return len(s.Orders) > 0 }

// String renders the sort as an AIP-132 order_by string, e.g. "title desc, artist".
func (s Sort) String() string {
	parts := make([]string, 0, len(s.Orders))
	for _, o := range s.Orders {
		if o.Direction == Descending {
			parts = append(parts, o.Field+" desc")
		} else {
			parts = append(parts, o.Field)
		}
	}
	return strings.Join(parts, ", ")
}

// Pagination selects a zero-based page of a result set.
//
// A Size of zero is the unpaginated marker: every matching record is returned.
type Pagination struct {
	Number int
	Size   int
}

// Unpaged returns the explicit "no pagination" marker.
func Unpaged() Pagination { return Pagination{} }

// PageOf selects page number (zero-based) with size records per page.
func PageOf(number, size int) Pagination {
	return Pagination{Number: number, Size: size}
}

// IsPaged reports whether the pagination restricts the result set.
func (p Pagination) IsPaged() bool { return p.Size > 0 }

// Offset is the number of records skipped before this page.
func (p Pagination) Offset() int {
	if !p.IsPaged() {
		return 0
	}
	return p.Number * p.Size
}

// Next returns the pagination of the following page.
func (p Pagination) Next() Pagination {
	return Pagination{Number: p.Number + 1, Size: p.Size}
}

// Previous returns the pagination of the preceding page, stopping at the first one.
func (p Pagination) Previous() Pagination {
	if p.Number == 0 {
		return p
	}
	return Pagination{Number: p.Number - 1, Size: p.Size}
}

// Validate rejects negative page numbers and sizes, and pages whose offset does not fit in an int.
func (p Pagination) Validate() error {
	if p.Number < 0 {
		return fmt.Errorf("%w: page number %d is negative", ErrInvalidPagination, p.Number)
	}
	if p.Size < 0 {
		return fmt.Errorf("%w: page size %d is negative", ErrInvalidPagination, p.Size)
	}
	if p.Size > 0 && p.Number > math.MaxInt/p.Size {
		return fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidPagination, p.Number, p.Size)
	}
	return nil
}

// Page is one slice of a possibly larger result set.
//
// When paginated, len(Content) <= Pagination.Size. TotalElements is never below len(Content).
type Page[T any] struct {
	Content       []T
	Pagination    Pagination
	Sort          Sort
	TotalElements int64
}

// NewPage builds a page, raising total to len(content) when it is lower.
func NewPage[T any](content []T, p Pagination, s Sort, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	if n := int64(len(content)); total < n {
		total = n
	}
	return Page[T]{Content: content, Pagination: p, Sort: s, TotalElements: total}
}

// SlicePage cuts one page out of a complete, already ordered result set.
func SlicePage[T any](all []T, p Pagination, s Sort) Page[T] {
	total := int64(len(all))
	if !p.IsPaged() {
		return NewPage(append([]T(nil), all...), p, s, total)
	}

	start := len(all)
	if p.Validate() == nil {
		start = min(p.Offset(), len(all))
	}
	end := start + min(p.Size, len(all)-start)
	return NewPage(append([]T(nil), all[start:end]...), p, s, total)
}

// Len returns the number of items on this page.
func (p Page[T]) Len() int { return len(p.Content) }

// TotalPages returns the number of pages for the total count, 1 when unpaginated.
func (p Page[T]) TotalPages() int {
	if !p.Pagination.IsPaged() {
		return 1
	}
	size := int64(p.Pagination.Size)
	return int((p.TotalElements + size - 1) / size)
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Pagination.IsPaged() && p.Pagination.Number+1 < p.TotalPages()
}
