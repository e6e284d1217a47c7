package models

import "strings"

// Operation identifies a lifecycle operation. Hooks receive it before and after every call.
type Operation int

const (
	OpPage Operation = iota
	OpFind
	OpCount
	OpExists
	OpCreate
	OpUpdate
	OpDelete
)

var operationNames = [...]string{"PAGE", "FIND", "COUNT", "EXISTS", "CREATE", "UPDATE", "DELETE"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "UNKNOWN"
	}
	return operationNames[o]
}

// IsWrite reports whether the operation mutates state and runs inside a transaction.
func (o Operation) IsWrite() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// Operations lists every [Operation] in declaration order.
func Operations() []Operation {
	return []Operation{OpPage, OpFind, OpCount, OpExists, OpCreate, OpUpdate, OpDelete}
}

// ParseOperation converts a case-insensitive name such as "create" into an [Operation].
func ParseOperation(s string) (Operation, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range operationNames {
		if n == name {
			return Operation(i), true
		}
	}
	return 0, false
}

// Optional holds a value that may be absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an empty [Optional].
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) IsPresent() bool { return o.ok }

// OrElse returns the value when present, otherwise fallback.
func (o Optional[T]) OrElse(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}
