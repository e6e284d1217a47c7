// Package query parses AIP-160 filter expressions and AIP-132 order_by strings against a
// declared entity schema.
//
// A parsed [Filter] can be translated into a SQL WHERE fragment for database adapters or
// evaluated directly against entities for in-memory adapters, so both agree on semantics.
package query

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	"go.einride.tech/aip/ordering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/desertthunder/crux/internal/models"
)

var (
	ErrInvalidFilter = fmt.Errorf("invalid filter")
	ErrInvalidOrder  = fmt.Errorf("invalid order_by")
)

// FieldType is the declared type of a filterable field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTimestamp
)

func (t FieldType) declared() *expr.Type {
	switch t {
	case TypeInt:
		return filtering.TypeInt
	case TypeFloat:
		return filtering.TypeFloat
	case TypeBool:
		return filtering.TypeBool
	case TypeTimestamp:
		return filtering.TypeTimestamp
	default:
		return filtering.TypeString
	}
}

// Field maps a filter identifier to a column and to an accessor on the entity.
type Field[E any] struct {
	Name       string
	Column     string
	Type       FieldType
	Searchable bool
	Get        func(E) any
}

// Search marks the field as matched by free-text search.
func (f Field[E]) Search() Field[E] {
	f.Searchable = true
	return f
}

// String declares a text field.
func String[E any](name, column string, get func(E) string) Field[E] {
	return Field[E]{Name: name, Column: column, Type: TypeString, Get: func(e E) any { return get(e) }}
}

// Int declares an integer field.
func Int[E any](name, column string, get func(E) int) Field[E] {
	return Field[E]{Name: name, Column: column, Type: TypeInt, Get: func(e E) any { return int64(get(e)) }}
}

// Float declares a floating point field.
func Float[E any](name, column string, get func(E) float64) Field[E] {
	return Field[E]{Name: name, Column: column, Type: TypeFloat, Get: func(e E) any { return get(e) }}
}

// Bool declares a boolean field.
func Bool[E any](name, column string, get func(E) bool) Field[E] {
	return Field[E]{Name: name, Column: column, Type: TypeBool, Get: func(e E) any { return get(e) }}
}

// Timestamp declares a time field, compared against timestamp("RFC3339") literals.
func Timestamp[E any](name, column string, get func(E) time.Time) Field[E] {
	return Field[E]{Name: name, Column: column, Type: TypeTimestamp, Get: func(e E) any { return get(e) }}
}

// Schema is the set of fields an entity exposes to filtering, search and sorting.
type Schema[E any] struct {
	fields []Field[E]
	byName map[string]Field[E]
	decls  *filtering.Declarations
}

// NewSchema declares fields. Names must be unique.
func NewSchema[E any](fields ...Field[E]) (*Schema[E], error) {
	s := &Schema[E]{fields: fields, byName: make(map[string]Field[E], len(fields))}

	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, f := range fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		s.byName[f.Name] = f
		opts = append(opts, filtering.DeclareIdent(f.Name, f.Type.declared()))
	}

	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	s.decls = decls
	return s, nil
}

// MustSchema is [NewSchema] for package-level declarations.
func MustSchema[E any](fields ...Field[E]) *Schema[E] {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema[E]) Fields() []Field[E] {
	return append([]Field[E](nil), s.fields...)
}

// Field looks up a field by filter name.
func (s *Schema[E]) Field(name string) (Field[E], bool) {
	f, ok := s.byName[name]
	return f, ok
}

// ParseSort parses an AIP-132 order_by string such as "title desc, artist" into a
// [models.Sort], rejecting unknown fields. An empty string is unsorted.
func (s *Schema[E]) ParseSort(orderBy string) (models.Sort, error) {
	if strings.TrimSpace(orderBy) == "" {
		return models.Unsorted(), nil
	}

	var ob ordering.OrderBy
	if err := ob.UnmarshalString(orderBy); err != nil {
		return models.Sort{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}

	orders := make([]models.Order, 0, len(ob.Fields))
	for _, f := range ob.Fields {
		if _, ok := s.byName[f.Path]; !ok {
			return models.Sort{}, fmt.Errorf("%w: unknown field %q", ErrInvalidOrder, f.Path)
		}
		if f.Desc {
			orders = append(orders, models.Desc(f.Path))
		} else {
			orders = append(orders, models.Asc(f.Path))
		}
	}
	return models.SortBy(orders...), nil
}

// OrderClause renders sort as a SQL ORDER BY list ("" when unsorted).
func (s *Schema[E]) OrderClause(sort models.Sort) (string, error) {
	parts := make([]string, 0, len(sort.Orders))
	for _, o := range sort.Orders {
		f, ok := s.byName[o.Field]
		if !ok {
			return "", fmt.Errorf("%w: unknown field %q", ErrInvalidOrder, o.Field)
		}
		dir := "ASC"
		if o.Direction == models.Descending {
			dir = "DESC"
		}
		parts = append(parts, f.Column+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

// Compare returns an ordering function for slices.SortStableFunc that follows sort.
func (s *Schema[E]) Compare(sort models.Sort) (func(a, b E) int, error) {
	fields := make([]Field[E], 0, len(sort.Orders))
	for _, o := range sort.Orders {
		f, ok := s.byName[o.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidOrder, o.Field)
		}
		fields = append(fields, f)
	}

	return func(a, b E) int {
		for i, f := range fields {
			c, err := compare(f.Get(a), f.Get(b))
			if err != nil || c == 0 {
				continue
			}
			if sort.Orders[i].Direction == models.Descending {
				return -c
			}
			return c
		}
		return 0
	}, nil
}

// SearchCondition matches term, case-insensitively, as a substring of any searchable column.
func (s *Schema[E]) SearchCondition(term string) SQLCondition {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	var clauses []string
	var params []any
	for _, f := range s.fields {
		if !f.Searchable {
			continue
		}
		clauses = append(clauses, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, f.Column))
		params = append(params, pattern)
	}
	if len(clauses) == 0 {
		return SQLCondition{Clause: "1 = 0"}
	}
	return SQLCondition{Clause: "(" + strings.Join(clauses, " OR ") + ")", Params: params}
}

// MatchSearch is the in-memory form of [Schema.SearchCondition].
func (s *Schema[E]) MatchSearch(e E, term string) bool {
	term = strings.ToLower(term)
	for _, f := range s.fields {
		if !f.Searchable {
			continue
		}
		if v, ok := f.Get(e).(string); ok && strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
