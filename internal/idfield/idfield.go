// Package idfield finds the identifier field of an entity type by reflection and remembers the
// answer for the life of the process.
//
// A field is the identifier when it carries `crux:"id"` or a gorm tag with the primaryKey
// setting. Fields promoted from embedded structs count. Exactly one such field must exist.
package idfield

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

var (
	ErrNoIDField        = fmt.Errorf("no identifier field")
	ErrAmbiguousIDField = fmt.Errorf("more than one identifier field")
	ErrNotStruct        = fmt.Errorf("entity type is not a struct")
)

// Field describes the identifier field of one struct type.
type Field struct {
	Owner  reflect.Type
	Name   string
	Column string
	Type   reflect.Type
	Index  []int
}

type entry struct {
	once  sync.Once
	field Field
	err   error
}

var cache sync.Map // reflect.Type -> *entry

// Lookup returns the identifier field of t, which may be a struct or a pointer to one.
//
// The first lookup of a type inspects it; every later lookup, from any goroutine, returns the
// same result. Failures are remembered too.
func Lookup(t reflect.Type) (Field, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v, _ := cache.LoadOrStore(t, &entry{})
	e := v.(*entry)
	e.once.Do(func() { e.field, e.err = discover(t) })
	return e.field, e.err
}

// For is [Lookup] for the type parameter E.
func For[E any]() (Field, error) {
	return Lookup(reflect.TypeFor[E]())
}

func discover(t reflect.Type) (Field, error) {
	if t.Kind() != reflect.Struct {
		return Field{}, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	var found []Field
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || !isIdentifier(sf.Tag) {
			continue
		}
		found = append(found, Field{
			Owner:  t,
			Name:   sf.Name,
			Column: column(sf),
			Type:   sf.Type,
			Index:  sf.Index,
		})
	}

	switch len(found) {
	case 0:
		return Field{}, fmt.Errorf("%w on %s", ErrNoIDField, t)
	case 1:
		return found[0], nil
	default:
		return Field{}, fmt.Errorf("%w on %s: %s and %s", ErrAmbiguousIDField, t, found[0].Name, found[1].Name)
	}
}

func isIdentifier(tag reflect.StructTag) bool {
	if v, ok := tag.Lookup("crux"); ok {
		for opt := range strings.SplitSeq(v, ",") {
			if strings.TrimSpace(opt) == "id" {
				return true
			}
		}
	}
	for _, setting := range gormSettings(tag) {
		if strings.EqualFold(setting, "primaryKey") || strings.EqualFold(setting, "primary_key") {
			return true
		}
	}
	return false
}

func gormSettings(tag reflect.StructTag) []string {
	v, ok := tag.Lookup("gorm")
	if !ok {
		return nil
	}
	var out []string
	for s := range strings.SplitSeq(v, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func column(sf reflect.StructField) string {
	for _, setting := range gormSettings(sf.Tag) {
		name, value, ok := strings.Cut(setting, ":")
		if ok && strings.EqualFold(name, "column") {
			return value
		}
	}
	return SnakeCase(sf.Name)
}

// SnakeCase converts a Go identifier such as ServiceID into service_id.
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func (f Field) value(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %s", f.Owner)
		}
		v = v.Elem()
	}
	if v.Type() != f.Owner {
		return reflect.Value{}, fmt.Errorf("expected %s, got %s", f.Owner, v.Type())
	}
	return v.FieldByIndex(f.Index), nil
}

// Get reads the identifier of entity.
func (f Field) Get(entity any) (any, error) {
	v, err := f.value(entity)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Set writes id into entity, which must be a pointer.
func (f Field) Set(entity any, id any) error {
	if reflect.ValueOf(entity).Kind() != reflect.Pointer {
		return fmt.Errorf("cannot set identifier on non-pointer %T", entity)
	}
	v, err := f.value(entity)
	if err != nil {
		return err
	}
	idv := reflect.ValueOf(id)
	if !idv.Type().AssignableTo(f.Type) {
		return fmt.Errorf("cannot assign %T to %s.%s", id, f.Owner, f.Name)
	}
	v.Set(idv)
	return nil
}

// IsZero reports whether entity has no identifier yet.
func (f Field) IsZero(entity any) (bool, error) {
	v, err := f.value(entity)
	if err != nil {
		return false, err
	}
	return v.IsZero(), nil
}
