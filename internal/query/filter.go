package query

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "title = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// IsEmpty reports whether the condition restricts nothing.
func (c SQLCondition) IsEmpty() bool { return c.Clause == "" }

// And joins two conditions, skipping empty ones.
func (c SQLCondition) And(other SQLCondition) SQLCondition {
	switch {
	case c.IsEmpty():
		return other
	case other.IsEmpty():
		return c
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(%s AND %s)", c.Clause, other.Clause),
		Params: append(append([]any(nil), c.Params...), other.Params...),
	}
}

// Filter is a type-checked AIP-160 expression bound to a [Schema].
type Filter[E any] struct {
	schema *Schema[E]
	expr   *expr.Expr
}

// Parse parses and type-checks filter against the schema's declarations.
// An empty filter matches everything.
func (s *Schema[E]) Parse(filter string) (*Filter[E], error) {
	if strings.TrimSpace(filter) == "" {
		return &Filter[E]{schema: s}, nil
	}

	parsed, err := filtering.ParseFilterString(filter, s.decls)
	if err != nil {
		return nil, fmt.Errorf("%w: parse filter: %w", ErrInvalidFilter, err)
	}
	return &Filter[E]{schema: s, expr: parsed.CheckedExpr.GetExpr()}, nil
}

// SQL translates the filter into a WHERE fragment using the schema's column names.
func (f *Filter[E]) SQL() (SQLCondition, error) {
	cond, err := f.schema.translateExpr(f.expr)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return cond, nil
}

// Match evaluates the filter against one entity.
func (f *Filter[E]) Match(e E) (bool, error) {
	if f.expr == nil {
		return true, nil
	}
	ok, err := f.schema.eval(f.expr, e)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return ok, nil
}

// translateExpr translates a CEL expression to a SQL condition.
func (s *Schema[E]) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

// translateCall translates a CEL function call to a SQL condition.
func (s *Schema[E]) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return s.translateJunction(call.Args, "AND")
	case "_||_", filtering.FunctionOr:
		return s.translateJunction(call.Args, "OR")
	case "!_", filtering.FunctionNot:
		if len(call.Args) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := s.translateExpr(call.Args[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: fmt.Sprintf("NOT (%s)", inner.Clause), Params: inner.Params}, nil
	case "_==_", filtering.FunctionEquals:
		return s.translateComparison(call.Args, "=")
	case "_!=_", filtering.FunctionNotEquals:
		return s.translateComparison(call.Args, "!=")
	case "_<_", filtering.FunctionLessThan:
		return s.translateComparison(call.Args, "<")
	case "_<=_", filtering.FunctionLessEquals:
		return s.translateComparison(call.Args, "<=")
	case "_>_", filtering.FunctionGreaterThan:
		return s.translateComparison(call.Args, ">")
	case "_>=_", filtering.FunctionGreaterEquals:
		return s.translateComparison(call.Args, ">=")
	case filtering.FunctionHas:
		return s.translateHas(call.Args)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (s *Schema[E]) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := s.translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (s *Schema[E]) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	field, value, err := s.operands(args)
	if err != nil {
		return SQLCondition{}, err
	}

	if str, ok := value.(string); ok && field.Type == TypeString && strings.Contains(str, "*") {
		switch op {
		case "=":
			return SQLCondition{Clause: fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, field.Column), Params: []any{wildcard(str)}}, nil
		case "!=":
			return SQLCondition{Clause: fmt.Sprintf(`%s NOT LIKE ? ESCAPE '\'`, field.Column), Params: []any{wildcard(str)}}, nil
		}
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", field.Column, op),
		Params: []any{value},
	}, nil
}

func (s *Schema[E]) translateHas(args []*expr.Expr) (SQLCondition, error) {
	field, value, err := s.operands(args)
	if err != nil {
		return SQLCondition{}, err
	}
	str, ok := value.(string)
	if !ok || field.Type != TypeString {
		return SQLCondition{}, fmt.Errorf("has operator requires a text field and value")
	}
	return SQLCondition{
		Clause: fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, field.Column),
		Params: []any{"%" + escapeLike(strings.ToLower(str)) + "%"},
	}, nil
}

// wildcard turns an AIP string pattern using * into a LIKE pattern.
func wildcard(s string) string {
	return strings.ReplaceAll(escapeLike(s), "*", "%")
}

func (s *Schema[E]) operands(args []*expr.Expr) (Field[E], any, error) {
	if len(args) != 2 {
		return Field[E]{}, nil, fmt.Errorf("comparison requires 2 arguments")
	}

	name, err := extractFieldName(args[0])
	if err != nil {
		return Field[E]{}, nil, err
	}
	field, ok := s.byName[name]
	if !ok {
		return Field[E]{}, nil, fmt.Errorf("unknown field: %s", name)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return Field[E]{}, nil, err
	}
	return field, value, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (time.Time, error) {
	c, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	str, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}

	t, err := time.Parse(time.RFC3339Nano, str.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", str.StringValue)
	}
	return t.UTC(), nil
}
