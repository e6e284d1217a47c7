package query

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// eval is the in-memory counterpart of translateExpr.
func (s *Schema[E]) eval(e *expr.Expr, entity E) (bool, error) {
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return false, fmt.Errorf("unsupported expression type: %T", e.GetExprKind())
	}
	args := call.CallExpr.Args

	switch fn := call.CallExpr.Function; fn {
	case "_&&_", filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		if len(args) != 2 {
			return false, fmt.Errorf("AND requires 2 arguments")
		}
		left, err := s.eval(args[0], entity)
		if err != nil || !left {
			return false, err
		}
		return s.eval(args[1], entity)
	case "_||_", filtering.FunctionOr:
		if len(args) != 2 {
			return false, fmt.Errorf("OR requires 2 arguments")
		}
		left, err := s.eval(args[0], entity)
		if err != nil || left {
			return left, err
		}
		return s.eval(args[1], entity)
	case "!_", filtering.FunctionNot:
		if len(args) != 1 {
			return false, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := s.eval(args[0], entity)
		return !inner, err
	case filtering.FunctionHas:
		field, value, err := s.operands(args)
		if err != nil {
			return false, err
		}
		have, ok1 := field.Get(entity).(string)
		want, ok2 := value.(string)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("has operator requires a text field and value")
		}
		return strings.Contains(strings.ToLower(have), strings.ToLower(want)), nil
	default:
		op, known := comparisons[fn]
		if !known {
			return false, fmt.Errorf("unsupported function: %s", fn)
		}
		field, value, err := s.operands(args)
		if err != nil {
			return false, err
		}
		have := field.Get(entity)

		if pattern, ok := value.(string); ok && field.Type == TypeString && strings.Contains(pattern, "*") && (op == "=" || op == "!=") {
			str, _ := have.(string)
			return globMatch(pattern, str) == (op == "="), nil
		}

		c, err := compare(have, value)
		if err != nil {
			return false, err
		}
		switch op {
		case "=":
			return c == 0, nil
		case "!=":
			return c != 0, nil
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
}

var comparisons = map[string]string{
	"_==_": "=", filtering.FunctionEquals: "=",
	"_!=_": "!=", filtering.FunctionNotEquals: "!=",
	"_<_": "<", filtering.FunctionLessThan: "<",
	"_<=_": "<=", filtering.FunctionLessEquals: "<=",
	"_>_": ">", filtering.FunctionGreaterThan: ">",
	"_>=_": ">=", filtering.FunctionGreaterEquals: ">=",
}

// compare orders two values of the same filter type. Integers and floats compare numerically.
func compare(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmp.Compare(av, bv), nil
		case float64:
			return cmp.Compare(float64(av), bv), nil
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmp.Compare(av, bv), nil
		case int64:
			return cmp.Compare(av, float64(bv)), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0, nil
			}
			if !av {
				return -1, nil
			}
			return 1, nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// globMatch matches s against pattern where * stands for any run of characters.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := len(parts) - 1
	for i := 1; i < last; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[last])
}
