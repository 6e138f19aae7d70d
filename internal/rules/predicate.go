package rules

import (
	"fmt"
	"strings"
)

// Facts is the flattened field set a predicate evaluates against: Order,
// LineItem, Party, and Product fields keyed by dotted name
// ("product.eccn", "order.ship_to_country", "party.risk_score", ...).
type Facts map[string]any

// Op enumerates the predicate node kinds. Predicates are data, not code:
// evaluation is a pure tree walk with no I/O and no clock access.
type Op string

const (
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpPrefix   Op = "prefix"
	OpContains Op = "contains"
	OpExists   Op = "exists"
)

// Expr is one node of a predicate tree. Comparator nodes use Field and Value;
// combinator nodes use Args. The YAML tags match the rule-pack format.
type Expr struct {
	Op    Op      `yaml:"op" json:"op"`
	Field string  `yaml:"field,omitempty" json:"field,omitempty"`
	Value any     `yaml:"value,omitempty" json:"value,omitempty"`
	Args  []*Expr `yaml:"args,omitempty" json:"args,omitempty"`
}

// Validate checks the tree is structurally sound before it is accepted into
// the repository. Evaluation assumes a validated tree.
func (e *Expr) Validate() error {
	if e == nil {
		return fmt.Errorf("predicate: nil expression")
	}
	switch e.Op {
	case OpAnd, OpOr:
		if len(e.Args) == 0 {
			return fmt.Errorf("predicate: %s requires at least one argument", e.Op)
		}
		for _, arg := range e.Args {
			if err := arg.Validate(); err != nil {
				return err
			}
		}
	case OpNot:
		if len(e.Args) != 1 {
			return fmt.Errorf("predicate: not requires exactly one argument")
		}
		return e.Args[0].Validate()
	case OpExists:
		if e.Field == "" {
			return fmt.Errorf("predicate: exists requires a field")
		}
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpPrefix, OpContains:
		if e.Field == "" {
			return fmt.Errorf("predicate: %s requires a field", e.Op)
		}
		if e.Value == nil {
			return fmt.Errorf("predicate: %s on %s requires a value", e.Op, e.Field)
		}
	case OpIn:
		if e.Field == "" {
			return fmt.Errorf("predicate: in requires a field")
		}
		if _, ok := asList(e.Value); !ok {
			return fmt.Errorf("predicate: in on %s requires a list value", e.Field)
		}
	default:
		return fmt.Errorf("predicate: unknown op %q", e.Op)
	}
	return nil
}

// Eval walks the tree against the fact set. A comparator over an absent field
// evaluates to false rather than erroring, so a rule written against optional
// fields simply does not match. Type mismatches (ordering a string, prefix on
// a number) are errors: they indicate a broken rule, not a non-match.
func (e *Expr) Eval(facts Facts) (bool, error) {
	switch e.Op {
	case OpAnd:
		for _, arg := range e.Args {
			ok, err := arg.Eval(facts)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case OpOr:
		for _, arg := range e.Args {
			ok, err := arg.Eval(facts)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpNot:
		ok, err := e.Args[0].Eval(facts)
		return !ok, err

	case OpExists:
		_, present := facts[e.Field]
		return present, nil
	}

	actual, present := facts[e.Field]
	if !present {
		return false, nil
	}

	switch e.Op {
	case OpEq:
		return looseEqual(actual, e.Value), nil
	case OpNe:
		return !looseEqual(actual, e.Value), nil

	case OpGt, OpGte, OpLt, OpLte:
		left, lok := asNumber(actual)
		right, rok := asNumber(e.Value)
		if !lok || !rok {
			return false, fmt.Errorf("predicate: %s on %s requires numeric operands", e.Op, e.Field)
		}
		switch e.Op {
		case OpGt:
			return left > right, nil
		case OpGte:
			return left >= right, nil
		case OpLt:
			return left < right, nil
		default:
			return left <= right, nil
		}

	case OpIn:
		list, _ := asList(e.Value)
		for _, candidate := range list {
			if looseEqual(actual, candidate) {
				return true, nil
			}
		}
		return false, nil

	case OpPrefix, OpContains:
		str, sok := actual.(string)
		want, wok := e.Value.(string)
		if !sok || !wok {
			return false, fmt.Errorf("predicate: %s on %s requires string operands", e.Op, e.Field)
		}
		if e.Op == OpPrefix {
			return strings.HasPrefix(str, want), nil
		}
		return strings.Contains(str, want), nil
	}

	return false, fmt.Errorf("predicate: unknown op %q", e.Op)
}

// looseEqual compares values with numeric coercion so YAML integers match
// float facts and vice versa.
func looseEqual(a, b any) bool {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an == bn
		}
		return false
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
