package querysql

import (
	"fmt"
	"strings"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/queryir"
)

// orderKeys fixes the ORDER BY of every ledger table. Text keys use
// COLLATE BINARY so ordering does not depend on the SQLite build.
var orderKeys = map[string]string{
	"runs":    "seq ASC",
	"entries": "position ASC, scenario_id COLLATE BINARY ASC",
	"events":  "seq ASC",
	"impacts": "feature_id COLLATE BINARY ASC",
}

const (
	sqlTrue  = "1 = 1"
	sqlFalse = "1 = 0"
)

// SQLCompiler compiles ledger queries to parameterised SQLite SQL. Every
// statement is ordered by its table's fixed key, and literals only ever
// travel as ? parameters.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and returns its SQL and parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}

	var b builder
	if err := b.selectStmt(sel); err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.params, nil
}

// builder accumulates one statement and its parameters.
type builder struct {
	sql    strings.Builder
	params []any
}

func (b *builder) selectStmt(q queryir.Select) error {
	where, err := b.condition(q.Filter)
	if err != nil {
		return fmt.Errorf("compile filter: %w", err)
	}

	b.sql.WriteString("SELECT ")
	b.sql.WriteString(strings.Join(q.Columns, ", "))
	b.sql.WriteString(" FROM ")
	b.sql.WriteString(q.From)
	if where != sqlTrue {
		b.sql.WriteString(" WHERE ")
		b.sql.WriteString(where)
	}
	b.sql.WriteString(" ORDER BY ")
	b.sql.WriteString(orderKeys[q.From])
	return nil
}

// condition renders p as a WHERE fragment, appending its parameters in
// placeholder order.
func (b *builder) condition(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case nil:
		return sqlTrue, nil
	case queryir.Equals:
		return b.equals(pred)
	case *queryir.Equals:
		return b.equals(*pred)
	case queryir.In:
		return b.in(pred)
	case *queryir.In:
		return b.in(*pred)
	case queryir.And:
		return b.and(pred)
	case *queryir.And:
		return b.and(*pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) equals(eq queryir.Equals) (string, error) {
	if err := b.bind(eq.Value); err != nil {
		return "", err
	}
	return eq.Field + " = ?", nil
}

// in renders "field IN (?, ...)". An empty set matches nothing.
func (b *builder) in(in queryir.In) (string, error) {
	if len(in.Values) == 0 {
		return sqlFalse, nil
	}
	for _, v := range in.Values {
		if err := b.bind(v); err != nil {
			return "", err
		}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(in.Values)), ", ")
	return in.Field + " IN (" + marks + ")", nil
}

// and joins its operands with AND. No operands matches everything.
func (b *builder) and(and queryir.And) (string, error) {
	if len(and.Predicates) == 0 {
		return sqlTrue, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	for _, pred := range and.Predicates {
		part, err := b.condition(pred)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) bind(v ir.IRValue) error {
	param, err := irValueToParam(v)
	if err != nil {
		return fmt.Errorf("convert value: %w", err)
	}
	b.params = append(b.params, param)
	return nil
}

// irValueToParam converts a literal to its database/sql parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRDecimal:
		return string(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
