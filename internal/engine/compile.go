package engine

import (
	"fmt"
	"strings"

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

// Compiler renders a query model to a single SELECT statement. With Strict
// set, every select, where and order_by entry must pass the expression guard.
type Compiler struct {
	Strict bool
}

// Compile builds:
//
//	SELECT <columns> FROM "<relation>" [WHERE <where>] [ORDER BY <terms>] [LIMIT <n>]
//
// where <columns> is the effective column list or * when the query selects everything.
func (c Compiler) Compile(q *domain.QueryModel, relation string) (string, error) {
	if q == nil {
		return "", domain.ErrCompilation("query model is required")
	}
	if strings.TrimSpace(relation) == "" {
		return "", domain.ErrCompilation("relation name is required")
	}
	if err := q.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")

	if q.IsWildcard() {
		b.WriteString("*")
	} else {
		for i, col := range q.EffectiveColumns() {
			if c.Strict {
				if err := ddl.GuardExpression(col); err != nil {
					return "", domain.ErrCompilation("invalid column %q: %v", col, err)
				}
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col)
		}
	}

	b.WriteString(" FROM ")
	b.WriteString(ddl.QuoteIdentifier(relation))

	if where := strings.TrimSpace(q.Where); where != "" {
		if c.Strict {
			if err := ddl.GuardExpression(where); err != nil {
				return "", domain.ErrCompilation("invalid where clause: %v", err)
			}
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if len(q.OrderBy) > 0 {
		for _, term := range q.OrderBy {
			if c.Strict {
				if err := ddl.GuardOrderTerm(term); err != nil {
					return "", domain.ErrCompilation("invalid order_by term %q: %v", term, err)
				}
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.OrderBy, ", "))
	}

	if q.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.Limit)
	}
	return b.String(), nil
}
