package repository

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// queryBuilder accumulates WHERE conditions with positional placeholders so
// filters never concatenate caller input into SQL.
type queryBuilder struct {
	conditions []string
	args       []interface{}
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

// bind appends a value and returns its placeholder.
func (b *queryBuilder) bind(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// where adds a condition. Each "?" in clause is replaced by the placeholder of
// the matching value.
func (b *queryBuilder) where(clause string, values ...interface{}) *queryBuilder {
	var sb strings.Builder
	idx := 0
	for _, ch := range clause {
		if ch == '?' && idx < len(values) {
			sb.WriteString(b.bind(values[idx]))
			idx++
			continue
		}
		sb.WriteRune(ch)
	}
	b.conditions = append(b.conditions, sb.String())
	return b
}

// whereIf adds the condition only when ok is true.
func (b *queryBuilder) whereIf(ok bool, clause string, values ...interface{}) *queryBuilder {
	if ok {
		b.where(clause, values...)
	}
	return b
}

// whereClause renders the accumulated conditions.
func (b *queryBuilder) whereClause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// paginate returns a LIMIT/OFFSET suffix and the args for the list query. The
// builder's own args stay untouched for the matching count query.
func (b *queryBuilder) paginate(p pageParams) (string, []interface{}) {
	n := len(b.args)
	args := make([]interface{}, 0, n+2)
	args = append(args, b.args...)
	args = append(args, p.size, p.offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

type pageParams struct {
	page int
	size int
}

func normalizePage(page, size int) pageParams {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return pageParams{page: page, size: size}
}

func (p pageParams) offset() int {
	return (p.page - 1) * p.size
}

// orderBy renders an ORDER BY clause from a whitelist of sort keys. Unknown
// keys fall back to fallback. tieBreaker keeps ordering stable across pages.
func orderBy(sortBy, sortOrder string, allowed map[string]string, fallback, tieBreaker string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	direction := strings.ToUpper(sortOrder)
	if direction != "ASC" && direction != "DESC" {
		direction = "DESC"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", column, direction)
	if tieBreaker != "" && tieBreaker != column {
		clause += ", " + tieBreaker
	}
	return clause
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(strings.TrimSpace(term)))
	return "%" + escaped + "%"
}
