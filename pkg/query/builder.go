package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// SortField is one ORDER BY term over a logical field name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads "field,-other" into sort terms. A leading "-"
// sorts descending. Empty segments are skipped.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder accumulates AND-ed conditions over a projection. Conditions use
// "?" placeholders that are numbered when the WHERE clause is rendered.
type Builder struct {
	projection  *ProjectionMap
	clauses     []string
	args        []any
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder over projection. defaultSort applies when
// no explicit order is requested.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

func (b *Builder) where(clause string, args ...any) *Builder {
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
	return b
}

// WhereEquals matches field exactly. Nil values are ignored.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.where(b.projection.Column(field)+" = ?", value)
}

// WhereContains matches field case-insensitively against a substring.
// Nil or empty values are ignored.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.where(b.projection.Column(field)+" ILIKE ?", "%"+*value+"%")
}

// WhereAny matches field against any of values. An empty slice is ignored.
func (b *Builder) WhereAny(field string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	return b.where(b.projection.Column(field)+" = ANY(?)", values)
}

// WhereBetween bounds a timestamp field to [from, to). Either bound may be nil.
func (b *Builder) WhereBetween(field string, from, to *time.Time) *Builder {
	col := b.projection.Column(field)
	if from != nil {
		b.where(col+" >= ?", *from)
	}
	if to != nil {
		b.where(col+" < ?", *to)
	}
	return b
}

// WhereSearch matches a substring against any of fields. Nil or empty
// search terms are ignored.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	terms := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		terms[i] = b.projection.Column(field) + " ILIKE ?"
		args[i] = "%" + *search + "%"
	}
	return b.where("("+strings.Join(terms, " OR ")+")", args...)
}

// OrderByFields replaces the default order. Fields outside the projection
// are dropped.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// BuildCount renders a COUNT(*) over the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	return "SELECT COUNT(*) FROM " + b.projection.From() + b.whereSQL(), b.argList()
}

// BuildPage renders one ordered page. page is 1-indexed.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.From(),
		b.whereSQL(),
		b.orderSQL(),
		pageSize,
		(page-1)*pageSize,
	)
	return stmt, b.argList()
}

// BuildSingle renders a lookup of one row by idField, ignoring accumulated
// conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
	)
	return stmt, []any{id}
}

// whereSQL numbers "?" placeholders as $1..$n in order of appearance.
func (b *Builder) whereSQL() string {
	if len(b.clauses) == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString(" WHERE ")
	n := 0
	for i, clause := range b.clauses {
		if i > 0 {
			out.WriteString(" AND ")
		}
		for _, r := range clause {
			if r != '?' {
				out.WriteRune(r)
				continue
			}
			n++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
		}
	}
	return out.String()
}

func (b *Builder) argList() []any {
	args := make([]any, len(b.args))
	copy(args, b.args)
	return args
}

func (b *Builder) orderSQL() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.projection.Lookup(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
