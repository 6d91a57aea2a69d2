// Package query builds parameterized Postgres SELECT statements from a
// projection of logical field names onto qualified columns.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps logical field names to qualified columns of a base
// table and any joined tables. Fields are selected in projection order.
type ProjectionMap struct {
	base    string
	current string
	joins   []string
	fields  map[string]string
	order   []string
}

// NewProjectionMap starts a projection over schema.table aliased as alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		base:    fmt.Sprintf("%s.%s %s", schema, table, alias),
		current: alias,
		fields:  make(map[string]string),
	}
}

// Project maps field to column of the most recently added table.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.current + "." + column
	p.fields[field] = qualified
	p.order = append(p.order, qualified)
	return p
}

// Join appends "kind schema.table alias ON on" to the FROM clause. Fields
// projected afterwards resolve against alias.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, fmt.Sprintf("%s %s.%s %s ON %s", kind, schema, table, alias, on))
	p.current = alias
	return p
}

// From returns the FROM clause body.
func (p *ProjectionMap) From() string {
	if len(p.joins) == 0 {
		return p.base
	}
	return p.base + " " + strings.Join(p.joins, " ")
}

// Lookup returns the qualified column of field.
func (p *ProjectionMap) Lookup(field string) (string, bool) {
	col, ok := p.fields[field]
	return col, ok
}

// Column returns the qualified column of field, or field itself when it is
// not projected.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.fields[field]; ok {
		return col
	}
	return field
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}
