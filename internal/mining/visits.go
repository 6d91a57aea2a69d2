package mining

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

var (
	visitContextRe    = regexp.MustCompile(`(?i)(consulta|visita|control|revisi[oó]n|seguimiento|reconsulta|visit|follow[- ]?up|check[- ]?up|recheck)`)
	nonVisitContextRe = regexp.MustCompile(`(?i)(factura|invoice|nacimiento|birth|microchip|chip|caducidad|vencimiento|expir|pr[oó]xima|next\s+due)`)
)

// ProjectionField is the input of the visit projection: one field of an
// interpretation with the snippet it was read from.
type ProjectionField struct {
	ID      string
	Key     string
	Value   string
	Snippet string
}

// FieldRef points at a field from a canonical projection.
type FieldRef struct {
	FieldID string `json:"field_id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// VisitGroup holds the visit-scoped fields attributed to one visit. Date is
// the normalized visit date, nil for a visit whose date could not be read.
type VisitGroup struct {
	VisitID string     `json:"visit_id"`
	Date    *string    `json:"visit_date"`
	RawDate string     `json:"raw_date,omitempty"`
	Fields  []FieldRef `json:"fields"`
}

// Canonical is the visit-grouped projection of an interpretation.
type Canonical struct {
	Document   []FieldRef   `json:"document"`
	Visits     []VisitGroup `json:"visits"`
	Unassigned []FieldRef   `json:"unassigned"`
}

type bucket struct {
	date   string
	raw    string
	fields []FieldRef
}

// ProjectVisits groups visit-scoped fields by visit. Buckets come from
// visit_date values and from dates in visit-context snippets. A field joins
// the bucket of a visit-context date in its snippet; failing that it joins
// the only bucket when exactly one exists and its snippet holds no date.
// Anything else is unassigned. Dated visits sort ascending, undated visits
// follow in discovery order.
func ProjectVisits(contract *schema.Contract, fields []ProjectionField) Canonical {
	canon := Canonical{Document: []FieldRef{}, Visits: []VisitGroup{}, Unassigned: []FieldRef{}}

	var buckets []*bucket
	byDate := map[string]*bucket{}
	byRaw := map[string]*bucket{}
	ensure := func(norm, raw string) *bucket {
		if norm != "" {
			if b, ok := byDate[norm]; ok {
				return b
			}
			b := &bucket{date: norm, raw: raw}
			byDate[norm] = b
			buckets = append(buckets, b)
			return b
		}
		if b, ok := byRaw[raw]; ok {
			return b
		}
		b := &bucket{raw: raw}
		byRaw[raw] = b
		buckets = append(buckets, b)
		return b
	}

	for _, f := range fields {
		if f.Key == keyVisitDate && f.Value != "" {
			ensure(NormalizeDate(f.Value), f.Value)
		}
	}
	for _, f := range fields {
		if contract.VisitScoped(f.Key) {
			if gated := visitDates(f.Snippet); len(gated) > 0 {
				ensure(gated[0], gated[0])
			}
		}
	}

	for _, f := range fields {
		ref := FieldRef{FieldID: f.ID, Key: f.Key, Value: f.Value}
		if !contract.VisitScoped(f.Key) {
			canon.Document = append(canon.Document, ref)
			continue
		}
		switch gated := visitDates(f.Snippet); {
		case len(gated) > 0:
			b := byDate[gated[0]]
			b.fields = append(b.fields, ref)
		case len(buckets) == 1 && !dateTokenRe.MatchString(f.Snippet):
			buckets[0].fields = append(buckets[0].fields, ref)
		default:
			canon.Unassigned = append(canon.Unassigned, ref)
		}
	}

	slices.SortStableFunc(buckets, func(a, b *bucket) int {
		switch {
		case a.date == "" && b.date == "":
			return 0
		case a.date == "":
			return 1
		case b.date == "":
			return -1
		case a.date < b.date:
			return -1
		case a.date > b.date:
			return 1
		}
		return 0
	})

	for i, b := range buckets {
		g := VisitGroup{VisitID: fmt.Sprintf("visit-%d", i+1), RawDate: b.raw, Fields: b.fields}
		if b.date != "" {
			d := b.date
			g.Date = &d
		}
		if g.Fields == nil {
			g.Fields = []FieldRef{}
		}
		canon.Visits = append(canon.Visits, g)
	}
	return canon
}

// visitDates returns the normalized dates of a snippet that reads as a
// visit record. Snippets with non-visit context yield none.
func visitDates(snippet string) []string {
	if !visitContextRe.MatchString(snippet) || nonVisitContextRe.MatchString(snippet) {
		return nil
	}
	var out []string
	for _, tok := range dateTokenRe.FindAllString(snippet, -1) {
		if norm := NormalizeDate(tok); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
