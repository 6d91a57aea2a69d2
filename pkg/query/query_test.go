package query_test

import (
	"slices"
	"testing"
	"time"

	"github.com/JaimeStill/vetrecords/pkg/query"
)

func runsProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "processing_runs", "r").
		Project("id", "ID").
		Project("document_id", "DocumentID").
		Project("state", "State").
		Project("created_at", "CreatedAt")
}

func documentsProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "documents", "d").
		Project("id", "ID").
		Project("filename", "Filename").
		Project("review_status", "ReviewStatus").
		Join("public", "processing_runs", "lr", "LEFT JOIN", "lr.document_id = d.id").
		Project("state", "LatestRunState")
}

func ptr[T any](v T) *T { return &v }

func TestProjectionColumns(t *testing.T) {
	got := documentsProjection().Columns()
	want := "d.id, d.filename, d.review_status, lr.state"
	if got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
}

func TestProjectionFrom(t *testing.T) {
	tests := []struct {
		name string
		p    *query.ProjectionMap
		want string
	}{
		{"base table", runsProjection(), "public.processing_runs r"},
		{
			"with join",
			documentsProjection(),
			"public.documents d LEFT JOIN public.processing_runs lr ON lr.document_id = d.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.From(); got != tt.want {
				t.Errorf("From() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectionLookup(t *testing.T) {
	p := documentsProjection()

	tests := []struct {
		field  string
		want   string
		wantOK bool
	}{
		{"Filename", "d.filename", true},
		{"LatestRunState", "lr.state", true},
		{"filename", "", false},
		{"1; DROP TABLE documents", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := p.Lookup(tt.field)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.field, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if got := p.Column("unmapped"); got != "unmapped" {
		t.Errorf("Column(unmapped) = %q, want passthrough", got)
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{"empty", "", nil},
		{"single ascending", "Filename", []query.SortField{{Field: "Filename"}}},
		{"single descending", "-CreatedAt", []query.SortField{{Field: "CreatedAt", Descending: true}}},
		{
			"mixed with blanks",
			" State , ,-CreatedAt",
			[]query.SortField{{Field: "State"}, {Field: "CreatedAt", Descending: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseSortFields(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildSingle(t *testing.T) {
	b := query.NewBuilder(runsProjection()).WhereEquals("State", ptr("QUEUED"))

	sql, args := b.BuildSingle("ID", "run-1")

	want := "SELECT r.id, r.document_id, r.state, r.created_at FROM public.processing_runs r WHERE r.id = $1"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "run-1" {
		t.Errorf("args = %v, want [run-1]", args)
	}
}

func TestBuildCountNumbersPlaceholders(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := after.AddDate(0, 1, 0)

	b := query.NewBuilder(runsProjection()).
		WhereEquals("DocumentID", ptr("doc-1")).
		WhereAny("State", []string{"FAILED", "TIMED_OUT"}).
		WhereBetween("CreatedAt", &after, &before)

	sql, args := b.BuildCount()

	want := "SELECT COUNT(*) FROM public.processing_runs r WHERE r.document_id = $1" +
		" AND r.state = ANY($2) AND r.created_at >= $3 AND r.created_at < $4"
	if sql != want {
		t.Errorf("sql = %q\nwant  %q", sql, want)
	}
	if len(args) != 4 {
		t.Fatalf("args length = %d, want 4", len(args))
	}
	if states, ok := args[1].([]string); !ok || len(states) != 2 {
		t.Errorf("args[1] = %#v, want state slice", args[1])
	}
	if args[3] != before {
		t.Errorf("args[3] = %v, want %v", args[3], before)
	}
}

func TestNilConditionsAreIgnored(t *testing.T) {
	var nilState *string
	b := query.NewBuilder(runsProjection()).
		WhereEquals("State", nilState).
		WhereEquals("DocumentID", nil).
		WhereContains("State", ptr("")).
		WhereAny("State", nil).
		WhereBetween("CreatedAt", nil, nil).
		WhereSearch(nil, "State")

	sql, args := b.BuildCount()

	if sql != "SELECT COUNT(*) FROM public.processing_runs r" {
		t.Errorf("sql = %q, want no WHERE clause", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestWhereSearch(t *testing.T) {
	b := query.NewBuilder(documentsProjection()).
		WhereEquals("ReviewStatus", ptr("IN_REVIEW")).
		WhereSearch(ptr("Luna"), "Filename", "LatestRunState")

	sql, args := b.BuildCount()

	wantWhere := " WHERE d.review_status = $1 AND (d.filename ILIKE $2 OR lr.state ILIKE $3)"
	if len(sql) < len(wantWhere) || sql[len(sql)-len(wantWhere):] != wantWhere {
		t.Errorf("sql = %q, want suffix %q", sql, wantWhere)
	}
	if len(args) != 3 || args[1] != "%Luna%" || args[2] != "%Luna%" {
		t.Errorf("args = %v, want [IN_REVIEW %%Luna%% %%Luna%%]", args)
	}
}

func TestBuildPage(t *testing.T) {
	defaultSort := query.SortField{Field: "CreatedAt", Descending: true}

	tests := []struct {
		name      string
		sort      []query.SortField
		page      int
		size      int
		wantOrder string
		wantLimit string
	}{
		{
			name:      "default sort",
			page:      1,
			size:      20,
			wantOrder: " ORDER BY r.created_at DESC",
			wantLimit: " LIMIT 20 OFFSET 0",
		},
		{
			name:      "explicit sort",
			sort:      []query.SortField{{Field: "State"}, {Field: "CreatedAt", Descending: true}},
			page:      3,
			size:      10,
			wantOrder: " ORDER BY r.state ASC, r.created_at DESC",
			wantLimit: " LIMIT 10 OFFSET 20",
		},
		{
			name:      "unknown sort fields dropped",
			sort:      []query.SortField{{Field: "state; DROP TABLE runs"}},
			page:      1,
			size:      5,
			wantOrder: "",
			wantLimit: " LIMIT 5 OFFSET 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := query.NewBuilder(runsProjection(), defaultSort).
				WhereContains("State", ptr("fail"))
			if tt.sort != nil {
				b.OrderByFields(tt.sort)
			}

			sql, args := b.BuildPage(tt.page, tt.size)

			want := "SELECT r.id, r.document_id, r.state, r.created_at FROM public.processing_runs r" +
				" WHERE r.state ILIKE $1" + tt.wantOrder + tt.wantLimit
			if sql != want {
				t.Errorf("sql = %q\nwant  %q", sql, want)
			}
			if len(args) != 1 || args[0] != "%fail%" {
				t.Errorf("args = %v, want [%%fail%%]", args)
			}
		})
	}
}

func TestBuildReturnsIndependentArgs(t *testing.T) {
	b := query.NewBuilder(runsProjection()).WhereEquals("State", ptr("QUEUED"))

	_, first := b.BuildCount()
	first[0] = "mutated"

	_, second := b.BuildCount()
	if s, ok := second[0].(*string); !ok || *s != "QUEUED" {
		t.Errorf("second args = %v, want untouched state pointer", second)
	}
}
