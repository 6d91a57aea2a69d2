package runs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/pkg/query"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "processing_runs", "r").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("state", "State").
	Project("failure_type", "FailureType").
	Project("created_at", "CreatedAt").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const runColumns = "id, document_id, state, failure_type, created_at, started_at, completed_at"

const stepColumns = "id, run_id, step, status, attempt, started_at, ended_at, error_code, details"

// Filters contains optional filtering criteria for run queries. States
// matches any of the listed states. The created bounds form a half-open
// interval.
type Filters struct {
	DocumentID    *uuid.UUID `json:"document_id,omitempty"`
	State         *string    `json:"state,omitempty"`
	States        []string   `json:"states,omitempty"`
	FailureType   *string    `json:"failure_type,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("State", f.State).
		WhereAny("State", f.States).
		WhereEquals("FailureType", f.FailureType).
		WhereBetween("CreatedAt", f.CreatedAfter, f.CreatedBefore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("document_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.DocumentID = &id
		}
	}
	if v := values.Get("state"); v != "" {
		f.State = &v
	}
	if v := values.Get("states"); v != "" {
		for state := range strings.SplitSeq(v, ",") {
			if state = strings.TrimSpace(state); state != "" {
				f.States = append(f.States, state)
			}
		}
	}
	if v := values.Get("failure_type"); v != "" {
		f.FailureType = &v
	}
	if t, err := time.Parse(time.RFC3339, values.Get("created_after")); err == nil {
		f.CreatedAfter = &t
	}
	if t, err := time.Parse(time.RFC3339, values.Get("created_before")); err == nil {
		f.CreatedBefore = &t
	}

	return f
}

func scanRun(s repository.Scanner) (Run, error) {
	var r Run
	err := s.Scan(
		&r.ID,
		&r.DocumentID,
		&r.State,
		&r.FailureType,
		&r.CreatedAt,
		&r.StartedAt,
		&r.CompletedAt,
	)
	return r, err
}

func scanStep(s repository.Scanner) (Step, error) {
	var st Step
	var details []byte

	err := s.Scan(
		&st.ID,
		&st.RunID,
		&st.Step,
		&st.Status,
		&st.Attempt,
		&st.StartedAt,
		&st.EndedAt,
		&st.ErrorCode,
		&details,
	)
	if err != nil {
		return st, err
	}

	if len(details) > 0 {
		st.Details = json.RawMessage(details)
	}
	return st, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal step details: %w", err)
	}
	return b, nil
}
