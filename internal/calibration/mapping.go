package calibration

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/vetrecords/pkg/query"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "calibration_aggregates", "ca").
	Project("context_key", "ContextKey").
	Project("field_key", "FieldKey").
	Project("mapping_id", "MappingID").
	Project("policy_version", "PolicyVersion").
	Project("accept_count", "AcceptCount").
	Project("edit_count", "EditCount").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UpdatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for aggregate queries.
type Filters struct {
	ContextKey    *string `json:"context_key,omitempty"`
	FieldKey      *string `json:"field_key,omitempty"`
	MappingID     *string `json:"mapping_id,omitempty"`
	PolicyVersion *string `json:"policy_version,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ContextKey", f.ContextKey).
		WhereEquals("FieldKey", f.FieldKey).
		WhereEquals("MappingID", f.MappingID).
		WhereEquals("PolicyVersion", f.PolicyVersion)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("context_key"); v != "" {
		f.ContextKey = &v
	}
	if v := values.Get("field_key"); v != "" {
		f.FieldKey = &v
	}
	if v := values.Get("mapping_id"); v != "" {
		f.MappingID = &v
	}
	if v := values.Get("policy_version"); v != "" {
		f.PolicyVersion = &v
	}

	return f
}

func scanAggregate(s repository.Scanner) (Aggregate, error) {
	var a Aggregate
	var mappingID string

	err := s.Scan(
		&a.ContextKey,
		&a.FieldKey,
		&mappingID,
		&a.PolicyVersion,
		&a.AcceptCount,
		&a.EditCount,
		&a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	if mappingID != "" {
		a.MappingID = &mappingID
	}
	a.Adjustment = Adjustment(a.AcceptCount, a.EditCount)
	return a, nil
}

const snapshotColumns = "id, document_id, run_id, source, status, deltas, created_at, reverted_at"

func scanSnapshot(s repository.Scanner) (Snapshot, error) {
	var snap Snapshot
	var deltasRaw []byte

	err := s.Scan(
		&snap.ID,
		&snap.DocumentID,
		&snap.RunID,
		&snap.Source,
		&snap.Status,
		&deltasRaw,
		&snap.CreatedAt,
		&snap.RevertedAt,
	)
	if err != nil {
		return snap, err
	}

	if err := json.Unmarshal(deltasRaw, &snap.Deltas); err != nil {
		return snap, fmt.Errorf("unmarshal snapshot deltas: %w", err)
	}
	if snap.Deltas == nil {
		snap.Deltas = []Delta{}
	}
	return snap, nil
}
