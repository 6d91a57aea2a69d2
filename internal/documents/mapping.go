package documents

import (
	"net/url"
	"time"

	"github.com/JaimeStill/vetrecords/pkg/query"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("review_status", "ReviewStatus").
	Project("reviewed_by", "ReviewedBy").
	Project("reviewed_at", "ReviewedAt").
	Project("reviewed_run_id", "ReviewedRunID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "processing_runs", "lr", "LEFT JOIN", `lr.id = (
		SELECT pr.id FROM processing_runs pr
		WHERE pr.document_id = d.id
		ORDER BY pr.created_at DESC, pr.id DESC
		LIMIT 1)`).
	Project("id", "LatestRunID").
	Project("state", "LatestRunState")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const documentColumns = `id, filename, content_type, size_bytes, page_count, storage_key,
	review_status, reviewed_by, reviewed_at, reviewed_run_id, created_at, updated_at`

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. ReviewStatus, ContentType and LatestRunState use
// exact matching. Filename uses case-insensitive contains matching. The
// upload bounds form a half-open interval over CreatedAt.
type Filters struct {
	ReviewStatus   *string    `json:"review_status,omitempty"`
	Filename       *string    `json:"filename,omitempty"`
	ContentType    *string    `json:"content_type,omitempty"`
	LatestRunState *string    `json:"latest_run_state,omitempty"`
	UploadedAfter  *time.Time `json:"uploaded_after,omitempty"`
	UploadedBefore *time.Time `json:"uploaded_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ReviewStatus", f.ReviewStatus).
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType).
		WhereEquals("LatestRunState", f.LatestRunState).
		WhereBetween("CreatedAt", f.UploadedAfter, f.UploadedBefore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("review_status"); s != "" {
		f.ReviewStatus = &s
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	if rs := values.Get("latest_run_state"); rs != "" {
		f.LatestRunState = &rs
	}

	if t, err := time.Parse(time.RFC3339, values.Get("uploaded_after")); err == nil {
		f.UploadedAfter = &t
	}

	if t, err := time.Parse(time.RFC3339, values.Get("uploaded_before")); err == nil {
		f.UploadedBefore = &t
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.ReviewStatus,
		&d.ReviewedBy,
		&d.ReviewedAt,
		&d.ReviewedRunID,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.LatestRunID,
		&d.LatestRunState,
	)
	return d, err
}

// scanRecord scans the documents columns without the latest run join.
func scanRecord(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.ReviewStatus,
		&d.ReviewedBy,
		&d.ReviewedAt,
		&d.ReviewedRunID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}
