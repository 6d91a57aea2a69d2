// Package documents implements the document registry.
// It provides types, data access, and business logic for document upload,
// original file retrieval, reprocessing and the review status that
// internal/reviews transitions.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the human review state of a document.
type ReviewStatus string

const (
	StatusInReview ReviewStatus = "IN_REVIEW"
	StatusReviewed ReviewStatus = "REVIEWED"
)

// Document represents an uploaded record with its blob storage reference,
// its review state and the state of its most recent run.
type Document struct {
	ID             uuid.UUID    `json:"id"`
	Filename       string       `json:"filename"`
	ContentType    string       `json:"content_type"`
	SizeBytes      int64        `json:"size_bytes"`
	PageCount      *int         `json:"page_count"`
	StorageKey     string       `json:"storage_key"`
	ReviewStatus   ReviewStatus `json:"review_status"`
	ReviewedBy     *string      `json:"reviewed_by"`
	ReviewedAt     *time.Time   `json:"reviewed_at"`
	ReviewedRunID  *uuid.UUID   `json:"reviewed_run_id"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	LatestRunID    *uuid.UUID   `json:"latest_run_id"`
	LatestRunState *string      `json:"latest_run_state"`
}

// CreateCommand carries the data needed to upload and register a new document.
// Data holds the raw file bytes. PageCount is nil when the file could not be
// read as a PDF.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}
