// Package reviews moves documents between IN_REVIEW and REVIEWED and turns
// each review event into calibration deltas.
package reviews

import (
	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/documents"
	"github.com/JaimeStill/vetrecords/internal/interpretations"
)

// SnapshotSource labels calibration snapshots written by a review.
const SnapshotSource = "document_review"

// ReviewCommand carries the identity of the reviewer.
type ReviewCommand struct {
	ReviewedBy string `json:"reviewed_by"`
}

// Result is the document after a transition together with the calibration
// snapshots the transition applied or reverted.
type Result struct {
	Document  *documents.Document    `json:"document"`
	Snapshots []calibration.Snapshot `json:"snapshots"`
}

// Signals derives the calibration deltas of a review event. Every critical,
// machine-origin, non-empty field of interp yields one accept. Every
// distinct (field key, mapping id) in changes yields one edit.
func Signals(interp *interpretations.Interpretation, changes []interpretations.ChangeLog) []calibration.Delta {
	p := interp.Payload
	var deltas []calibration.Delta

	for _, f := range p.Fields {
		if !f.IsCritical || f.Origin != interpretations.OriginMachine || f.Empty() {
			continue
		}
		deltas = append(deltas, calibration.Delta{
			Signal:        calibration.SignalAcceptedUnchanged,
			ContextKey:    p.ContextKey,
			FieldKey:      f.Key,
			MappingID:     deref(f.MappingID),
			PolicyVersion: p.PolicyVersion,
			Accept:        1,
		})
	}

	seen := make(map[calibration.Scope]bool)
	for _, c := range changes {
		scope := calibration.Scope{FieldKey: c.FieldKey, MappingID: deref(c.MappingID)}
		if seen[scope] {
			continue
		}
		seen[scope] = true
		deltas = append(deltas, calibration.Delta{
			Signal:        calibration.SignalEdited,
			ContextKey:    p.ContextKey,
			FieldKey:      scope.FieldKey,
			MappingID:     scope.MappingID,
			PolicyVersion: p.PolicyVersion,
			Edit:          1,
		})
	}

	return deltas
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
