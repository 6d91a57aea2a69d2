package interpretations

import (
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

const artifactColumns = "id, run_id, interpretation_id, version_number, payload, created_by, created_at"

const changeColumns = `id, run_id, interpretation_id, version_number, field_id, field_key,
	mapping_id, op, old_value, new_value, value_type, changed_by, created_at`

func scanInterpretation(s repository.Scanner) (Interpretation, error) {
	var (
		i   Interpretation
		raw []byte
	)
	err := s.Scan(&i.ID, &i.RunID, &i.InterpretationID, &i.VersionNumber, &raw, &i.CreatedBy, &i.CreatedAt)
	if err != nil {
		return i, err
	}

	i.Payload, err = DecodePayload(raw)
	return i, err
}

func scanVersion(s repository.Scanner) (Version, error) {
	var v Version
	err := s.Scan(&v.InterpretationID, &v.VersionNumber, &v.Fields, &v.CreatedBy, &v.CreatedAt)
	return v, err
}

func scanChange(s repository.Scanner) (ChangeLog, error) {
	var c ChangeLog
	err := s.Scan(
		&c.ID, &c.RunID, &c.InterpretationID, &c.VersionNumber, &c.FieldID, &c.FieldKey,
		&c.MappingID, &c.Op, &c.OldValue, &c.NewValue, &c.ValueType, &c.ChangedBy, &c.CreatedAt,
	)
	return c, err
}
