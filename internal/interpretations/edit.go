package interpretations

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

// FieldChange is a real change produced by applying an edit.
type FieldChange struct {
	FieldID   string
	FieldKey  string
	MappingID *string
	Op        Op
	OldValue  *string
	NewValue  *string
	ValueType schema.ValueType
}

var valueTypes = []schema.ValueType{
	schema.TypeString,
	schema.TypeDate,
	schema.TypeNumber,
	schema.TypeText,
	schema.TypeIdentifier,
	schema.TypePhone,
}

// Edit applies changes in order to a copy of base and returns the new
// payload with the real changes made. An UPDATE that keeps the value and
// value type is not a change. When nothing changed, base is returned as is.
func (b *Builder) Edit(base Payload, changes []Change) (Payload, []FieldChange, error) {
	next := base
	next.Fields = slices.Clone(base.Fields)

	var applied []FieldChange
	for i, c := range changes {
		if c.ValueType != "" && !slices.Contains(valueTypes, c.ValueType) {
			return base, nil, fmt.Errorf("%w: change %d: unknown value type %q", ErrInvalidChange, i, c.ValueType)
		}
		value := normalizeValue(c.Value)

		var (
			fc  *FieldChange
			err error
		)
		switch c.Op {
		case OpAdd:
			fc, err = b.add(&next, c, value)
		case OpUpdate:
			fc, err = b.update(&next, c, value)
		case OpDelete:
			fc, err = remove(&next, c)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrInvalidChange, c.Op)
		}
		if err != nil {
			return base, nil, fmt.Errorf("change %d: %w", i, err)
		}
		if fc != nil {
			applied = append(applied, *fc)
		}
	}

	if len(applied) == 0 {
		return base, nil, nil
	}

	b.Project(&next)
	return next, applied, nil
}

func (b *Builder) add(p *Payload, c Change, value *string) (*FieldChange, error) {
	if c.Key == "" {
		return nil, fmt.Errorf("%w: ADD requires a key", ErrInvalidChange)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: ADD requires a value", ErrInvalidChange)
	}

	def, ok := b.contract.Lookup(c.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownKey, c.Key)
	}
	if !def.Repeatable {
		for _, f := range p.Fields {
			if f.Key == c.Key && !f.Empty() {
				return nil, fmt.Errorf("%w: %s already has a value", ErrInvalidChange, c.Key)
			}
		}
	}

	f, err := b.HumanField(*p, c.Key, value, c.ValueType, nil)
	if err != nil {
		return nil, err
	}
	p.Fields = append(p.Fields, f)

	return &FieldChange{
		FieldID:   f.ID,
		FieldKey:  f.Key,
		Op:        OpAdd,
		NewValue:  f.Value,
		ValueType: f.ValueType,
	}, nil
}

func (b *Builder) update(p *Payload, c Change, value *string) (*FieldChange, error) {
	i, err := locate(p.Fields, c)
	if err != nil {
		return nil, err
	}
	old := p.Fields[i]

	valueType := c.ValueType
	if valueType == "" {
		valueType = old.ValueType
	}
	if sameValue(old.Value, value) && valueType == old.ValueType {
		return nil, nil
	}

	f, err := b.HumanField(*p, old.Key, value, valueType, old.MappingID)
	if err != nil {
		return nil, err
	}
	f.ID = old.ID
	f.Evidence = old.Evidence
	p.Fields[i] = f

	return &FieldChange{
		FieldID:   f.ID,
		FieldKey:  f.Key,
		MappingID: old.MappingID,
		Op:        OpUpdate,
		OldValue:  old.Value,
		NewValue:  f.Value,
		ValueType: f.ValueType,
	}, nil
}

func remove(p *Payload, c Change) (*FieldChange, error) {
	i, err := locate(p.Fields, c)
	if err != nil {
		return nil, err
	}
	old := p.Fields[i]
	p.Fields = slices.Delete(p.Fields, i, i+1)

	return &FieldChange{
		FieldID:   old.ID,
		FieldKey:  old.Key,
		MappingID: old.MappingID,
		Op:        OpDelete,
		OldValue:  old.Value,
		ValueType: old.ValueType,
	}, nil
}

func locate(fields []Field, c Change) (int, error) {
	for i, f := range fields {
		if c.FieldID != "" && f.ID == c.FieldID {
			return i, nil
		}
		if c.FieldID == "" && c.Key != "" && f.Key == c.Key {
			return i, nil
		}
	}

	ref := c.FieldID
	if ref == "" {
		ref = c.Key
	}
	if ref == "" {
		return -1, fmt.Errorf("%w: %s requires a field id or key", ErrInvalidChange, c.Op)
	}
	return -1, fmt.Errorf("%w: %s", ErrFieldNotFound, ref)
}

func normalizeValue(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func sameValue(a, b *string) bool {
	switch {
	case a == nil || *a == "":
		return b == nil || *b == ""
	case b == nil:
		return false
	}
	return *a == *b
}
