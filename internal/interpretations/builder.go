package interpretations

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/mining"
	"github.com/JaimeStill/vetrecords/internal/schema"
)

// Builder turns raw text into an interpretation payload. It holds no
// mutable state and is safe for concurrent use.
type Builder struct {
	contract *schema.Contract
	miner    *mining.Miner
	policy   calibration.Policy
	newID    func() string
}

// NewBuilder creates a Builder over a loaded contract and policy.
func NewBuilder(contract *schema.Contract, policy calibration.Policy) *Builder {
	return &Builder{
		contract: contract,
		miner:    mining.New(contract),
		policy:   policy,
		newID:    uuid.NewString,
	}
}

// Context returns the detected language and calibration context key of text.
func (b *Builder) Context(text string) (language, contextKey string) {
	language = mining.DetectLanguage(text, b.policy.Language)
	contextKey = b.policy.ContextKey(calibration.ContextInput{Language: language})
	return language, contextKey
}

// Build mines text, maps the candidates onto the schema and scores each
// selected value with the adjustments of table.
func (b *Builder) Build(text string, table calibration.Table) Payload {
	language, contextKey := b.Context(text)
	mapping := mining.MapToSchema(b.contract, b.miner.Mine(text))

	p := Payload{
		SchemaVersion: b.contract.Version,
		PolicyVersion: b.policy.Version,
		ContextKey:    contextKey,
		Language:      language,
		Fields:        []Field{},
	}

	for _, key := range mapping.Keys {
		def, _ := b.contract.Lookup(key)
		for _, cand := range mapping.Selected[key] {
			value := cand.Value
			candidate := calibration.ClampConfidence(cand.Confidence)
			adjustment := table.Adjustment(key, cand.MappingID)
			confidence := calibration.MappingConfidence(candidate, adjustment)

			f := Field{
				ID:                      b.newID(),
				Key:                     key,
				Value:                   &value,
				ValueType:               def.ValueType,
				CandidateConfidence:     candidate,
				ReviewHistoryAdjustment: adjustment,
				MappingConfidence:       confidence,
				Band:                    b.policy.Band(confidence),
				ContextKey:              contextKey,
				PolicyVersion:           b.policy.Version,
				IsCritical:              def.Critical,
				Origin:                  OriginMachine,
				Evidence:                &Evidence{Page: cand.Evidence.Page, Snippet: cand.Evidence.Snippet},
			}
			if cand.MappingID != "" {
				id := cand.MappingID
				f.MappingID = &id
			}
			p.Fields = append(p.Fields, f)
		}
	}

	b.Project(&p)
	return p
}

// HumanField creates a field for a value entered by a reviewer. It carries
// the neutral confidence of the policy and no review adjustment.
func (b *Builder) HumanField(p Payload, key string, value *string, valueType schema.ValueType, mappingID *string) (Field, error) {
	def, ok := b.contract.Lookup(key)
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", schema.ErrUnknownKey, key)
	}
	if valueType == "" {
		valueType = def.ValueType
	}

	confidence := calibration.ClampConfidence(b.policy.NeutralConfidence)
	return Field{
		ID:                  b.newID(),
		Key:                 key,
		Value:               value,
		ValueType:           valueType,
		CandidateConfidence: confidence,
		MappingConfidence:   confidence,
		Band:                b.policy.Band(confidence),
		ContextKey:          p.ContextKey,
		MappingID:           mappingID,
		PolicyVersion:       p.PolicyVersion,
		IsCritical:          def.Critical,
		Origin:              OriginHuman,
	}, nil
}

// Project rebuilds the global schema and canonical projections of p from
// its fields.
func (b *Builder) Project(p *Payload) {
	p.GlobalSchema = make([]SchemaEntry, 0, len(b.contract.Keys))
	for _, k := range b.contract.Keys {
		entry := SchemaEntry{
			Key:        k.Key,
			ValueType:  k.ValueType,
			Repeatable: k.Repeatable,
			Critical:   k.Critical,
			Values:     []string{},
			FieldIDs:   []string{},
		}
		for _, f := range p.Fields {
			if f.Key != k.Key || f.Empty() {
				continue
			}
			if !k.Repeatable && len(entry.Values) == 1 {
				break
			}
			entry.Values = append(entry.Values, *f.Value)
			entry.FieldIDs = append(entry.FieldIDs, f.ID)
		}
		p.GlobalSchema = append(p.GlobalSchema, entry)
	}

	fields := make([]mining.ProjectionField, 0, len(p.Fields))
	for _, f := range p.Fields {
		if f.Empty() {
			continue
		}
		pf := mining.ProjectionField{ID: f.ID, Key: f.Key, Value: *f.Value}
		if f.Evidence != nil {
			pf.Snippet = f.Evidence.Snippet
		}
		fields = append(fields, pf)
	}
	p.Canonical = mining.ProjectVisits(b.contract, fields)
}
