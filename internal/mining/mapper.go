package mining

import (
	"cmp"
	"slices"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

// Mapping is the schema projection of one mining pass: the selected
// candidates per key in contract order.
type Mapping struct {
	Keys     []string
	Selected map[string][]Candidate
}

// MapToSchema selects candidates for every key of contract. Candidates are
// ordered by rank, then confidence, both descending; discovery order breaks
// remaining ties. Non-repeatable keys keep the top candidate, repeatable keys
// keep up to MaxRepeatable.
func MapToSchema(contract *schema.Contract, candidates Candidates) Mapping {
	m := Mapping{
		Keys:     make([]string, 0, len(contract.Keys)),
		Selected: make(map[string][]Candidate, len(contract.Keys)),
	}
	for _, k := range contract.Keys {
		m.Keys = append(m.Keys, k.Key)

		ranked := slices.Clone(candidates[k.Key])
		slices.SortStableFunc(ranked, func(a, b Candidate) int {
			if c := cmp.Compare(b.Rank, a.Rank); c != 0 {
				return c
			}
			return cmp.Compare(b.Confidence, a.Confidence)
		})

		limit := 1
		if k.Repeatable {
			limit = MaxRepeatable
		}
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		if len(ranked) > 0 {
			m.Selected[k.Key] = ranked
		}
	}
	return m
}

// Value returns the selected value of a non-repeatable key, or nil.
func (m Mapping) Value(key string) *string {
	sel := m.Selected[key]
	if len(sel) == 0 {
		return nil
	}
	v := sel[0].Value
	return &v
}

// Values returns the schema values keyed by schema key: nil for an empty
// key, a string for a single value and a slice for repeatable keys.
func (m Mapping) Values(contract *schema.Contract) map[string]any {
	out := make(map[string]any, len(m.Keys))
	for _, key := range m.Keys {
		sel := m.Selected[key]
		def, _ := contract.Lookup(key)
		switch {
		case len(sel) == 0:
			out[key] = nil
		case def.Repeatable:
			vals := make([]string, len(sel))
			for i, c := range sel {
				vals[i] = c.Value
			}
			out[key] = vals
		default:
			out[key] = sel[0].Value
		}
	}
	return out
}

// Evidence returns the evidence of every selected candidate by key.
func (m Mapping) Evidence() map[string][]Evidence {
	out := make(map[string][]Evidence, len(m.Selected))
	for key, sel := range m.Selected {
		ev := make([]Evidence, len(sel))
		for i, c := range sel {
			ev[i] = c.Evidence
		}
		out[key] = ev
	}
	return out
}
