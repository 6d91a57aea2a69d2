// Package schema loads the global schema contract: the fixed, versioned and
// ordered list of keys every interpretation is mapped to.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed contract.yaml
var contractYAML []byte

//go:embed contract.schema.json
var contractSchema []byte

// ValueType is the type of a schema key's value.
type ValueType string

const (
	TypeString     ValueType = "string"
	TypeDate       ValueType = "date"
	TypeNumber     ValueType = "number"
	TypeText       ValueType = "text"
	TypeIdentifier ValueType = "identifier"
	TypePhone      ValueType = "phone"
)

// Scope separates document-level keys from keys grouped per visit.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeVisit    Scope = "visit"
)

// Key defines one entry of the global schema.
type Key struct {
	Key        string    `yaml:"key" json:"key"`
	ValueType  ValueType `yaml:"value_type" json:"value_type"`
	Repeatable bool      `yaml:"repeatable" json:"repeatable"`
	Critical   bool      `yaml:"critical" json:"critical"`
	Scope      Scope     `yaml:"scope" json:"scope"`
	Labels     []string  `yaml:"labels" json:"labels,omitempty"`
}

// Contract is a validated schema definition.
type Contract struct {
	Version string `yaml:"version" json:"version"`
	Keys    []Key  `yaml:"keys" json:"keys"`

	index map[string]int
}

// Load parses and validates the embedded contract. A failure here is a
// startup error.
func Load() (*Contract, error) {
	return Parse(contractYAML)
}

// Parse decodes a YAML contract, validates it against the contract JSON
// schema and checks key definitions for duplicates and gaps.
func Parse(data []byte) (*Contract, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidContract, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode contract: %w", ErrInvalidContract, err)
	}

	c.index = make(map[string]int, len(c.Keys))
	for i, k := range c.Keys {
		if _, exists := c.index[k.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, k.Key)
		}
		if k.Key == "" || k.ValueType == "" || k.Scope == "" || len(k.Labels) == 0 {
			return nil, fmt.Errorf("%w: entry %d", ErrIncompleteKey, i)
		}
		if k.Scope == ScopeVisit && !k.Repeatable {
			return nil, fmt.Errorf("%w: visit-scoped key %s must be repeatable", ErrIncompleteKey, k.Key)
		}
		c.index[k.Key] = i
	}
	return &c, nil
}

func validateDocument(raw any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("contract.schema.json", bytes.NewReader(contractSchema)); err != nil {
		return fmt.Errorf("add contract schema: %w", err)
	}
	sch, err := compiler.Compile("contract.schema.json")
	if err != nil {
		return fmt.Errorf("compile contract schema: %w", err)
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContract, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContract, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContract, err)
	}
	return nil
}

// Lookup returns the definition of key.
func (c *Contract) Lookup(key string) (Key, bool) {
	i, ok := c.index[key]
	if !ok {
		return Key{}, false
	}
	return c.Keys[i], true
}

// Has reports whether key is part of the contract.
func (c *Contract) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Position returns the order of key in the contract, or -1.
func (c *Contract) Position(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

// VisitScoped reports whether key is grouped per visit.
func (c *Contract) VisitScoped(key string) bool {
	k, ok := c.Lookup(key)
	return ok && k.Scope == ScopeVisit
}

// Critical reports whether key is flagged critical.
func (c *Contract) Critical(key string) bool {
	k, ok := c.Lookup(key)
	return ok && k.Critical
}

// KeysOf returns the keys of the given value type in contract order.
func (c *Contract) KeysOf(t ValueType) []Key {
	var out []Key
	for _, k := range c.Keys {
		if k.ValueType == t {
			out = append(out, k)
		}
	}
	return out
}

// Label is one label of a key, used to anchor line patterns.
type Label struct {
	Key  string
	Text string
}

// Labels returns every label ordered longest first so that a specific label
// wins over a shorter one it contains. Ties keep contract order.
func (c *Contract) Labels() []Label {
	var out []Label
	for _, k := range c.Keys {
		for _, l := range k.Labels {
			out = append(out, Label{Key: k.Key, Text: strings.ToLower(l)})
		}
	}
	slices.SortStableFunc(out, func(a, b Label) int {
		return len([]rune(b.Text)) - len([]rune(a.Text))
	})
	return out
}
