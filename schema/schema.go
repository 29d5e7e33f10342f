// Package schema describes the checklist form: its sections, plain fields,
// evaluation items and signature slots.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type FieldKind string

const (
	KindText          FieldKind = "text"
	KindDate          FieldKind = "date"
	KindDateTimeLocal FieldKind = "datetime-local"
	KindTextarea      FieldKind = "textarea"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindDate, KindDateTimeLocal, KindTextarea:
		return true
	}
	return false
}

type Field struct {
	Name  string    `yaml:"name" json:"name"`
	Label string    `yaml:"label" json:"label"`
	Kind  FieldKind `yaml:"type" json:"type"`
}

// Item is an evaluation row. Its values live under ConditionKey and
// ObservationKey.
type Item struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type Signature struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type Section struct {
	Title      string      `yaml:"title" json:"title"`
	Fields     []Field     `yaml:"fields,omitempty" json:"fields,omitempty"`
	Items      []Item      `yaml:"items,omitempty" json:"items,omitempty"`
	Signatures []Signature `yaml:"signatures,omitempty" json:"signatures,omitempty"`
}

const (
	conditionSuffix   = "_condition"
	observationSuffix = "_observation"
)

func ConditionKey(itemID string) string   { return itemID + conditionSuffix }
func ObservationKey(itemID string) string { return itemID + observationSuffix }

// Schema is immutable once built. Accessors return copies.
type Schema struct {
	title    string
	sections []Section

	fields     map[string]Field
	items      map[string]bool
	signatures map[string]bool
}

// schemaFile is the serialized form of a Schema.
type schemaFile struct {
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

func (s *Schema) Title() string { return s.title }

// Sections returns a deep copy of the form sections in declaration order.
func (s *Schema) Sections() []Section {
	out := make([]Section, len(s.sections))
	for i, sec := range s.sections {
		out[i] = Section{
			Title:      sec.Title,
			Fields:     append([]Field(nil), sec.Fields...),
			Items:      append([]Item(nil), sec.Items...),
			Signatures: append([]Signature(nil), sec.Signatures...),
		}
	}
	return out
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(schemaFile{Title: s.title, Sections: s.sections})
}

// Items returns every evaluation item in declaration order.
func (s *Schema) Items() []Item {
	var out []Item
	for _, sec := range s.sections {
		out = append(out, sec.Items...)
	}
	return out
}

func (s *Schema) Signatures() []Signature {
	var out []Signature
	for _, sec := range s.sections {
		out = append(out, sec.Signatures...)
	}
	return out
}

func (s *Schema) Fields() []Field {
	var out []Field
	for _, sec := range s.sections {
		out = append(out, sec.Fields...)
	}
	return out
}

func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

func (s *Schema) IsSignature(id string) bool { return s.signatures[id] }

// HasDerivedSuffix reports whether key is shaped like an evaluation key,
// declared or not. Such keys are never drawn as plain fields.
func HasDerivedSuffix(key string) bool {
	return strings.HasSuffix(key, conditionSuffix) || strings.HasSuffix(key, observationSuffix)
}

// IsDerivedKey reports whether key is the condition or observation key of a
// declared item.
func (s *Schema) IsDerivedKey(key string) bool {
	for _, suffix := range []string{conditionSuffix, observationSuffix} {
		if base, ok := strings.CutSuffix(key, suffix); ok && s.items[base] {
			return true
		}
	}
	return false
}

// Keys lists every value-map key the schema understands, in form order.
func (s *Schema) Keys() []string {
	var keys []string
	for _, sec := range s.sections {
		for _, f := range sec.Fields {
			keys = append(keys, f.Name)
		}
		for _, it := range sec.Items {
			keys = append(keys, ConditionKey(it.ID), ObservationKey(it.ID))
		}
		for _, sig := range sec.Signatures {
			keys = append(keys, sig.ID)
		}
	}
	return keys
}

// Parse decodes and validates a schema: identifiers must be non-empty and
// unique across fields, items and signatures.
func Parse(data []byte) (*Schema, error) {
	var doc schemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	s := &Schema{title: doc.Title, sections: doc.Sections}
	if err := s.index(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) index() error {
	s.fields = make(map[string]Field)
	s.items = make(map[string]bool)
	s.signatures = make(map[string]bool)
	seen := make(map[string]string)
	claim := func(id, what string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("schema: %s with empty identifier", what)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("schema: %q declared as %s and %s", id, prev, what)
		}
		seen[id] = what
		return nil
	}
	for i := range s.sections {
		sec := &s.sections[i]
		for j := range sec.Fields {
			f := &sec.Fields[j]
			if err := claim(f.Name, "field"); err != nil {
				return err
			}
			if f.Kind == "" {
				f.Kind = KindText
			}
			if !f.Kind.valid() {
				return fmt.Errorf("schema: field %q has unknown type %q", f.Name, f.Kind)
			}
			s.fields[f.Name] = *f
		}
		for _, it := range sec.Items {
			if err := claim(it.ID, "item"); err != nil {
				return err
			}
			s.items[it.ID] = true
		}
		for _, sig := range sec.Signatures {
			if err := claim(sig.ID, "signature"); err != nil {
				return err
			}
			s.signatures[sig.ID] = true
		}
	}
	for _, it := range s.Items() {
		for _, key := range []string{ConditionKey(it.ID), ObservationKey(it.ID)} {
			if what, clash := seen[key]; clash {
				return fmt.Errorf("schema: %s %q collides with a key of item %q", what, key, it.ID)
			}
		}
	}
	return nil
}

//go:embed default_schema.yaml
var defaultSchema []byte

var (
	defaultOnce sync.Once
	defaultVal  *Schema
)

// Default returns the "Checklist de Instalación TLK" schema.
func Default() *Schema {
	defaultOnce.Do(func() {
		s, err := Parse(defaultSchema)
		if err != nil {
			panic(err)
		}
		defaultVal = s
	})
	return defaultVal
}
