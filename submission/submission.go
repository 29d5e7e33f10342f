// Package submission translates the flat key/value map produced by the form
// into typed values.
package submission

import (
	"sort"

	"github.com/wudi/pdfoverlay/schema"
)

// Values maps identifiers to raw form values. Signature slots hold "" or a
// PNG data URL.
type Values map[string]string

// Condition is the verdict recorded for an evaluation item.
type Condition int

const (
	Pending Condition = iota
	Pass
	Fail
	Skipped
)

func (c Condition) String() string {
	switch c {
	case Pass:
		return "apto"
	case Fail:
		return "no_apto"
	case Skipped:
		return "saltar"
	}
	return "pending"
}

// ParseCondition maps the wire value. Anything unrecognised, including the
// empty string, is Pending.
func ParseCondition(raw string) Condition {
	switch raw {
	case "apto":
		return Pass
	case "no_apto":
		return Fail
	case "saltar":
		return Skipped
	}
	return Pending
}

type Evaluation struct {
	ItemID      string
	Condition   Condition
	Observation string
}

type SignatureValue struct {
	SlotID  string
	DataURL string
}

// Field is a plain value keyed by identifier. Kind is empty when the
// identifier is not declared by the schema.
type Field struct {
	Key   string
	Value string
	Kind  schema.FieldKind
}

type Submission struct {
	Fields      []Field
	Evaluations []Evaluation
	Signatures  []SignatureValue
}

// FromValues splits v using s. Fields are every non-empty key that is
// neither a derived item key nor a signature slot, sorted by key.
// Evaluations and signatures follow schema order; empty signature values are
// dropped.
func FromValues(s *schema.Schema, v Values) Submission {
	var sub Submission
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v[k] == "" || schema.HasDerivedSuffix(k) || s.IsSignature(k) {
			continue
		}
		f := Field{Key: k, Value: v[k]}
		if decl, ok := s.Field(k); ok {
			f.Kind = decl.Kind
		}
		sub.Fields = append(sub.Fields, f)
	}
	for _, it := range s.Items() {
		sub.Evaluations = append(sub.Evaluations, Evaluation{
			ItemID:      it.ID,
			Condition:   ParseCondition(v[schema.ConditionKey(it.ID)]),
			Observation: v[schema.ObservationKey(it.ID)],
		})
	}
	for _, sig := range s.Signatures() {
		if url := v[sig.ID]; url != "" {
			sub.Signatures = append(sub.Signatures, SignatureValue{SlotID: sig.ID, DataURL: url})
		}
	}
	return sub
}
