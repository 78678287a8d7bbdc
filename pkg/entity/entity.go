// Package entity defines the normalized schema both extraction channels
// map into. Entities are built once per run and never mutated afterward.
package entity

import (
	"encoding/json"

	"github.com/elliotchance/orderedmap/v2"
)

// Kind enumerates the extracted entity types.
type Kind string

const (
	KindModule       Kind = "module"
	KindRole         Kind = "role"
	KindTable        Kind = "table"
	KindProperty     Kind = "property"
	KindScheduledJob Kind = "scheduled_job"
)

// Kinds lists all entity kinds in extraction order.
func Kinds() []Kind {
	return []Kind{KindModule, KindRole, KindTable, KindProperty, KindScheduledJob}
}

// Source identifies the channel an entity came from. Set at creation,
// never mutated.
type Source string

const (
	SourceAPI      Source = "api"
	SourceDatabase Source = "database"
)

// absent is the explicit marker for NULL or missing attribute values.
// Mapping NULL to a marker instead of an error keeps row mapping total.
type absent struct{}

func (absent) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Absent is the singleton absent-value marker.
var Absent = absent{}

// IsAbsent reports whether v is the absent-value marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Entity is one normalized record. Attributes preserve insertion order so
// the two channels produce diffable output; attribute sets may legitimately
// differ between sources for the same key.
type Entity struct {
	Kind       Kind
	Key        string
	Source     Source
	Attributes *orderedmap.OrderedMap[string, any]
}

// New creates an entity with an empty attribute map.
func New(kind Kind, key string, source Source) Entity {
	return Entity{
		Kind:       kind,
		Key:        key,
		Source:     source,
		Attributes: orderedmap.NewOrderedMap[string, any](),
	}
}

// SetAttr records an attribute, substituting the absent marker for nil.
func (e Entity) SetAttr(name string, value any) {
	if value == nil {
		e.Attributes.Set(name, Absent)
		return
	}
	e.Attributes.Set(name, value)
}

// MarshalJSON renders the entity in the report wire shape.
func (e Entity) MarshalJSON() ([]byte, error) {
	attrs := make(map[string]any, e.Attributes.Len())
	for el := e.Attributes.Front(); el != nil; el = el.Next() {
		attrs[el.Key] = el.Value
	}
	return json.Marshal(struct {
		Kind       Kind           `json:"kind"`
		Key        string         `json:"key"`
		Source     Source         `json:"source"`
		Attributes map[string]any `json:"attributes"`
	}{e.Kind, e.Key, e.Source, attrs})
}

// ExtractionResult is the outcome of one extractor run: entities collected
// plus an optional failure. Both can be populated at once (partial success).
type ExtractionResult struct {
	Kind     Kind
	Source   Source
	Entities []Entity
	Err      error

	seen map[string]struct{}
}

// NewResult creates an empty result for a kind and source.
func NewResult(kind Kind, source Source) *ExtractionResult {
	return &ExtractionResult{
		Kind:   kind,
		Source: source,
		seen:   make(map[string]struct{}),
	}
}

// Add appends an entity, ignoring duplicate keys so the entity set stays
// unique within the result.
func (r *ExtractionResult) Add(e Entity) {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, dup := r.seen[e.Key]; dup {
		return
	}
	r.seen[e.Key] = struct{}{}
	r.Entities = append(r.Entities, e)
}

// Keys returns the set of entity keys in the result.
func (r *ExtractionResult) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(r.Entities))
	for _, e := range r.Entities {
		keys[e.Key] = struct{}{}
	}
	return keys
}
