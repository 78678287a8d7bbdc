// Package extract maps both channels into the normalized entity schema.
// One extractor per kind per source; failures are recorded in the result,
// never thrown, so a broken kind cannot abort its siblings.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

// Extractor is the shared contract for both channel variants. Extract
// never returns a Go error: partial and failed runs land in the result.
type Extractor interface {
	Kind() entity.Kind
	Source() entity.Source
	Extract(ctx context.Context) *entity.ExtractionResult
}

// kindSpec binds an entity kind to its system table, identity field, and
// the attributes both channels extract.
type kindSpec struct {
	kind     entity.Kind
	table    string
	keyField string
	fields   []string
}

// kindSpecs is the fixed mapping for the five extracted kinds. The field
// lists mirror the catalog statements so both channels see the same shape.
var kindSpecs = map[entity.Kind]kindSpec{
	entity.KindModule: {
		kind:     entity.KindModule,
		table:    "sys_app_module",
		keyField: "name",
		fields:   []string{"name", "title", "application", "active", "order"},
	},
	entity.KindRole: {
		kind:     entity.KindRole,
		table:    "sys_user_role",
		keyField: "name",
		fields:   []string{"name", "description", "suffix", "elevated_privilege"},
	},
	entity.KindTable: {
		kind:     entity.KindTable,
		table:    "sys_db_object",
		keyField: "name",
		fields:   []string{"name", "label", "super_class", "sys_package"},
	},
	entity.KindProperty: {
		kind:     entity.KindProperty,
		table:    "sys_properties",
		keyField: "name",
		fields:   []string{"name", "value", "type", "description"},
	},
	entity.KindScheduledJob: {
		kind:     entity.KindScheduledJob,
		table:    "sysauto_script",
		keyField: "name",
		fields:   []string{"name", "active", "run_type", "run_period"},
	},
}

// recordToEntity maps one raw record onto an entity. Missing and nil
// attribute values become the explicit absent marker.
func recordToEntity(spec kindSpec, source entity.Source, record map[string]any) (entity.Entity, bool) {
	key := scalarKey(record[spec.keyField])
	if key == "" {
		return entity.Entity{}, false
	}

	e := entity.New(spec.kind, key, source)
	for _, field := range spec.fields {
		value, ok := record[field]
		if !ok || value == nil {
			e.SetAttr(field, nil)
			continue
		}
		e.SetAttr(field, value)
	}
	return e, true
}

// scalarKey renders an identity value as a trimmed string. Non-string
// scalars (numeric sys ids, bytes) are formatted rather than dropped.
func scalarKey(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case []byte:
		return strings.TrimSpace(string(value))
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}
