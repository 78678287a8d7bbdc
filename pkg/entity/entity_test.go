package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAttrMapsNilToAbsent(t *testing.T) {
	e := New(KindRole, "admin", SourceAPI)
	e.SetAttr("description", "Full control")
	e.SetAttr("suffix", nil)

	desc, ok := e.Attributes.Get("description")
	require.True(t, ok)
	assert.Equal(t, "Full control", desc)

	suffix, ok := e.Attributes.Get("suffix")
	require.True(t, ok)
	assert.True(t, IsAbsent(suffix))
}

func TestIsAbsent(t *testing.T) {
	assert.True(t, IsAbsent(Absent))
	assert.False(t, IsAbsent(nil))
	assert.False(t, IsAbsent(""))
	assert.False(t, IsAbsent(0))
}

func TestEntityMarshalJSON(t *testing.T) {
	e := New(KindProperty, "glide.war", SourceDatabase)
	e.SetAttr("value", "10.0.2")
	e.SetAttr("description", nil)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded struct {
		Kind       string         `json:"kind"`
		Key        string         `json:"key"`
		Source     string         `json:"source"`
		Attributes map[string]any `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "property", decoded.Kind)
	assert.Equal(t, "glide.war", decoded.Key)
	assert.Equal(t, "database", decoded.Source)
	assert.Equal(t, "10.0.2", decoded.Attributes["value"])

	// The absent marker renders as JSON null, not as a missing field.
	val, present := decoded.Attributes["description"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestAttributesPreserveInsertionOrder(t *testing.T) {
	e := New(KindModule, "incident_overview", SourceAPI)
	for _, name := range []string{"name", "title", "application", "active"} {
		e.SetAttr(name, "x")
	}

	var got []string
	for el := e.Attributes.Front(); el != nil; el = el.Next() {
		got = append(got, el.Key)
	}
	assert.Equal(t, []string{"name", "title", "application", "active"}, got)
}

func TestResultAddDeduplicatesKeys(t *testing.T) {
	r := NewResult(KindTable, SourceAPI)
	r.Add(New(KindTable, "incident", SourceAPI))
	r.Add(New(KindTable, "task", SourceAPI))
	r.Add(New(KindTable, "incident", SourceAPI))

	assert.Len(t, r.Entities, 2)
	assert.Equal(t, map[string]struct{}{"incident": {}, "task": {}}, r.Keys())
}

func TestKindsCoverEveryExtractedType(t *testing.T) {
	assert.Equal(t,
		[]Kind{KindModule, KindRole, KindTable, KindProperty, KindScheduledJob},
		Kinds())
}
