package confdb_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/pkg/confdb"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

var ruleModel = datamodel.MustParse(`{
	"type": "config",
	"id": "conf.system.network.iptables.rule",
	"queryinfo": {"xpath": "//system/network/iptables/rule", "iterable": true},
	"properties": {
		"uuid": {"type": "string"},
		"enable": {"type": "boolean", "default": true},
		"dport": {"type": "integer", "default": 80},
		"weight": {"type": "number"},
		"sources": {"type": "array", "items": {"type": "string"}},
		"opts": {
			"type": "object",
			"properties": {
				"log": {"type": "boolean"},
				"prefix": {"type": "string", "default": "fw"}
			}
		}
	}
}`)

func Test_NewObject_Applies_Defaults_When_Created(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)

	want := map[string]any{
		"uuid":    confdb.NewObjectID,
		"enable":  true,
		"dport":   int64(80),
		"weight":  float64(0),
		"sources": []any{},
		"opts":    map[string]any{"log": false, "prefix": "fw"},
	}
	if diff := cmp.Diff(want, o.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, o.IsNew())
	assert.True(t, o.IsIterable())
	assert.False(t, o.IsReferenceable())
	assert.Equal(t, ruleModel.ID, o.ModelID())
}

func Test_Object_Set_Coerces_Values_When_Types_Differ(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)

	require.NoError(t, o.SetAssoc(map[string]any{
		"enable":      "off",
		"dport":       "8080",
		"weight":      json.Number("0.5"),
		"sources":     "10.0.0.0/8",
		"opts.log":    1,
		"opts.prefix": 42,
	}))

	assert.Equal(t, false, o.Get("enable"))
	assert.Equal(t, int64(8080), o.Get("dport"))
	assert.Equal(t, 0.5, o.Get("weight"))
	assert.Equal(t, []any{"10.0.0.0/8"}, o.Get("sources"))
	assert.Equal(t, true, o.Get("opts.log"))
	assert.Equal(t, "42", o.Get("opts.prefix"))
	assert.Equal(t, "8080", o.GetString("dport"))
	assert.Equal(t, "0", o.GetString("enable"))
}

func Test_Object_Set_Fails_When_Property_Unknown_Or_Value_Invalid(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)

	require.ErrorIs(t, o.Set("nope", 1), confdb.ErrUnknownProperty)
	require.ErrorIs(t, o.Set("dport.x", 1), confdb.ErrUnknownProperty)
	require.ErrorIs(t, o.Set("opts.nope", 1), confdb.ErrUnknownProperty)
	require.ErrorIs(t, o.Set("dport", "eighty"), confdb.ErrInvalidValue)
	require.ErrorIs(t, o.Set("dport", 1.5), confdb.ErrInvalidValue)
	require.ErrorIs(t, o.Set("enable", "maybe"), confdb.ErrInvalidValue)

	assert.Equal(t, int64(80), o.Get("dport"))
}

func Test_Object_Has_Distinguishes_Missing_When_Path_Nested(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)

	assert.True(t, o.Has("opts.prefix"))
	assert.False(t, o.Has("opts.missing"))
	assert.False(t, o.Has("dport.x"))
	assert.Nil(t, o.Get("opts.missing"))
	assert.Equal(t, "", o.GetString("opts.missing"))
}

func Test_Object_Clone_Is_Independent_When_Modified(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)
	c := o.Clone()

	require.NoError(t, c.Set("opts.prefix", "changed"))
	require.NoError(t, c.Set("sources", []string{"a", "b"}))

	assert.Equal(t, "fw", o.Get("opts.prefix"))
	assert.Equal(t, []any{}, o.Get("sources"))

	vals := o.Values()
	vals["opts"].(map[string]any)["prefix"] = "mutated"

	assert.Equal(t, "fw", o.Get("opts.prefix"))
}

func Test_Object_MarshalJSON_Uses_Declaration_Order_When_Encoding(t *testing.T) {
	t.Parallel()

	o := confdb.NewObject(ruleModel)
	require.NoError(t, o.Set("uuid", "r1"))

	data, err := json.Marshal(o)
	require.NoError(t, err)

	want := `{"uuid":"r1","enable":true,"dport":80,"weight":0,"sources":[],"opts":{"log":false,"prefix":"fw"}}`
	assert.Equal(t, want, string(data))
	assert.False(t, o.IsNew())
	assert.Equal(t, "r1", o.ID())
}

func Test_Object_ID_Is_Empty_When_Model_Is_Singleton(t *testing.T) {
	t.Parallel()

	m := datamodel.MustParse(`{
		"type": "config",
		"id": "conf.system.time",
		"queryinfo": {"xpath": "//system/time", "iterable": false},
		"properties": {"timezone": {"type": "string", "default": "Etc/UTC"}}
	}`)

	o := confdb.NewObject(m)

	assert.Equal(t, "", o.ID())
	assert.False(t, o.IsNew())
	assert.Equal(t, "Etc/UTC", o.GetString("timezone"))
}
