package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorsReportAbsence(t *testing.T) {
	var d Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"plan": "p1",
		"empty": "",
		"ok": true,
		"n": 3.5,
		"nested": {"a": "b"},
		"items": [1, 2]
	}`), &d))

	s, ok := d.String("plan")
	assert.True(t, ok)
	assert.Equal(t, "p1", s)

	_, ok = d.String("empty")
	assert.False(t, ok, "empty strings count as absent")

	_, ok = d.String("ok")
	assert.False(t, ok, "type mismatch is absence")

	b, ok := d.Bool("ok")
	assert.True(t, ok)
	assert.True(t, b)

	n, ok := d.Number("n")
	assert.True(t, ok)
	assert.Equal(t, 3.5, n)

	nested, ok := d.Map("nested")
	require.True(t, ok)
	assert.Equal(t, "b", nested.StringOr("a", "x"))

	items, ok := d.List("items")
	assert.True(t, ok)
	assert.Len(t, items, 2)

	_, ok = d.Map("missing")
	assert.False(t, ok)
	assert.Equal(t, "fallback", d.StringOr("missing", "fallback"))
}

func TestNilDocumentIsSafe(t *testing.T) {
	var d Document
	_, ok := d.String("anything")
	assert.False(t, ok)
	_, ok = d.List("anything")
	assert.False(t, ok)
}

func TestUnmarshalNonObject(t *testing.T) {
	var d Document
	require.NoError(t, json.Unmarshal([]byte(`[1,2,3]`), &d))
	assert.Nil(t, d)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Nil(t, d)
}
