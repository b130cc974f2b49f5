package assert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/apiflow/pkg/snapshot"
)

func TestToGJSONPath(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"data.items[0].name", "data.items.0.name"},
		{"$.data.items[0].name", "data.items.0.name"},
		{"$.total", "total"},
		{"items[12]", "items.12"},
		{`headers["content-type"]`, "headers.content-type"},
		{"items[0][1]", "items.0.1"},
		{"plain", "plain"},
		{"$", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, toGJSONPath(tt.target))
		})
	}
}

func TestResolveJSONPath(t *testing.T) {
	body := `{"data":{"items":[{"name":"Ada"},{"name":"Grace"}],"total":2,"ratio":0.5,"active":true,"none":null}}`

	tests := []struct {
		name   string
		target string
		want   interface{}
	}{
		{"nested string", "data.items[0].name", "Ada"},
		{"whole number stays int", "data.total", 2},
		{"fraction stays float", "data.ratio", 0.5},
		{"boolean", "data.active", true},
		{"json null resolves to nil", "data.none", nil},
		{"missing key", "data.missing", nil},
		{"index out of range", "data.items[9].name", nil},
		{"array value", "data.items", []interface{}{
			map[string]interface{}{"name": "Ada"},
			map[string]interface{}{"name": "Grace"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveJSONPath(body, tt.target))
		})
	}
}

func TestResolveJSONPathRootAndInvalid(t *testing.T) {
	root := resolveJSONPath(`{"a":1}`, "$")
	assert.Equal(t, map[string]interface{}{"a": 1.0}, root)

	assert.Nil(t, resolveJSONPath("not json", "a.b"))
	assert.Nil(t, resolveJSONPath("", "a"))
}

func TestResolveActual(t *testing.T) {
	resp := &snapshot.ResponseSnapshot{
		Status:    404,
		Headers:   map[string]string{"Content-Type": "text/plain"},
		Body:      "not found",
		TimeMS:    42,
		SizeBytes: 9,
	}

	v, err := resolveActual(Assertion{Type: TypeStatus}, resp)
	require.NoError(t, err)
	assert.Equal(t, 404, v)

	v, err = resolveActual(Assertion{Type: TypeHeader, Target: "content-type"}, resp)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", v)

	v, err = resolveActual(Assertion{Type: TypeHeader, Target: "ETag"}, resp)
	require.NoError(t, err)
	assert.Nil(t, v, "absent header resolves to nil, not an error")

	v, err = resolveActual(Assertion{Type: TypeBody}, resp)
	require.NoError(t, err)
	assert.Equal(t, "not found", v)

	v, err = resolveActual(Assertion{Type: TypeResponseTime}, resp)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = resolveActual(Assertion{Type: Type("cookie")}, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}
