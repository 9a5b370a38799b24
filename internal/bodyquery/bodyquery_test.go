package bodyquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	const jsonBody = `{"name":"fluffy","age":3,"tags":["a","b"],"owner":{"id":7}}`
	const xmlBody = `<pet id="42"><name> fluffy </name><owner><id>7</id></owner></pet>`

	tests := []struct {
		name   string
		body   string
		query  string
		want   string
		wantOK bool
	}{
		{"json string", jsonBody, "$.name", "fluffy", true},
		{"json number", jsonBody, "$.age", "3", true},
		{"json nested", jsonBody, "$.owner.id", "7", true},
		{"json array element", jsonBody, "$.tags[1]", "b", true},
		{"json object", jsonBody, "$.owner", `{"id":7}`, true},
		{"json missing", jsonBody, "$.colour", "", false},
		{"json not json", "not json", "$.name", "", false},
		{"xml element", xmlBody, "/pet/name", "fluffy", true},
		{"xml descendant", xmlBody, "//id", "7", true},
		{"xml attribute", xmlBody, "/pet/@id", "42", true},
		{"xml missing", xmlBody, "/pet/colour", "", false},
		{"xml not xml", "{}", "/pet/name", "", false},
		{"empty body", "", "$.name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Query(tt.body, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := CompileJSONPath("$.a[")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	assert.ErrorIs(t, CompileXPath("/pet[name"), ErrInvalidQuery)
	assert.NoError(t, CompileXPath("//pet/@id"))
}
