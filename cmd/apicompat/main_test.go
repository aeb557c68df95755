package main

import (
	"testing"

	"estatehub/docs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
swagger: "2.0"
paths:
  /listings:
    get:
      responses:
        "200": {description: OK}
        "400": {description: Bad}
  /listings/{id}:
    get:
      parameters:
        - {name: id, in: path, required: true, type: integer}
      responses:
        "200": {description: OK}
        "404": {description: Missing}
    delete:
      security:
        - BearerAuth: []
      responses:
        "200": {description: OK}
`

func TestCompare_Identical(t *testing.T) {
	base, err := parseSpec([]byte(baseYAML))
	require.NoError(t, err)
	assert.Empty(t, compare(base, base))
}

func TestCompare_BreakingChanges(t *testing.T) {
	base, err := parseSpec([]byte(baseYAML))
	require.NoError(t, err)

	revision, err := parseSpec([]byte(`
paths:
  /listings:
    get:
      security:
        - BearerAuth: []
      parameters:
        - {name: city, in: query, required: true, type: string}
      responses:
        "200": {description: OK}
  /listings/{id}:
    get:
      parameters:
        - {name: id, in: path, required: true, type: integer}
      responses:
        "200": {description: OK}
        "404": {description: Missing}
`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"new required parameter: GET /listings -> query:city",
		"operation now requires authentication: GET /listings",
		"removed operation: DELETE /listings/{id}",
		"removed response code: GET /listings -> 400",
	}, compare(base, revision))
}

func TestCompare_AdditionsAreCompatible(t *testing.T) {
	base, err := parseSpec([]byte(baseYAML))
	require.NoError(t, err)

	revision, err := parseSpec([]byte(baseYAML + `
  /tickets:
    post:
      responses:
        "201": {description: Created}
`))
	require.NoError(t, err)
	assert.Empty(t, compare(base, revision))
}

func TestParseSpec_BuiltinDocument(t *testing.T) {
	spec, err := parseSpec([]byte(docs.SwaggerInfo.ReadDoc()))
	require.NoError(t, err)

	ops, ok := spec.Paths["/listings/{id}"]
	require.True(t, ok)
	assert.Contains(t, ops, "get")
	assert.True(t, ops["delete"].Secured)
	assert.Contains(t, ops["get"].Required, "path:id")
	assert.Empty(t, compare(spec, spec))
}

func TestParseSpec_MissingPaths(t *testing.T) {
	_, err := parseSpec([]byte(`swagger: "2.0"`))
	assert.Error(t, err)
}
