package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forkExecJSON = `{
  "UseRegex": false,
  "Events": [
    {"ID": 0, "Signature": "fork", "SubjectID": 0, "ObjectID": 1, "Parents": []},
    {"ID": 1, "Signature": "execve", "SubjectID": 1, "ObjectID": 2, "Parents": [0]}
  ]
}`

func TestParse_JSON(t *testing.T) {
	p, err := Parse([]byte(forkExecJSON), FormatJSON)
	require.NoError(t, err)

	assert.False(t, p.UseRegex)
	assert.Equal(t, 2, p.NumEdges())
	assert.Equal(t, 3, p.Graph.NumNodes())
	assert.Equal(t, Edge{ID: 1, Signature: "execve", Start: 1, End: 2}, p.Graph.Edge(1))
	assert.Equal(t, []int{Root}, p.Order.Parents(0))
	assert.Equal(t, []int{0}, p.Order.Parents(1))
	assert.Equal(t, []int{1}, p.Order.Children(0))
	assert.Equal(t, []int{0}, p.Order.Children(Root))
}

func TestParse_YAML(t *testing.T) {
	data := `
UseRegex: true
Events:
  - {ID: 1, Signature: "exec.*", SubjectID: 1, ObjectID: 2, Parents: [0]}
  - {ID: 0, Signature: "fork", SubjectID: 0, ObjectID: 1, Parents: []}
`
	p, err := Parse([]byte(data), FormatYAML)
	require.NoError(t, err)

	assert.True(t, p.UseRegex)
	assert.Equal(t, "fork", p.Graph.Edge(0).Signature, "events are reordered by id")
	assert.Equal(t, "exec.*", p.Graph.Edge(1).Signature)
}

func TestParse_CUE(t *testing.T) {
	data := `
pattern: {
	UseRegex: false
	Events: [
		{ID: 0, Signature: "fork", SubjectID: 0, ObjectID: 1, Parents: []},
		{ID: 1, Signature: "execve", SubjectID: 1, ObjectID: 2, Parents: [0]},
	]
}
`
	p, err := Parse([]byte(data), FormatCUE)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumEdges())
	assert.True(t, p.Order.IsParent(0, 1))
}

func TestParse_CUEMissingPatternField(t *testing.T) {
	_, err := Parse([]byte(`other: 1`), FormatCUE)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeFormat, pe.Code)
}

func TestParse_NormalizesSignatures(t *testing.T) {
	// "e" followed by a combining acute accent.
	data := `{"UseRegex": false, "Events": [
		{"ID": 0, "Signature": "cafe\u0301", "SubjectID": 0, "ObjectID": 1, "Parents": []}
	]}`
	p, err := Parse([]byte(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", p.Graph.Edge(0).Signature)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		code ErrorCode
	}{
		{
			name: "malformed json",
			data: `{"Events": [`,
			code: ErrCodeFormat,
		},
		{
			name: "no events",
			data: `{"UseRegex": false, "Events": []}`,
			code: ErrCodeIDs,
		},
		{
			name: "sparse ids",
			data: `{"Events": [{"ID": 0, "Signature": "a", "SubjectID": 0, "ObjectID": 1, "Parents": []},
				{"ID": 2, "Signature": "b", "SubjectID": 1, "ObjectID": 2, "Parents": []}]}`,
			code: ErrCodeIDs,
		},
		{
			name: "duplicate ids",
			data: `{"Events": [{"ID": 0, "Signature": "a", "SubjectID": 0, "ObjectID": 1, "Parents": []},
				{"ID": 0, "Signature": "b", "SubjectID": 1, "ObjectID": 2, "Parents": []}]}`,
			code: ErrCodeIDs,
		},
		{
			name: "unknown parent",
			data: `{"Events": [{"ID": 0, "Signature": "a", "SubjectID": 0, "ObjectID": 1, "Parents": [7]}]}`,
			code: ErrCodeIDs,
		},
		{
			name: "negative node",
			data: `{"Events": [{"ID": 0, "Signature": "a", "SubjectID": -3, "ObjectID": 1, "Parents": []}]}`,
			code: ErrCodeIDs,
		},
		{
			name: "temporal cycle",
			data: `{"Events": [{"ID": 0, "Signature": "a", "SubjectID": 0, "ObjectID": 1, "Parents": [1]},
				{"ID": 1, "Signature": "b", "SubjectID": 1, "ObjectID": 2, "Parents": [0]}]}`,
			code: ErrCodeCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatJSON)
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fork_exec.json")
	require.NoError(t, os.WriteFile(path, []byte(forkExecJSON), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumEdges())
}

func TestLoad_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pattern.txt")
	require.NoError(t, os.WriteFile(path, []byte(forkExecJSON), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), string(ErrCodeFormat))
}

func TestToSpec_RoundTrip(t *testing.T) {
	p, err := Parse([]byte(forkExecJSON), FormatJSON)
	require.NoError(t, err)

	again, err := p.ToSpec().Build()
	require.NoError(t, err)
	assert.Equal(t, p.Graph.Edges(), again.Graph.Edges())
	assert.Equal(t, p.Order.Parents(1), again.Order.Parents(1))
}
