package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const forkExecJSON = `{
  "UseRegex": false,
  "Events": [
    {"ID": 0, "Signature": "fork", "SubjectID": 0, "ObjectID": 1, "Parents": []},
    {"ID": 1, "Signature": "execve", "SubjectID": 1, "ObjectID": 2, "Parents": [0]}
  ]
}`

const cyclicJSON = `{
  "UseRegex": false,
  "Events": [
    {"ID": 0, "Signature": "a", "SubjectID": 0, "ObjectID": 1, "Parents": [1]},
    {"ID": 1, "Signature": "b", "SubjectID": 1, "ObjectID": 2, "Parents": [0]}
  ]
}`

// forkExecCSV holds one fork at 0ms followed by two execve rows; both
// complete the pattern.
const forkExecCSV = `0,0,fork,10,1,2
0.1,0.1,execve,11,2,3
0.12,0.12,execve,12,2,4
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args, returning stdout and the command error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
