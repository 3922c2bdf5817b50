package cmdline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCmd  string
		wantArgs []string
	}{
		{name: "bare command", line: "help", wantCmd: "help", wantArgs: []string{}},
		{name: "with args", line: "role:create Editor", wantCmd: "role:create", wantArgs: []string{"Editor"}},
		{
			name:     "double quoted arg",
			line:     `role:create Editor --description "Edits things"`,
			wantCmd:  "role:create",
			wantArgs: []string{"Editor", "--description", "Edits things"},
		},
		{name: "single quoted arg", line: `echo 'a  b'`, wantCmd: "echo", wantArgs: []string{"a  b"}},
		{name: "surrounding whitespace", line: "  help  ", wantCmd: "help", wantArgs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.line, req.Line)
			assert.Equal(t, tt.wantCmd, req.Command)
			assert.Equal(t, tt.wantArgs, req.Args)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, line := range []string{"", "   ", "\t"} {
		_, err := Parse(line)
		require.Error(t, err)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.ErrorIs(t, err, ErrEmpty)
	}
}

func TestParse_UnterminatedQuote(t *testing.T) {
	_, err := Parse(`echo "oops`)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, `echo "oops`, parseErr.Line)
	assert.Contains(t, err.Error(), `parse command "echo \"oops"`)
}

func TestRequest_Argv(t *testing.T) {
	req, err := Parse("account:create alice --role Editor")
	require.NoError(t, err)

	assert.Equal(t, []string{"account:create", "alice", "--role", "Editor"}, req.Argv())
	assert.Equal(t, "account:create alice --role Editor", req.String())
}
