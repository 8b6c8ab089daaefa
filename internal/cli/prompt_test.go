package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecret_FromPipe(t *testing.T) {
	var out bytes.Buffer
	secret, err := ReadSecret(strings.NewReader("hunter2\nignored\n"), &out, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
	assert.Empty(t, out.String(), "no prompt is printed for piped input")
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "trailing newline", input: "alice\n", want: "alice"},
		{name: "crlf", input: "alice\r\n", want: "alice"},
		{name: "no newline", input: "alice", want: "alice"},
		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "blank line", input: "\n", wantErr: ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLine(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
