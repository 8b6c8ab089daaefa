package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessages(t *testing.T) {
	assert.Equal(t, "Error: boom", FormatError(errors.New("boom")))
	assert.Equal(t, "✓ Logged out", FormatSuccess("Logged out"))
	assert.Equal(t, "⚠ Session expired", FormatWarning("Session expired"))
}
