package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateString(t *testing.T) {
	assert.NoError(t, ValidateString("", "name", 1, 10, false))
	assert.EqualError(t, ValidateString("", "name", 1, 10, true), "missing required field 'name'")
	assert.Error(t, ValidateString("ab", "name", 3, 10, true))
	assert.Error(t, ValidateString(strings.Repeat("x", 11), "name", 0, 10, true))
	assert.Error(t, ValidateString("a\x00b", "name", 0, 10, true))
	assert.Error(t, ValidateString("a\nb", "name", 0, 10, true))
	assert.NoError(t, ValidateString("héllo", "name", 0, 5, true))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("term_01HZX3", "sessionId", true))
	assert.Error(t, ValidateID("", "sessionId", true))
	assert.Error(t, ValidateID("term 1", "sessionId", true))
	assert.Error(t, ValidateID("../etc", "sessionId", true))
	assert.Error(t, ValidateID(strings.Repeat("a", MaxIDLength+1), "sessionId", true))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("", "name"))
	assert.NoError(t, ValidateName("build logs", "name"))
	assert.Error(t, ValidateName(strings.Repeat("n", MaxNameLength+1), "name"))
}
