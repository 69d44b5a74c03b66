package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDsHandler(t *testing.T) {
	idh := NewIDsHandler()

	id := idh.Generate("")
	assert.True(t, IsUUID(id), id)
	assert.True(t, idh.IsValid(id, ""))
	assert.NotEqual(t, id, idh.Generate(""))

	prefixed := idh.Generate(LogEntryIDPrefix)
	assert.True(t, strings.HasPrefix(prefixed, LogEntryIDPrefix+":"), prefixed)
	assert.True(t, idh.IsValid(prefixed, LogEntryIDPrefix))
	assert.False(t, idh.IsValid(prefixed, RequestIDPrefix))
	assert.False(t, idh.IsValid("l:not-a-uuid", LogEntryIDPrefix))
}

func TestUUIDHelpers(t *testing.T) {
	assert.True(t, IsUUID(testOverdueCopy))
	assert.False(t, IsUUID("00000000-0000-0000-0000-000000000000"))
	assert.False(t, IsUUID("0b6b7bd393b74d399e2b6d2f1a2f2a11"))
	assert.Equal(t, testOverdueCopy, NormalizeUUID(strings.ToUpper(testOverdueCopy)))
	assert.Equal(t, "x", NormalizeUUID("x"))
}
