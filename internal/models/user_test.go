package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameDepartment(t *testing.T) {
	assert.True(t, SameDepartment("Computer Science", "computer science"))
	assert.True(t, SameDepartment(" CS", "cs "))
	assert.False(t, SameDepartment("CS", "EE"))
	assert.False(t, SameDepartment("", ""))
	assert.False(t, SameDepartment("  ", "  "))
}
