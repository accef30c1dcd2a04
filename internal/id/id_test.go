package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsValidAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		v := New()
		assert.True(t, Valid(v), v)
		_, dup := seen[v]
		assert.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	for _, v := range []string{
		"",
		"abc",
		"5cef9e7a74f27f00011c6627",
		"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}",
		"6ba7b810-9dad-11d1-80b4-00c04fd430cz",
	} {
		assert.False(t, Valid(v), v)
	}
}
