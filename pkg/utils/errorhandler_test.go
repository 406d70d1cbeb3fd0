package utils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	sentinel := errors.New("boom")

	wrapped := WrapError(sentinel)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Contains(t, wrapped.Error(), "errorhandler_test.go:")
	assert.Contains(t, wrapped.Error(), "boom")
}
