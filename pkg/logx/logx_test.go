package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.GetComponent())
}

func TestWithComponent(t *testing.T) {
	logger := NewLogger("parent")
	child := logger.WithComponent("child")

	assert.Equal(t, "child", child.GetComponent())
	assert.Equal(t, "parent", logger.GetComponent(), "parent logger must be unchanged")
}

func TestDebugGating(t *testing.T) {
	SetDebug(false)
	assert.False(t, IsDebugEnabled("intake"))

	SetDebug(true)
	defer SetDebug(false)
	assert.True(t, IsDebugEnabled("intake"))
}

func TestErrorfReturnsError(t *testing.T) {
	base := errors.New("boom")
	err := Errorf("delivery failed: %w", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "delivery failed: boom", err.Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "no-op"))

	base := errors.New("disk full")
	err := Wrap(base, "persist report")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "persist report: disk full", err.Error())
}
