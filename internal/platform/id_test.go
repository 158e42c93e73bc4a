package platform

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_IsUUID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestNoOpOperationID_Deterministic(t *testing.T) {
	a := NoOpOperationID("lease-1", "sandbox-baseline", "2026-03-14T09:26:53Z")
	b := NoOpOperationID("lease-1", "sandbox-baseline", "2026-03-14T09:26:53Z")
	c := NoOpOperationID("lease-2", "sandbox-baseline", "2026-03-14T09:26:53Z")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.True(t, strings.HasPrefix(a, NoOpOperationIDPrefix))

	_, err := uuid.Parse(strings.TrimPrefix(a, NoOpOperationIDPrefix))
	require.NoError(t, err)
}
