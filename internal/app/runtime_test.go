package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/stockyard-wms/stockyard/internal/testing/guard"
)

func TestTestModeFollowsEnvironment(t *testing.T) {
	// The guard import sets STOCKYARD_TEST_MODE before any test runs.
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("STOCKYARD_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("STOCKYARD_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}
