package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	require.NotNil(t, Logger)

	require.NoError(t, Initialize(false, true))
	require.True(t, Logger.Desugar().Core().Enabled(-1))

	require.NoError(t, Initialize(true, false))
	require.False(t, Logger.Desugar().Core().Enabled(-1))

	Named("test").Infow("hello", FieldScore, 0.5)
}
