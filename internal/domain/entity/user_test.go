package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
}

func TestUser_RecordCheck(t *testing.T) {
	u := NewUser(1, 10)
	u.RecordCheck(LabelAnomalous)
	u.RecordCheck(LabelNormal)
	require.Equal(t, 2, u.Checks)
	require.Equal(t, 1, u.Anomalies)
}
