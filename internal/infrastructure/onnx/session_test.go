package onnx

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"anomaly-vision/internal/domain/entity"
)

func TestOpen_WithoutEnvironment(t *testing.T) {
	require.False(t, Active())

	_, err := Open("testdata/missing.onnx")
	require.True(t, errors.Is(err, entity.ErrInitialization))
}

func TestSessionFactory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSessionFactory("model.onnx", "")(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSession_ClosedRun(t *testing.T) {
	s := &Session{}
	_, err := s.Run(context.Background(), nil)
	require.True(t, errors.Is(err, entity.ErrInference))
	require.NoError(t, s.Close())
}

func TestDestroy_NotActive(t *testing.T) {
	require.NoError(t, Destroy())
}
