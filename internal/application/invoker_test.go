package app

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

func TestNewInvoker_Shape(t *testing.T) {
	session := newFakeSession(256, nil, 0)
	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 256, 256}, inv.InputShape())
	w, h := inv.InputSize()
	require.Equal(t, 256, w)
	require.Equal(t, 256, h)
}

func TestNewInvoker_DynamicAxes(t *testing.T) {
	session := newFakeSession(0, nil, 0)
	session.info.Shape = []int64{-1, 3, -1, -1}

	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 224, 224}, inv.InputShape())
}

func TestNewInvoker_BadMetadata(t *testing.T) {
	_, err := NewInvoker(nil, 224)
	require.True(t, errors.Is(err, entity.ErrInitialization))

	session := newFakeSession(224, nil, 0)
	session.info = port.TensorInfo{Name: "input", Shape: []int64{1, 224, 224}}
	_, err = NewInvoker(session, 224)
	require.True(t, errors.Is(err, entity.ErrInitialization))

	session.info = port.TensorInfo{Shape: []int64{1, 3, 224, 224}}
	_, err = NewInvoker(session, 224)
	require.True(t, errors.Is(err, entity.ErrInitialization))

	session.info = port.TensorInfo{Name: "input", Shape: []int64{1, 1, 224, 224}}
	_, err = NewInvoker(session, 224)
	require.True(t, errors.Is(err, entity.ErrInitialization))
}

func TestInvoker_RunInference(t *testing.T) {
	anomalyMap := squareMap(4, func(i int) float32 { return float32(i) })
	session := newFakeSession(8, anomalyMap, 61.5)
	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)

	tensor := entity.NewTensor(3, 8, 8)
	out, err := inv.RunInference(context.Background(), tensor)
	require.NoError(t, err)
	require.Equal(t, anomalyMap, out.AnomalyMap)
	require.Equal(t, float32(61.5), out.RawScore)
	require.Same(t, tensor, session.seen["input"])
}

func TestInvoker_RunInferenceShapeMismatch(t *testing.T) {
	session := newFakeSession(8, []float32{1}, 1)
	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)

	_, err = inv.RunInference(context.Background(), entity.NewTensor(3, 4, 8))
	require.True(t, errors.Is(err, entity.ErrInvalidInput))
	_, err = inv.RunInference(context.Background(), nil)
	require.True(t, errors.Is(err, entity.ErrInvalidInput))
	require.Equal(t, 0, session.Calls())
}

func TestInvoker_RunInferenceFailures(t *testing.T) {
	tensor := entity.NewTensor(3, 8, 8)

	session := newFakeSession(8, []float32{1}, 1)
	session.err = errors.New("ort: bad alloc")
	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)
	_, err = inv.RunInference(context.Background(), tensor)
	require.True(t, errors.Is(err, entity.ErrInference))

	session = newFakeSession(8, []float32{1}, 1)
	session.outputs = session.outputs[:1]
	inv, err = NewInvoker(session, 224)
	require.NoError(t, err)
	_, err = inv.RunInference(context.Background(), tensor)
	require.True(t, errors.Is(err, entity.ErrInference))

	session = newFakeSession(8, nil, 1)
	inv, err = NewInvoker(session, 224)
	require.NoError(t, err)
	_, err = inv.RunInference(context.Background(), tensor)
	require.True(t, errors.Is(err, entity.ErrInference))

	session = newFakeSession(8, []float32{1}, 1)
	session.outputs[1].Data = nil
	inv, err = NewInvoker(session, 224)
	require.NoError(t, err)
	_, err = inv.RunInference(context.Background(), tensor)
	require.True(t, errors.Is(err, entity.ErrInference))
}

func TestInvoker_RunInferenceCancelled(t *testing.T) {
	session := newFakeSession(8, []float32{1}, 1)
	inv, err := NewInvoker(session, 224)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = inv.RunInference(ctx, entity.NewTensor(3, 8, 8))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, session.Calls())
}
