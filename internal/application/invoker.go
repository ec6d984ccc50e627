package app

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// Позиции выходов модели: 0 — карта аномальности, 1 — общая оценка.
const (
	outputAnomalyMap = 0
	outputScore      = 1
)

// Invoker оборачивает одну сессию модели с фиксированной формой входа.
type Invoker struct {
	session    port.ModelSession
	inputName  string
	inputShape []int64
}

// NewInvoker берёт форму входа из метаданных сессии. Динамические оси
// высоты и ширины заменяются на fallbackSize.
func NewInvoker(session port.ModelSession, fallbackSize int) (*Invoker, error) {
	if session == nil {
		return nil, errors.Wrap(entity.ErrInitialization, "model session is nil")
	}

	info := session.InputInfo()
	if info.Name == "" {
		return nil, errors.Wrap(entity.ErrInitialization, "model has no input")
	}
	if len(info.Shape) != 4 {
		return nil, errors.Wrapf(entity.ErrInitialization, "model input %q has shape %v, want (1, 3, H, W)", info.Name, info.Shape)
	}

	shape := make([]int64, 4)
	copy(shape, info.Shape)
	if shape[0] <= 0 {
		shape[0] = 1
	}
	if shape[1] <= 0 {
		shape[1] = 3
	}
	for i := 2; i < 4; i++ {
		if shape[i] <= 0 {
			shape[i] = int64(fallbackSize)
		}
	}
	if shape[0] != 1 || shape[1] != 3 || shape[2] <= 0 || shape[3] <= 0 {
		return nil, errors.Wrapf(entity.ErrInitialization, "model input %q has shape %v, want (1, 3, H, W)", info.Name, info.Shape)
	}

	return &Invoker{
		session:    session,
		inputName:  info.Name,
		inputShape: shape,
	}, nil
}

// InputShape форма входа (1, 3, H, W)
func (i *Invoker) InputShape() []int64 {
	out := make([]int64, len(i.inputShape))
	copy(out, i.inputShape)
	return out
}

// InputSize ширина и высота входа
func (i *Invoker) InputSize() (width, height int) {
	return int(i.inputShape[3]), int(i.inputShape[2])
}

// RunInference подаёт тензор на вход модели и ждёт результата.
// Таймаута нет: вызов рантайма не прерывается.
func (i *Invoker) RunInference(ctx context.Context, tensor *entity.Tensor) (*entity.InferenceOutput, error) {
	if tensor == nil || !tensor.HasShape(i.inputShape) {
		var got []int64
		if tensor != nil {
			got = tensor.Shape
		}
		return nil, errors.Wrapf(entity.ErrInvalidInput, "tensor shape %v, model expects %v", got, i.inputShape)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs, err := i.session.Run(ctx, map[string]*entity.Tensor{i.inputName: tensor})
	if err != nil {
		if errors.Is(err, entity.ErrInference) {
			return nil, err
		}
		return nil, errors.Mark(errors.Wrap(err, "run model"), entity.ErrInference)
	}

	if len(outputs) <= outputScore {
		return nil, errors.Wrapf(entity.ErrInference, "model returned %d outputs, want 2", len(outputs))
	}
	anomalyMap := outputs[outputAnomalyMap].Data
	if len(anomalyMap) == 0 {
		return nil, errors.Wrap(entity.ErrInference, "anomaly map output is empty")
	}
	score := outputs[outputScore].Data
	if len(score) == 0 {
		return nil, errors.Wrap(entity.ErrInference, "score output is empty")
	}
	if math.IsNaN(float64(score[0])) || math.IsInf(float64(score[0]), 0) {
		return nil, errors.Wrapf(entity.ErrInference, "score output is not finite: %v", score[0])
	}

	return &entity.InferenceOutput{
		AnomalyMap: anomalyMap,
		RawScore:   score[0],
	}, nil
}

// Close закрывает сессию
func (i *Invoker) Close() error {
	return i.session.Close()
}
