package onnx

import (
	"context"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	ort "github.com/yalue/onnxruntime_go"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// Session сессия onnxruntime с одним входом и произвольным числом выходов.
// Выходы выделяет рантайм при каждом вызове.
type Session struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	input   port.TensorInfo
	outputs []string
}

// NewSessionFactory возвращает фабрику сессий для файла модели.
// Окружение onnxruntime поднимается при первом успешном вызове.
func NewSessionFactory(modelPath, libPath string) port.SessionFactory {
	return func(ctx context.Context) (port.ModelSession, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := Init(libPath); err != nil {
			return nil, err
		}
		return Open(modelPath)
	}
}

// Open читает метаданные модели и создаёт сессию.
func Open(modelPath string) (*Session, error) {
	if !Active() {
		return nil, errors.Wrap(entity.ErrInitialization, "onnxruntime environment is not initialized")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "model %s", modelPath), entity.ErrInitialization)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read model metadata %s", modelPath), entity.ErrInitialization)
	}
	if len(inputs) != 1 {
		return nil, errors.Wrapf(entity.ErrInitialization, "model has %d inputs, want 1", len(inputs))
	}
	if len(outputs) < 2 {
		return nil, errors.Wrapf(entity.ErrInitialization, "model has %d outputs, want at least 2", len(outputs))
	}
	if inputs[0].DataType != ort.TensorElementDataTypeFloat {
		return nil, errors.Wrapf(entity.ErrInitialization, "model input %q has type %v, want float32", inputs[0].Name, inputs[0].DataType)
	}

	outputNames := make([]string, len(outputs))
	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create session options"), entity.ErrInitialization)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, outputNames, options)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create session"), entity.ErrInitialization)
	}

	shape := make([]int64, len(inputs[0].Dimensions))
	copy(shape, inputs[0].Dimensions)

	return &Session{
		session: session,
		input:   port.TensorInfo{Name: inputs[0].Name, Shape: shape},
		outputs: outputNames,
	}, nil
}

func (s *Session) InputInfo() port.TensorInfo {
	return s.input
}

// Run выполняет модель. Контекст проверяется только до вызова:
// сам вызов рантайма не прерывается.
func (s *Session) Run(ctx context.Context, inputs map[string]*entity.Tensor) ([]entity.OutputTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.Wrap(entity.ErrInference, "session is closed")
	}

	in, ok := inputs[s.input.Name]
	if !ok || in == nil {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "missing input %q", s.input.Name)
	}

	tensor, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create input tensor"), entity.ErrInvalidInput)
	}
	defer tensor.Destroy()

	values := make([]ort.Value, len(s.outputs))
	if err := s.session.Run([]ort.Value{tensor}, values); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "run session"), entity.ErrInference)
	}
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	result := make([]entity.OutputTensor, len(values))
	for i, v := range values {
		out, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Wrapf(entity.ErrInference, "output %q is %T, want float32 tensor", s.outputs[i], v)
		}
		data := out.GetData()
		copied := make([]float32, len(data))
		copy(copied, data)
		result[i] = entity.OutputTensor{
			Name:  s.outputs[i],
			Shape: append([]int64(nil), out.GetShape()...),
			Data:  copied,
		}
	}
	return result, nil
}

// Close освобождает сессию. Повторный вызов ничего не делает.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// Проверка реализации интерфейса
var _ port.ModelSession = (*Session)(nil)
