package port

import (
	"context"

	"anomaly-vision/internal/domain/entity"
)

// TensorInfo описывает вход модели
type TensorInfo struct {
	Name  string  // имя входа
	Shape []int64 // объявленная форма, динамические оси < 0
}

// ModelSession загруженная сессия модели (внешний рантайм)
type ModelSession interface {
	// InputInfo возвращает объявленный вход модели
	InputInfo() TensorInfo

	// Run выполняет модель и возвращает выходы по порядку
	Run(ctx context.Context, inputs map[string]*entity.Tensor) ([]entity.OutputTensor, error)

	// Close освобождает ресурсы рантайма
	Close() error
}

// SessionFactory создаёт новую сессию модели
type SessionFactory func(ctx context.Context) (ModelSession, error)
