package port

import "anomaly-vision/internal/domain/entity"

// ScoreNormalizer переводит сырые выходы модели в результат детекции
type ScoreNormalizer interface {
	// Name имя стратегии
	Name() string

	// Normalize строит результат по сырым выходам
	Normalize(output *entity.InferenceOutput) (*entity.DetectionResult, error)
}
