package port

import (
	"context"
	"image"

	"anomaly-vision/internal/domain/entity"
)

// AnomalyDetector интерфейс детектора аномалий
type AnomalyDetector interface {
	// DetectFrame обрабатывает сырой кадр с камеры
	DetectFrame(ctx context.Context, frame *entity.Frame) (*entity.DetectionResult, error)

	// DetectImage обрабатывает уже декодированное изображение
	DetectImage(ctx context.Context, img image.Image, source string) (*entity.DetectionResult, error)
}

// FrameSink получает результаты конвейера
type FrameSink interface {
	OnResult(result *entity.DetectionResult)
	OnError(err error)
}
