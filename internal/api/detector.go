package api

import (
	"image"

	"github.com/cockroachdb/errors"

	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// Detector то, что фронтендам нужно от сервиса детекции.
type Detector interface {
	port.AnomalyDetector
	Visualize(result *entity.DetectionResult) image.Image
	Stats() app.DetectionStats
	Strategy() string
}

// FrameQueue конвейер кадров с политикой «последний кадр побеждает».
type FrameQueue interface {
	Submit(frame *entity.Frame) bool
	Current() *entity.DetectionResult
	Stats() app.PipelineStats
}

// errTooLarge ошибка для слишком больших загрузок, с подсказкой для пользователя.
func errTooLarge(size, limit int64) error {
	return errors.WithHint(
		errors.Wrapf(entity.ErrInvalidInput, "upload of %d bytes exceeds limit %d", size, limit),
		"⚠️ Файл слишком большой.",
	)
}

// errNotImage ошибка для файлов, которые не являются изображением.
func errNotImage(mime string) error {
	return errors.WithHint(
		errors.Wrapf(entity.ErrInvalidInput, "unsupported file type %q", mime),
		"⚠️ Пришлите изображение (JPEG или PNG).",
	)
}
