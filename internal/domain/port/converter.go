package port

import (
	"image"

	"anomaly-vision/internal/domain/entity"
)

// FrameConverter переводит кадры в изображения и изображения в тензоры
type FrameConverter interface {
	// FrameImage собирает изображение из буфера кадра с учётом поворота
	FrameImage(frame *entity.Frame) (image.Image, error)

	// Tensor масштабирует изображение и раскладывает его в CHW
	Tensor(img image.Image, width, height int) (*entity.Tensor, error)
}
