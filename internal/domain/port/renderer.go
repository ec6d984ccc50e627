package port

import (
	"image"

	"anomaly-vision/internal/domain/entity"
)

// HeatmapRenderer рисует тепловую карту поверх исходного изображения
type HeatmapRenderer interface {
	Render(result *entity.DetectionResult) (image.Image, error)
}
