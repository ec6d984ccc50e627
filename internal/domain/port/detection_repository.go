package port

import (
	"context"

	"anomaly-vision/internal/domain/entity"
)

// DetectionRepository интерфейс истории детекций
type DetectionRepository interface {
	// Save сохраняет запись
	Save(ctx context.Context, record entity.DetectionRecord) error

	// Recent возвращает последние записи, новые первыми
	Recent(ctx context.Context, limit int) ([]entity.DetectionRecord, error)
}
