package port

import (
	"context"

	"anomaly-vision/internal/domain/entity"
)

// UserRepository хранилище пользователей бота. Наружу отдаются копии;
// менять пользователя можно только через Update.
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Update под блокировкой применяет fn к пользователю и возвращает результат
	Update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error)
}
