package storage

import (
	"context"
	"sync"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей бота.
// Записи хранятся по значению, чтобы обработчики разных сообщений
// не делили один указатель.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден.
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.RLock()
	user, exists := r.users[userID]
	r.mu.RUnlock()

	if exists && user.ChatID == chatID {
		return &user, nil
	}

	return r.Update(ctx, userID, chatID, func(*entity.User) {})
}

// Update применяет fn под блокировкой. Если пользователь пишет
// из другого чата, ChatID обновляется.
func (r *MemoryUserRepository) Update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		user = *entity.NewUser(userID, chatID)
	}
	user.ChatID = chatID
	fn(&user)
	r.users[userID] = user

	return &user, nil
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
