package app

import (
	"context"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// UserService диалог пользователя с ботом: состояние и счётчики проверок.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) {
		u.SetState(state)
	})
}

// BeginCheck ждём кадр после /check
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

func (s *UserService) StartProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateProcessing)
}

// FinishCheck учитывает результат проверки и возвращает пользователя в меню.
// При пустой метке (ошибка детекции) счётчики не меняются.
func (s *UserService) FinishCheck(ctx context.Context, userID, chatID int64, label entity.Label) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) {
		if label != "" {
			u.RecordCheck(label)
		}
		u.SetState(entity.StateMainMenu)
	})
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}
