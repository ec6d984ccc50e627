package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/infrastructure/preprocess"
	"anomaly-vision/internal/logger"
)

const (
	msgStart = `👋 Привет! Я бот для поиска аномалий на фотографиях.

📸 Отправьте мне фото, и я покажу тепловую карту подозрительных участков.

📋 Команды:
/check — начать проверку
/stats — статистика
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото объекта
2️⃣ Модель оценит, насколько изображение отличается от нормы
3️⃣ Вы получите фото с тепловой картой и оценкой

🟦 синий — норма, 🟥 красный — аномалия

💡 Рекомендации:
• Снимайте при хорошем освещении
• Объект должен занимать большую часть кадра

📋 Команды:
/check — начать проверку
/stats — статистика
/cancel — отменить операцию`

	msgAwaitingPhoto  = "📸 Отправьте фото для проверки."
	msgCancelled      = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto      = "📸 Пожалуйста, отправьте фото для проверки."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing     = "⏳ Обрабатываю изображение..."
	msgBusy           = "⏳ Предыдущее изображение ещё обрабатывается, подождите."
)

// maxPhotoBytes предел размера файла от Telegram.
const maxPhotoBytes = 20 << 20

// botAPI часть tgbotapi.BotAPI, которой пользуется бот.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api      botAPI
	users    *app.UserService
	detector Detector
	client   *http.Client
	log      *zap.SugaredLogger
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, detector Detector) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram auth")
	}

	b := newBot(api, users, detector)
	b.log.Infow("authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(api botAPI, users *app.UserService, detector Detector) *Bot {
	return &Bot{
		api:      api,
		users:    users,
		detector: detector,
		client:   &http.Client{Timeout: 60 * time.Second},
		log:      logger.Named("telegram"),
	}
}

// Run обрабатывает сообщения до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Errorw("get user", logger.FieldUserID, msg.From.ID, logger.FieldError, err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото и изображений, присланных файлом
	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handlePhoto(ctx, msg, user)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.transition(ctx, user, b.users.Cancel)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		b.transition(ctx, user, b.users.BeginCheck)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		b.transition(ctx, user, b.users.Cancel)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "stats":
		b.sendMessage(msg.Chat.ID, b.statsText(user))

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto прогоняет фото через детектор и отвечает тепловой картой
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if user.State == entity.StateProcessing {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}
	if _, err := b.users.StartProcessing(ctx, user.ID, user.ChatID); err != nil {
		b.log.Warnw("save user state", logger.FieldUserID, user.ID, logger.FieldError, err)
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	result, err := b.detect(ctx, msg)
	if err != nil {
		b.log.Warnw("photo failed",
			logger.FieldUserID, user.ID,
			logger.FieldErrorKind, entity.Kind(err),
			logger.FieldError, err)
		b.sendMessage(msg.Chat.ID, entity.UserMessage(err))
		b.finish(ctx, user, "")
		return
	}

	b.sendResult(msg.Chat.ID, result)
	b.finish(ctx, user, result.Label)
}

func (b *Bot) detect(ctx context.Context, msg *tgbotapi.Message) (*entity.DetectionResult, error) {
	fileID, err := photoFileID(msg)
	if err != nil {
		return nil, err
	}

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	img, err := preprocess.Decode(data)
	if err != nil {
		return nil, err
	}

	return b.detector.DetectImage(ctx, img, "telegram")
}

// photoFileID выбирает фото в максимальном разрешении или документ-изображение
func photoFileID(msg *tgbotapi.Message) (string, error) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, nil
	}

	doc := msg.Document
	if !strings.HasPrefix(doc.MimeType, "image/") {
		return "", errNotImage(doc.MimeType)
	}
	if doc.FileSize > maxPhotoBytes {
		return "", errTooLarge(int64(doc.FileSize), maxPhotoBytes)
	}
	return doc.FileID, nil
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	if len(data) > maxPhotoBytes {
		return nil, errTooLarge(int64(len(data)), maxPhotoBytes)
	}

	return data, nil
}

// sendResult отправляет изображение с тепловой картой и подписью
func (b *Bot) sendResult(chatID int64, result *entity.DetectionResult) {
	img := b.detector.Visualize(result)
	data, err := preprocess.EncodeJPEG(img, preprocess.DefaultJPEGQuality)
	if err != nil {
		b.log.Warnw("encode result", logger.FieldRequestID, result.ID, logger.FieldError, err)
		b.sendMessage(chatID, resultCaption(result))
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "heatmap.jpg", Bytes: data})
	photo.Caption = resultCaption(result)
	if _, err := b.api.Send(photo); err != nil {
		b.log.Warnw("send photo", logger.FieldChatID, chatID, logger.FieldError, err)
	}
}

func resultCaption(result *entity.DetectionResult) string {
	icon := "✅"
	if result.IsAnomalous() {
		icon = "🚨"
	}
	return fmt.Sprintf("%s %s\nДоля аномальных пикселей: %.1f%%\nОценка модели: %.2f\nВремя: %d мс (инференс %d мс)",
		icon, result.Caption(),
		result.AnomalousFraction*100,
		result.RawScore,
		result.Timings.Total.Milliseconds(),
		result.Timings.Inference.Milliseconds(),
	)
}

func (b *Bot) statsText(user *entity.User) string {
	stats := b.detector.Stats()
	return fmt.Sprintf("📊 Ваши проверки: %d, аномалий: %d\n\nВсего обработано: %d, аномалий: %d, ошибок: %d\nСтратегия нормализации: %s",
		user.Checks, user.Anomalies,
		stats.Processed, stats.Anomalous, stats.Failed,
		b.detector.Strategy(),
	)
}

// transition переводит пользователя в новое состояние через UserService
func (b *Bot) transition(ctx context.Context, user *entity.User, step func(ctx context.Context, userID, chatID int64) (*entity.User, error)) {
	if _, err := step(ctx, user.ID, user.ChatID); err != nil {
		b.log.Warnw("save user state", logger.FieldUserID, user.ID, logger.FieldError, err)
	}
}

func (b *Bot) finish(ctx context.Context, user *entity.User, label entity.Label) {
	if _, err := b.users.FinishCheck(ctx, user.ID, user.ChatID, label); err != nil {
		b.log.Warnw("save user state", logger.FieldUserID, user.ID, logger.FieldError, err)
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("send message", logger.FieldChatID, chatID, logger.FieldError, err)
	}
}
