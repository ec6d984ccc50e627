package entity

import "github.com/cockroachdb/errors"

// Виды ошибок детекции. Конкретные ошибки помечаются через errors.Mark
// или оборачивают эти значения, поэтому проверяются через errors.Is.
var (
	ErrInitialization = errors.New("initialization failure")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInference      = errors.New("inference failure")
	ErrRender         = errors.New("render failure")
)

const (
	msgInitFailed      = "⚠️ Детектор не инициализирован. Попробуем снова на следующем кадре."
	msgInvalidInput    = "⚠️ Не удалось прочитать изображение."
	msgInferenceFailed = "⚠️ Ошибка распознавания. Попробуйте ещё раз."
	msgRenderFailed    = "⚠️ Не удалось построить тепловую карту."
	msgUnknown         = "⚠️ Не удалось обработать изображение."
)

// UserMessage возвращает текст ошибки для пользователя.
// Подсказка, добавленная через errors.WithHint, важнее вида ошибки.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}

	switch {
	case errors.Is(err, ErrInitialization):
		return msgInitFailed
	case errors.Is(err, ErrInvalidInput):
		return msgInvalidInput
	case errors.Is(err, ErrInference):
		return msgInferenceFailed
	case errors.Is(err, ErrRender):
		return msgRenderFailed
	default:
		return msgUnknown
	}
}

// Kind короткое имя вида ошибки для логов и HTTP-ответов.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInitialization):
		return "initialization_failure"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInference):
		return "inference_failure"
	case errors.Is(err, ErrRender):
		return "render_failure"
	default:
		return "internal_error"
	}
}
