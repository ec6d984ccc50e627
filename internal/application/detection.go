package app

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
	"anomaly-vision/internal/logger"
)

// DefaultInputSize сторона входа, если модель объявляет динамические H и W.
const DefaultInputSize = 224

// DetectionStats счётчики сервиса детекции
type DetectionStats struct {
	Processed      int64 `json:"processed"`
	Anomalous      int64 `json:"anomalous"`
	Failed         int64 `json:"failed"`
	Reinitialized  int64 `json:"reinitialized"`
	RenderFailures int64 `json:"render_failures"`
}

// DetectionService выполняет один проход: кадр → тензор → модель → нормализация.
type DetectionService struct {
	factory    port.SessionFactory
	converter  port.FrameConverter
	normalizer port.ScoreNormalizer
	renderer   port.HeatmapRenderer
	history    port.DetectionRepository
	inputSize  int
	log        *zap.SugaredLogger

	mu      sync.Mutex // сессия
	invoker *Invoker
	runMu   sync.Mutex // один активный проход

	processed      atomic.Int64
	anomalous      atomic.Int64
	failed         atomic.Int64
	reinitialized  atomic.Int64
	renderFailures atomic.Int64
}

// NewDetectionService создаёт сервис. Сессия модели создаётся лениво
// при первом кадре или через Warmup. history может быть nil.
func NewDetectionService(
	factory port.SessionFactory,
	converter port.FrameConverter,
	normalizer port.ScoreNormalizer,
	renderer port.HeatmapRenderer,
	history port.DetectionRepository,
	inputSize int,
) *DetectionService {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return &DetectionService{
		factory:    factory,
		converter:  converter,
		normalizer: normalizer,
		renderer:   renderer,
		history:    history,
		inputSize:  inputSize,
		log:        logger.Named("detector"),
	}
}

// Warmup создаёт сессию заранее. Ошибка не фатальна: следующий кадр попробует снова.
func (s *DetectionService) Warmup(ctx context.Context) error {
	inv, err := s.ensureInvoker(ctx)
	if err != nil {
		return err
	}
	s.log.Infow("model ready", logger.FieldShape, inv.InputShape(), logger.FieldStrategy, s.normalizer.Name())
	return nil
}

// DetectFrame обрабатывает сырой кадр. Кадр не освобождается: это делает вызывающий.
func (s *DetectionService) DetectFrame(ctx context.Context, frame *entity.Frame) (*entity.DetectionResult, error) {
	start := time.Now()
	if frame == nil {
		return nil, s.fail(errors.Wrap(entity.ErrInvalidInput, "nil frame"))
	}

	img, err := s.converter.FrameImage(frame)
	if err != nil {
		return nil, s.fail(err)
	}
	timings := entity.Timings{Decode: time.Since(start)}

	return s.detect(ctx, img, frame.ID, frame.Source, timings, start)
}

// DetectImage обрабатывает декодированное изображение.
func (s *DetectionService) DetectImage(ctx context.Context, img image.Image, source string) (*entity.DetectionResult, error) {
	if img == nil {
		return nil, s.fail(errors.Wrap(entity.ErrInvalidInput, "nil image"))
	}
	return s.detect(ctx, img, "", source, entity.Timings{}, time.Now())
}

// Visualize возвращает изображение с тепловой картой. Ошибка отрисовки
// не выходит наружу: возвращается исходное изображение.
func (s *DetectionService) Visualize(result *entity.DetectionResult) image.Image {
	img, err := result.Visualize(s.renderer)
	if err != nil {
		s.renderFailures.Add(1)
		s.log.Warnw("render failed, showing source image",
			logger.FieldRequestID, result.ID, logger.FieldError, err)
	}
	return img
}

// Stats возвращает счётчики
func (s *DetectionService) Stats() DetectionStats {
	return DetectionStats{
		Processed:      s.processed.Load(),
		Anomalous:      s.anomalous.Load(),
		Failed:         s.failed.Load(),
		Reinitialized:  s.reinitialized.Load(),
		RenderFailures: s.renderFailures.Load(),
	}
}

// Strategy имя стратегии нормализации
func (s *DetectionService) Strategy() string {
	return s.normalizer.Name()
}

// Close закрывает сессию модели
func (s *DetectionService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoker == nil {
		return nil
	}
	err := s.invoker.Close()
	s.invoker = nil
	return err
}

func (s *DetectionService) detect(ctx context.Context, img image.Image, id, source string, timings entity.Timings, start time.Time) (*entity.DetectionResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	inv, err := s.ensureInvoker(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	prepStart := time.Now()
	width, height := inv.InputSize()
	tensor, err := s.converter.Tensor(img, width, height)
	if err != nil {
		return nil, s.fail(err)
	}
	timings.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	output, err := inv.RunInference(ctx, tensor)
	timings.Inference = time.Since(inferStart)
	if err != nil {
		if errors.Is(err, entity.ErrInference) {
			s.reinitialize(ctx)
		}
		return nil, s.fail(err)
	}

	postStart := time.Now()
	result, err := s.normalizer.Normalize(output)
	if err != nil {
		return nil, s.fail(err)
	}
	timings.Postprocess = time.Since(postStart)
	timings.Total = time.Since(start)

	if id == "" {
		id = uuid.NewString()
	}
	result.ID = id
	result.Source = img
	result.Timings = timings
	result.CreatedAt = time.Now()

	s.processed.Add(1)
	if result.IsAnomalous() {
		s.anomalous.Add(1)
	}
	s.logResult(result, source)
	s.record(ctx, result, source)

	return result, nil
}

func (s *DetectionService) ensureInvoker(ctx context.Context) (*Invoker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invoker != nil {
		return s.invoker, nil
	}
	if s.factory == nil {
		return nil, errors.Wrap(entity.ErrInitialization, "model session factory is not configured")
	}

	session, err := s.factory(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrInitialization) {
			return nil, err
		}
		return nil, errors.Mark(errors.Wrap(err, "create model session"), entity.ErrInitialization)
	}

	inv, err := NewInvoker(session, s.inputSize)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	s.invoker = inv
	return inv, nil
}

// reinitialize пересоздаёт сессию после ошибки рантайма.
func (s *DetectionService) reinitialize(ctx context.Context) {
	s.mu.Lock()
	if s.invoker != nil {
		if err := s.invoker.Close(); err != nil {
			s.log.Warnw("close failed session", logger.FieldError, err)
		}
		s.invoker = nil
	}
	s.mu.Unlock()

	s.reinitialized.Add(1)
	if _, err := s.ensureInvoker(ctx); err != nil {
		s.log.Warnw("session re-initialization failed, will retry on next frame", logger.FieldError, err)
	}
}

func (s *DetectionService) fail(err error) error {
	s.failed.Add(1)
	s.log.Warnw("detection failed", logger.FieldErrorKind, entity.Kind(err), logger.FieldError, err)
	return err
}

func (s *DetectionService) logResult(result *entity.DetectionResult, source string) {
	s.log.Debugw("detection",
		logger.FieldRequestID, result.ID,
		logger.FieldSource, source,
		logger.FieldLabel, result.Label,
		logger.FieldScore, result.Score,
		logger.FieldFraction, result.AnomalousFraction,
		"decode", result.Timings.Decode,
		"preprocess", result.Timings.Preprocess,
		"inference", result.Timings.Inference,
		"postprocess", result.Timings.Postprocess,
		logger.FieldDurationMS, result.Timings.Total.Milliseconds(),
	)
}

func (s *DetectionService) record(ctx context.Context, result *entity.DetectionResult, source string) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, result.Record(source)); err != nil {
		s.log.Warnw("save detection history", logger.FieldRequestID, result.ID, logger.FieldError, err)
	}
}

// Проверка реализации интерфейса
var _ port.AnomalyDetector = (*DetectionService)(nil)
