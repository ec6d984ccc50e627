package container

import (
	"anomaly-vision/config"
	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/port"
	"anomaly-vision/internal/infrastructure/calibration"
	"anomaly-vision/internal/infrastructure/onnx"
	"anomaly-vision/internal/infrastructure/preprocess"
	"anomaly-vision/internal/infrastructure/render"
	"anomaly-vision/internal/infrastructure/storage"
)

type Container struct {
	UserService *app.UserService
	Detector    *app.DetectionService
	Pipeline    *app.FramePipeline
	Sink        *app.ChannelSink // nil, если окно предпросмотра выключено
	History     port.DetectionRepository

	closers []func() error
}

// New собирает сервисы приложения с сессией onnxruntime.
func New(cfg *config.Config) (*Container, error) {
	return NewWithFactory(cfg, onnx.NewSessionFactory(cfg.ModelPath, cfg.ORTLibraryPath))
}

// NewWithFactory собирает сервисы с заданной фабрикой сессий модели.
func NewWithFactory(cfg *config.Config, factory port.SessionFactory) (*Container, error) {
	stats := calibration.Load(cfg.MetadataPath)
	normalizer, err := app.NewNormalizer(cfg.Normalizer, stats)
	if err != nil {
		return nil, err
	}

	c := &Container{}

	if cfg.HistoryDB != "" {
		repo, err := storage.OpenSQLiteDetectionRepository(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		c.History = repo
		c.closers = append(c.closers, repo.Close)
	} else {
		c.History = storage.NewMemoryDetectionRepository(storage.DefaultHistoryCapacity)
	}

	c.UserService = app.NewUserService(storage.NewMemoryUserRepository())
	c.Detector = app.NewDetectionService(
		factory,
		preprocess.NewConverter(cfg.PreviewMaxSide),
		normalizer,
		render.NewRenderer(cfg.HeatmapMaxAlpha),
		c.History,
		cfg.ModelInputSize,
	)
	c.closers = append(c.closers, c.Detector.Close)

	if cfg.PreviewWindow {
		c.Sink = app.NewChannelSink(1)
		c.Pipeline = app.NewFramePipeline(c.Detector, c.Sink)
	} else {
		c.Pipeline = app.NewFramePipeline(c.Detector, nil)
	}

	return c, nil
}

// Close освобождает ресурсы в обратном порядке
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
