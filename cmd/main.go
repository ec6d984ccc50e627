package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"anomaly-vision/config"
	"anomaly-vision/internal/api"
	"anomaly-vision/internal/container"
	"anomaly-vision/internal/infrastructure/camera"
	"anomaly-vision/internal/infrastructure/onnx"
	"anomaly-vision/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.LogJSON, cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	err = run(cfg)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	lg := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем сервисы приложения
	appContainer, err := container.New(cfg)
	if err != nil {
		lg.Errorw("failed to build services", logger.FieldError, err)
		return err
	}
	defer func() {
		if err := appContainer.Close(); err != nil {
			lg.Warnw("close services", logger.FieldError, err)
		}
		if err := onnx.Destroy(); err != nil {
			lg.Warnw("destroy onnxruntime environment", logger.FieldError, err)
		}
	}()

	// Модель загружается заранее; при ошибке повторим на первом кадре
	if err := appContainer.Detector.Warmup(ctx); err != nil {
		lg.Warnw("model is not ready yet", logger.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return appContainer.Pipeline.Run(ctx)
	})

	if cfg.TelegramToken != "" {
		bot, err := api.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.Detector)
		if err != nil {
			lg.Errorw("failed to create bot", logger.FieldError, err)
			return err
		}
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if cfg.HTTPAddr != "" {
		server := api.NewServer(appContainer.Detector, appContainer.Pipeline, appContainer.History)
		g.Go(func() error {
			return server.Run(ctx, cfg.HTTPAddr)
		})
	}

	if cfg.CameraDevice != "" {
		capture := camera.NewCapture(cfg.CameraDevice, cfg.CameraRotation)
		g.Go(func() error {
			// потеря камеры не останавливает бота и HTTP
			if err := capture.Run(ctx, appContainer.Pipeline.Submit); err != nil {
				lg.Errorw("camera stopped", logger.FieldError, err)
			}
			return nil
		})
	}

	if appContainer.Sink != nil {
		preview := api.NewPreview(appContainer.Sink.Events(), appContainer.Detector, func() (api.Display, error) {
			window, err := camera.NewWindow("anomaly-vision")
			if err != nil {
				return nil, err
			}
			return window, nil
		})
		g.Go(func() error {
			if err := preview.Run(ctx); err != nil {
				lg.Warnw("preview window stopped", logger.FieldError, err)
			}
			return nil
		})
	}

	lg.Infow("running",
		"telegram", cfg.TelegramToken != "",
		logger.FieldAddress, cfg.HTTPAddr,
		"camera", cfg.CameraDevice,
		logger.FieldStrategy, appContainer.Detector.Strategy())

	if err := g.Wait(); err != nil {
		lg.Errorw("stopped with error", logger.FieldError, err)
		return err
	}
	lg.Infow("stopped")
	return nil
}
