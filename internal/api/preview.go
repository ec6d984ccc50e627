package api

import (
	"context"
	"image"
	"runtime"

	"go.uber.org/zap"

	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/logger"
)

// Display окно, в котором показываются результаты конвейера.
type Display interface {
	Show(img image.Image) error
	Close() error
}

// Preview выводит результаты конвейера в окно. Работает в своей горутине,
// закреплённой за потоком ОС, как того требуют оконные системы.
type Preview struct {
	events   <-chan app.SinkEvent
	detector Detector
	open     func() (Display, error)
	log      *zap.SugaredLogger
}

// NewPreview создаёт показ результатов из events. Окно открывается
// функцией open в потоке, где потом рисуется.
func NewPreview(events <-chan app.SinkEvent, detector Detector, open func() (Display, error)) *Preview {
	return &Preview{
		events:   events,
		detector: detector,
		open:     open,
		log:      logger.Named("preview"),
	}
}

// Run показывает результаты до отмены контекста и закрывает окно.
func (p *Preview) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	display, err := p.open()
	if err != nil {
		return err
	}
	defer display.Close()

	var lastKind string
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.events:
			if ev.Err != nil {
				// одна и та же ошибка на каждом кадре логируется один раз
				if kind := entity.Kind(ev.Err); kind != lastKind {
					p.log.Warnw(entity.UserMessage(ev.Err), logger.FieldErrorKind, kind, logger.FieldError, ev.Err)
					lastKind = kind
				}
				continue
			}
			lastKind = ""
			if ev.Result == nil {
				continue
			}
			if err := display.Show(p.detector.Visualize(ev.Result)); err != nil {
				return err
			}
		}
	}
}
