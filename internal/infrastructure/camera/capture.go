//go:build gocv
// +build gocv

package camera

import (
	"context"
	"image"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/logger"
)

// maxReadFailures сколько пустых кадров подряд считается потерей камеры.
const maxReadFailures = 30

// Capture читает кадры с камеры через OpenCV и отдаёт их в конвейер.
type Capture struct {
	Device   string
	Rotation int

	log  *zap.SugaredLogger
	pool sync.Pool
}

// NewCapture создаёт источник кадров. device: номер камеры или URL потока.
func NewCapture(device string, rotation int) *Capture {
	return &Capture{
		Device:   device,
		Rotation: rotation,
		log:      logger.Named("camera"),
	}
}

// Run читает кадры до отмены контекста. Кадр, который submit не принял,
// уже освобождён конвейером; буфер возвращается в пул.
func (c *Capture) Run(ctx context.Context, submit func(*entity.Frame) bool) error {
	webcam, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "open camera %s", c.Device), entity.ErrInitialization)
	}
	defer webcam.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	c.log.Infow("camera opened", logger.FieldSource, c.Device)

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if ok := webcam.Read(&bgr); !ok || bgr.Empty() {
			failures++
			if failures >= maxReadFailures {
				return errors.Newf("camera %s stopped delivering frames", c.Device)
			}
			continue
		}
		failures = 0

		gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
		frame, err := c.frame(rgb)
		if err != nil {
			c.log.Warnw("skip frame", logger.FieldError, err)
			continue
		}
		submit(frame)
	}
}

func (c *Capture) frame(rgb gocv.Mat) (*entity.Frame, error) {
	data, err := rgb.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "read mat data")
	}

	buf := c.buffer(len(data))
	copy(buf, data)

	frame := &entity.Frame{
		ID:       uuid.NewString(),
		Width:    rgb.Cols(),
		Height:   rgb.Rows(),
		Format:   entity.PixelFormatRGB,
		Data:     buf,
		Rotation: c.Rotation,
		Source:   "camera",
	}
	frame.OnRelease(func() { c.pool.Put(buf[:0]) })
	return frame, nil
}

func (c *Capture) buffer(size int) []byte {
	if v, ok := c.pool.Get().([]byte); ok && cap(v) >= size {
		return v[:size]
	}
	return make([]byte, size)
}

// Window окно предпросмотра OpenCV.
type Window struct {
	window *gocv.Window
}

// NewWindow открывает окно. Вызывать из горутины, закреплённой за потоком ОС.
func NewWindow(title string) (*Window, error) {
	return &Window{window: gocv.NewWindow(title)}, nil
}

// Show выводит изображение и обрабатывает события окна.
func (w *Window) Show(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "convert image to mat")
	}
	defer mat.Close()

	w.window.IMShow(mat)
	w.window.WaitKey(1)
	return nil
}

// Close закрывает окно
func (w *Window) Close() error {
	return w.window.Close()
}
