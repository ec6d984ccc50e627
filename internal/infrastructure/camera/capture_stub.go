//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"image"

	"github.com/cockroachdb/errors"

	"anomaly-vision/internal/domain/entity"
)

// ErrUnavailable камера и окно недоступны без тега сборки gocv.
var ErrUnavailable = errors.New("gocv build tag is not enabled")

// Capture заглушка источника кадров (без OpenCV).
type Capture struct {
	Device   string
	Rotation int
}

// NewCapture создаёт источник-заглушку.
func NewCapture(device string, rotation int) *Capture {
	return &Capture{Device: device, Rotation: rotation}
}

// Run возвращает ошибку, если сборка без тега gocv.
func (c *Capture) Run(context.Context, func(*entity.Frame) bool) error {
	return errors.Mark(ErrUnavailable, entity.ErrInitialization)
}

// Window заглушка окна предпросмотра.
type Window struct{}

// NewWindow возвращает ошибку, если сборка без тега gocv.
func NewWindow(string) (*Window, error) {
	return nil, ErrUnavailable
}

// Show возвращает ошибку, если сборка без тега gocv.
func (w *Window) Show(image.Image) error {
	return ErrUnavailable
}

// Close ничего не делает.
func (w *Window) Close() error {
	return nil
}
