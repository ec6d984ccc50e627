package preprocess

import (
	"image"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"

	"anomaly-vision/internal/domain/entity"
)

// Converter переводит кадры в изображения и изображения в тензоры модели.
type Converter struct {
	PreviewMaxSide int                    // 0: не уменьшать кадр для показа
	Filter         imaging.ResampleFilter // фильтр масштабирования под вход модели
}

// NewConverter создаёт конвертер с билинейной интерполяцией.
func NewConverter(previewMaxSide int) *Converter {
	return &Converter{
		PreviewMaxSide: previewMaxSide,
		Filter:         imaging.Linear,
	}
}

// FrameImage собирает изображение из кадра, поворачивает его по метаданным
// и при необходимости уменьшает для показа. Буфер кадра не меняется.
func (c *Converter) FrameImage(frame *entity.Frame) (image.Image, error) {
	if frame == nil {
		return nil, errors.Wrap(entity.ErrInvalidInput, "nil frame")
	}

	img, err := decodeFrame(frame)
	if err != nil {
		return nil, err
	}

	img, err = Rotate(img, frame.Rotation)
	if err != nil {
		return nil, err
	}

	return c.Preview(img), nil
}

// Preview уменьшает изображение так, чтобы большая сторона не превышала PreviewMaxSide.
func (c *Converter) Preview(img image.Image) image.Image {
	if c.PreviewMaxSide <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= c.PreviewMaxSide && b.Dy() <= c.PreviewMaxSide {
		return img
	}
	return imaging.Fit(img, c.PreviewMaxSide, c.PreviewMaxSide, imaging.Linear)
}

// Tensor масштабирует изображение до width×height и раскладывает его по каналам
// (сначала вся плоскость R, затем G, затем B), деля значения на 255.
func (c *Converter) Tensor(img image.Image, width, height int) (*entity.Tensor, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "target size %dx%d", width, height)
	}
	if img == nil {
		return nil, errors.Wrap(entity.ErrInvalidInput, "nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "image size %dx%d", b.Dx(), b.Dy())
	}

	// нулевой фильтр в imaging означает ближайшего соседа
	resized := imaging.Resize(img, width, height, c.Filter)

	tensor := entity.NewTensor(3, height, width)
	packPlanar(resized, tensor)
	return tensor, nil
}

// packPlanar переставляет чередующиеся RGBA в плоскости CHW.
func packPlanar(img *image.NRGBA, tensor *entity.Tensor) {
	width, height := tensor.Width(), tensor.Height()
	rPlane, gPlane, bPlane := tensor.Plane(0), tensor.Plane(1), tensor.Plane(2)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		offset := y * width
		for x := 0; x < width; x++ {
			i := offset + x
			rPlane[i] = float32(row[x*4]) / 255.0
			gPlane[i] = float32(row[x*4+1]) / 255.0
			bPlane[i] = float32(row[x*4+2]) / 255.0
		}
	}
}

// Rotate поворачивает изображение по часовой стрелке на 0, 90, 180 или 270 градусов.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		// imaging крутит против часовой стрелки
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, errors.Wrapf(entity.ErrInvalidInput, "unsupported rotation %d", degrees)
	}
}
