package preprocess

import (
	"bytes"
	"image"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"

	"anomaly-vision/internal/domain/entity"
)

// DefaultJPEGQuality качество JPEG для ответов.
const DefaultJPEGQuality = 90

// MaxImagePixels наибольшее число пикселей загружаемого изображения.
// Размер проверяется по заголовку до декодирования.
const MaxImagePixels = 40_000_000

const msgImageTooLarge = "⚠️ Изображение слишком большое. Пришлите снимок не больше 40 мегапикселей."

// Decode декодирует JPEG/PNG/GIF/BMP/TIFF с учётом EXIF-ориентации.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(entity.ErrInvalidInput, "empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode image header"), entity.ErrInvalidInput)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxImagePixels/cfg.Height {
		return nil, errors.WithHint(
			errors.Wrapf(entity.ErrInvalidInput, "image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxImagePixels),
			msgImageTooLarge,
		)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode image"), entity.ErrInvalidInput)
	}
	return img, nil
}

// EncodeJPEG кодирует изображение в JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}
