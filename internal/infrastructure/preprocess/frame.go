package preprocess

import (
	"image"

	"github.com/cockroachdb/errors"

	"anomaly-vision/internal/domain/entity"
)

// MaxFrameSide наибольшая сторона сырого кадра. Ограничение держит размер
// буфера в пределах int на любой платформе.
const MaxFrameSide = 16384

// CheckFrameSize проверяет размеры кадра до любых вычислений с ними.
func CheckFrameSize(w, h int) error {
	if w <= 0 || h <= 0 || w > MaxFrameSide || h > MaxFrameSide {
		return errors.Wrapf(entity.ErrInvalidInput, "frame size %dx%d, each side must be in 1..%d", w, h, MaxFrameSide)
	}
	return nil
}

// decodeFrame собирает image.Image из сырого буфера кадра.
// Пиксели копируются: буфер источника освобождается сразу после прохода.
func decodeFrame(frame *entity.Frame) (image.Image, error) {
	w, h := frame.Width, frame.Height
	if err := CheckFrameSize(w, h); err != nil {
		return nil, err
	}

	need := RequiredBytes(frame.Format, w, h)
	if need == 0 {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "unsupported pixel format %s", frame.Format)
	}
	if len(frame.Data) < need {
		return nil, errors.Wrapf(entity.ErrInvalidInput,
			"%s frame %dx%d needs %d bytes, got %d", frame.Format, w, h, need, len(frame.Data))
	}

	switch frame.Format {
	case entity.PixelFormatRGB:
		return fromRGB(frame.Data, w, h), nil
	case entity.PixelFormatRGBA:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(img.Pix, frame.Data[:w*h*4])
		return img, nil
	case entity.PixelFormatNV21:
		return fromNV21(frame.Data, w, h), nil
	default:
		return fromI420(frame.Data, w, h), nil
	}
}

// RequiredBytes минимальный размер буфера для формата, 0 если формат
// не поддерживается или размеры вне CheckFrameSize.
func RequiredBytes(format entity.PixelFormat, w, h int) int {
	if CheckFrameSize(w, h) != nil {
		return 0
	}
	cw, ch := (w+1)/2, (h+1)/2
	switch format {
	case entity.PixelFormatRGB:
		return w * h * 3
	case entity.PixelFormatRGBA:
		return w * h * 4
	case entity.PixelFormatNV21, entity.PixelFormatI420:
		return w*h + 2*cw*ch
	default:
		return 0
	}
}

func fromRGB(data []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < w*h; i, j = i+1, j+3 {
		img.Pix[i*4] = data[j]
		img.Pix[i*4+1] = data[j+1]
		img.Pix[i*4+2] = data[j+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// fromNV21: плоскость Y, затем пары V,U на каждый блок 2×2.
func fromNV21(data []byte, w, h int) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	copy(img.Y, data[:w*h])

	vu := data[w*h:]
	for i := range img.Cb {
		img.Cr[i] = vu[i*2]
		img.Cb[i] = vu[i*2+1]
	}
	return img
}

func fromI420(data []byte, w, h int) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	chroma := len(img.Cb)
	copy(img.Y, data[:w*h])
	copy(img.Cb, data[w*h:w*h+chroma])
	copy(img.Cr, data[w*h+chroma:w*h+2*chroma])
	return img
}
