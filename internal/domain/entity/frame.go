package entity

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// PixelFormat формат пикселей в буфере кадра
type PixelFormat int

const (
	PixelFormatRGB  PixelFormat = iota // R,G,B по байту на пиксель
	PixelFormatRGBA                    // R,G,B,A по байту на пиксель
	PixelFormatNV21                    // плоскость Y, затем чередующиеся V,U (Android)
	PixelFormatI420                    // плоскости Y, U, V
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGB:
		return "rgb"
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatNV21:
		return "nv21"
	case PixelFormatI420:
		return "i420"
	default:
		return "unknown"
	}
}

// ParsePixelFormat разбирает имя формата ("rgb", "rgba", "nv21", "i420").
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rgb":
		return PixelFormatRGB, nil
	case "rgba":
		return PixelFormatRGBA, nil
	case "nv21":
		return PixelFormatNV21, nil
	case "i420", "yuv420p":
		return PixelFormatI420, nil
	default:
		return 0, errors.Wrapf(ErrInvalidInput, "unknown pixel format %q", name)
	}
}

// Frame кадр, полученный от источника (камера, бот, HTTP).
// Живёт один проход конвейера и освобождается через Release.
type Frame struct {
	ID       string      // идентификатор кадра
	Width    int         // ширина в пикселях
	Height   int         // высота в пикселях
	Format   PixelFormat // формат буфера
	Data     []byte      // пиксели
	Rotation int         // поворот по часовой стрелке: 0, 90, 180, 270
	Source   string      // откуда пришёл кадр

	releaseOnce sync.Once
	release     func()
}

// OnRelease задаёт функцию освобождения буфера источника.
func (f *Frame) OnRelease(fn func()) {
	f.release = fn
}

// Release возвращает буфер источнику. Повторные вызовы ничего не делают.
func (f *Frame) Release() {
	f.releaseOnce.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}
