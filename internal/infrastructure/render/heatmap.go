package render

import (
	"image"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// DefaultMaxAlpha максимальная непрозрачность слоя тепловой карты (~50%).
const DefaultMaxAlpha = 128

const (
	plateAlpha  = 160
	minFontSize = 12
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
}

// Renderer накладывает тепловую карту и подпись на исходное изображение.
type Renderer struct {
	MaxAlpha uint8
}

// NewRenderer создаёт отрисовщик. maxAlpha вне 1..255 заменяется на DefaultMaxAlpha.
func NewRenderer(maxAlpha int) *Renderer {
	if maxAlpha <= 0 || maxAlpha > 255 {
		maxAlpha = DefaultMaxAlpha
	}
	return &Renderer{MaxAlpha: uint8(maxAlpha)}
}

// Render рисует новое изображение; исходное не меняется.
func (r *Renderer) Render(result *entity.DetectionResult) (image.Image, error) {
	if result == nil || result.Source == nil {
		return nil, errors.Wrap(entity.ErrRender, "no source image")
	}
	bounds := result.Source.Bounds()
	if bounds.Empty() {
		return nil, errors.Wrap(entity.ErrRender, "empty source image")
	}
	n, err := result.GridSize()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(result.Source)
	r.drawOverlay(dc, result.AnomalyMap, n)
	drawLabel(dc, result.Caption())
	return dc.Image(), nil
}

// drawOverlay закрашивает клетки сетки n×n; карта хранится построчно (y*n + x).
func (r *Renderer) drawOverlay(dc *gg.Context, values []float32, n int) {
	cellW := float64(dc.Width()) / float64(n)
	cellH := float64(dc.Height()) / float64(n)

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := float64(values[y*n+x])
			if math.IsNaN(v) || v <= 0 {
				continue
			}
			if v > 1 {
				v = 1
			}
			c := HeatColor(v)
			alpha := int(math.Round(v * float64(r.MaxAlpha)))
			if alpha == 0 {
				continue
			}
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), alpha)
			dc.DrawRectangle(float64(x)*cellW, float64(y)*cellH, cellW, cellH)
			dc.Fill()
		}
	}
}

// drawLabel рисует подпись в левом верхнем углу на полупрозрачной подложке.
func drawLabel(dc *gg.Context, text string) {
	height := float64(dc.Height())
	size := math.Max(height/20, minFontSize)
	pad := math.Max(height/50, 2)

	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: size}))
	w, h := dc.MeasureString(text)

	dc.SetRGBA255(0, 0, 0, plateAlpha)
	dc.DrawRectangle(pad, pad, w+2*pad, h+2*pad)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, 2*pad, 2*pad, 0, 1)
}

// Проверка реализации интерфейса
var _ port.HeatmapRenderer = (*Renderer)(nil)
