package render

import (
	"image/color"
	"math"
)

// HeatColor цвет для значения v в [0,1]:
// синий → голубой → зелёный → жёлтый → красный.
func HeatColor(v float64) color.NRGBA {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}

	var r, g, b float64
	switch {
	case v < 0.25:
		r, g, b = 0, 4*v, 1
	case v < 0.5:
		r, g, b = 0, 1, 1-4*(v-0.25)
	case v < 0.75:
		r, g, b = 4*(v-0.5), 1, 0
	default:
		r, g, b = 1, 1-4*(v-0.75), 0
	}
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

func channel(x float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, x)) * 255))
}
