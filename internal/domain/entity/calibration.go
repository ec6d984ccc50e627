package entity

// Значения по умолчанию, если metadata.json отсутствует или повреждён.
const (
	DefaultImageThreshold = 42.5799674987793
	DefaultPixelThreshold = 42.5799674987793
	DefaultMinScore       = 54.49655514941406
	DefaultMaxScore       = 70.5367202758789
)

// CalibrationStats статистика обучающей выборки. Загружается один раз при старте
// и дальше только читается.
type CalibrationStats struct {
	ImageThreshold float64 // порог аномальности изображения
	PixelThreshold float64 // порог аномальности пикселя
	MinScore       float64 // минимальная наблюдавшаяся оценка
	MaxScore       float64 // максимальная наблюдавшаяся оценка
}

// DefaultCalibration возвращает статистику по умолчанию.
func DefaultCalibration() CalibrationStats {
	return CalibrationStats{
		ImageThreshold: DefaultImageThreshold,
		PixelThreshold: DefaultPixelThreshold,
		MinScore:       DefaultMinScore,
		MaxScore:       DefaultMaxScore,
	}
}

// ScoreSpan возвращает MaxScore - MinScore.
func (c CalibrationStats) ScoreSpan() float64 {
	return c.MaxScore - c.MinScore
}
