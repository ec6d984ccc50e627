package app

import (
	"math"

	"github.com/cockroachdb/errors"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// Имена стратегий нормализации
const (
	StrategyCentered = "centered"
	StrategyMinMax   = "minmax"
)

// Параметры стратегии minmax
const (
	DefaultMinMaxPixelThreshold    = 0.5
	DefaultMinMaxFractionThreshold = 0.3
)

// NewNormalizer создаёт стратегию по имени.
func NewNormalizer(name string, stats entity.CalibrationStats) (port.ScoreNormalizer, error) {
	switch name {
	case "", StrategyCentered:
		return NewCenteredNormalizer(stats), nil
	case StrategyMinMax:
		return NewMinMaxNormalizer(stats), nil
	default:
		return nil, errors.Newf("unknown normalizer %q", name)
	}
}

// CenteredNormalizer сдвигает оценку так, что порог изображения попадает в 0.5.
// Карта нормализуется по собственным min/max кадра, порог пикселя переводится
// в то же пространство.
type CenteredNormalizer struct {
	stats entity.CalibrationStats
}

// NewCenteredNormalizer создаёт стратегию centered.
func NewCenteredNormalizer(stats entity.CalibrationStats) *CenteredNormalizer {
	return &CenteredNormalizer{stats: stats}
}

func (n *CenteredNormalizer) Name() string { return StrategyCentered }

func (n *CenteredNormalizer) Normalize(output *entity.InferenceOutput) (*entity.DetectionResult, error) {
	if output == nil || len(output.AnomalyMap) == 0 {
		return nil, errors.Wrap(entity.ErrInference, "empty anomaly map")
	}

	normalized, lo, hi := MinMaxMap(output.AnomalyMap)
	span := hi - lo

	var threshold, fraction float64
	if span > 0 {
		threshold = (n.stats.PixelThreshold - lo) / span
		fraction = AnomalousFraction(normalized, threshold)
	} else {
		// однородная карта: сравниваем сырые значения с сырым порогом
		threshold = 1
		if n.stats.PixelThreshold < lo {
			threshold = 0
		}
		fraction = AnomalousFraction(output.AnomalyMap, n.stats.PixelThreshold)
	}

	raw := float64(output.RawScore)
	return &entity.DetectionResult{
		Label:             labelFor(raw > n.stats.ImageThreshold),
		Score:             CenteredScore(raw, n.stats),
		RawScore:          raw,
		AnomalyMap:        normalized,
		PixelThreshold:    clamp01(threshold),
		AnomalousFraction: fraction,
		Strategy:          StrategyCentered,
	}, nil
}

// MinMaxNormalizer нормализует карту по min/max кадра с фиксированным порогом
// пикселя, оценку — по min/max калибровки. Изображение аномально, если оценка
// выше порога или доля аномальных пикселей выше FractionThreshold.
type MinMaxNormalizer struct {
	stats             entity.CalibrationStats
	PixelThreshold    float64
	FractionThreshold float64
}

// NewMinMaxNormalizer создаёт стратегию minmax.
func NewMinMaxNormalizer(stats entity.CalibrationStats) *MinMaxNormalizer {
	return &MinMaxNormalizer{
		stats:             stats,
		PixelThreshold:    DefaultMinMaxPixelThreshold,
		FractionThreshold: DefaultMinMaxFractionThreshold,
	}
}

func (n *MinMaxNormalizer) Name() string { return StrategyMinMax }

func (n *MinMaxNormalizer) Normalize(output *entity.InferenceOutput) (*entity.DetectionResult, error) {
	if output == nil || len(output.AnomalyMap) == 0 {
		return nil, errors.Wrap(entity.ErrInference, "empty anomaly map")
	}

	normalized, _, _ := MinMaxMap(output.AnomalyMap)
	fraction := AnomalousFraction(normalized, n.PixelThreshold)
	raw := float64(output.RawScore)

	return &entity.DetectionResult{
		Label:             labelFor(raw > n.stats.ImageThreshold || fraction > n.FractionThreshold),
		Score:             MinMaxScore(raw, n.stats),
		RawScore:          raw,
		AnomalyMap:        normalized,
		PixelThreshold:    n.PixelThreshold,
		AnomalousFraction: fraction,
		Strategy:          StrategyMinMax,
	}, nil
}

// CenteredScore clamp(((raw - threshold) / (max - min)) + 0.5, 0, 1).
// При пустом диапазоне калибровки возвращает 1 выше порога, 0 ниже и 0.5 на пороге.
func CenteredScore(raw float64, stats entity.CalibrationStats) float64 {
	span := stats.ScoreSpan()
	if !(span > 0) || math.IsInf(span, 0) {
		return step(raw, stats.ImageThreshold)
	}
	return clamp01((raw-stats.ImageThreshold)/span + 0.5)
}

// MinMaxScore clamp((raw - min) / (max - min), 0, 1).
func MinMaxScore(raw float64, stats entity.CalibrationStats) float64 {
	span := stats.ScoreSpan()
	if !(span > 0) || math.IsInf(span, 0) {
		return step(raw, stats.MinScore)
	}
	return clamp01((raw - stats.MinScore) / span)
}

// MinMaxMap переводит значения в [0,1] по их собственным min и max.
// Однородная карта превращается в нули; NaN считается нулём.
func MinMaxMap(values []float32) (normalized []float32, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}

	normalized = make([]float32, len(values))
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return normalized, lo, hi
	}
	for i, v := range values {
		normalized[i] = float32(clamp01((float64(v) - lo) / span))
	}
	return normalized, lo, hi
}

// AnomalousFraction доля значений строго больше threshold.
func AnomalousFraction(values []float32, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if float64(v) > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func labelFor(anomalous bool) entity.Label {
	if anomalous {
		return entity.LabelAnomalous
	}
	return entity.LabelNormal
}

func step(value, threshold float64) float64 {
	switch {
	case value > threshold:
		return 1
	case value < threshold:
		return 0
	default:
		return 0.5
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
