package calibration

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/logger"
)

// Ключи документа metadata.json
const (
	KeyImageThreshold = "image_threshold"
	KeyPixelThreshold = "pixel_threshold"
	KeyMinScore       = "pred_scores_min"
	KeyMaxScore       = "pred_scores_max"
)

// Load читает статистику из файла. Если файла нет или он повреждён,
// используются значения по умолчанию; ошибка наружу не возвращается.
func Load(path string) entity.CalibrationStats {
	log := logger.Named("calibration")

	if path == "" {
		log.Warnw("metadata path is empty, using defaults")
		return entity.DefaultCalibration()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnw("metadata is not readable, using defaults", logger.FieldPath, path, logger.FieldError, err)
		return entity.DefaultCalibration()
	}

	stats, fallbacks := Parse(bytes.NewReader(data))
	if len(fallbacks) > 0 {
		log.Warnw("metadata keys replaced with defaults", logger.FieldPath, path, "keys", fallbacks)
	}
	if stats.ScoreSpan() <= 0 {
		log.Warnw("metadata score range is empty", KeyMinScore, stats.MinScore, KeyMaxScore, stats.MaxScore)
	}

	log.Infow("calibration loaded",
		KeyImageThreshold, stats.ImageThreshold,
		KeyPixelThreshold, stats.PixelThreshold,
		KeyMinScore, stats.MinScore,
		KeyMaxScore, stats.MaxScore,
	)
	return stats
}

// defaults значения по умолчанию для каждого ключа документа
var defaults = map[string]float64{
	KeyImageThreshold: entity.DefaultImageThreshold,
	KeyPixelThreshold: entity.DefaultPixelThreshold,
	KeyMinScore:       entity.DefaultMinScore,
	KeyMaxScore:       entity.DefaultMaxScore,
}

// Parse разбирает JSON-документ. Возвращает статистику и список ключей,
// которые взяты по умолчанию.
func Parse(r io.Reader) (entity.CalibrationStats, []string) {
	v := viper.New()
	v.SetConfigType("json")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadConfig(r); err != nil {
		return entity.DefaultCalibration(), []string{KeyImageThreshold, KeyPixelThreshold, KeyMinScore, KeyMaxScore}
	}

	var fallbacks []string
	// отсутствующий ключ viper отдаёт из SetDefault, битое значение заменяем сами
	read := func(key string) float64 {
		if !v.InConfig(key) {
			fallbacks = append(fallbacks, key)
		}
		f, err := cast.ToFloat64E(v.Get(key))
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			fallbacks = append(fallbacks, key)
			return defaults[key]
		}
		return f
	}

	stats := entity.CalibrationStats{
		ImageThreshold: read(KeyImageThreshold),
		PixelThreshold: read(KeyPixelThreshold),
		MinScore:       read(KeyMinScore),
		MaxScore:       read(KeyMaxScore),
	}
	return stats, fallbacks
}
