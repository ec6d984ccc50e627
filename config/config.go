package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Значения по умолчанию
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultModelPath       = "models/model.onnx"
	DefaultMetadataPath    = "models/metadata.json"
	DefaultModelInputSize  = 224
	DefaultNormalizer      = "centered"
	DefaultHeatmapMaxAlpha = 128
)

type Config struct {
	TelegramToken string // пусто — бот выключен
	HTTPAddr      string // пусто — HTTP выключен

	CameraDevice   string // номер камеры или URL потока, пусто — камера выключена
	CameraRotation int    // поворот кадров камеры по часовой стрелке
	PreviewWindow  bool   // окно с тепловой картой для камеры

	ModelPath      string
	MetadataPath   string
	ORTLibraryPath string
	ModelInputSize int
	Normalizer     string

	HeatmapMaxAlpha int
	PreviewMaxSide  int
	HistoryDB       string

	LogJSON bool
	Debug   bool
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	return fromEnv(os.LookupEnv)
}

func fromEnv(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	integer := func(key string, def int) int {
		v := env(key, "")
		if v == "" {
			return def
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			errs = append(errs, errors.Newf("%s: %q is not an integer", key, v))
			return def
		}
		return n
	}
	boolean := func(key string, def bool) bool {
		v := env(key, "")
		if v == "" {
			return def
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			errs = append(errs, errors.Newf("%s: %q is not a boolean", key, v))
			return def
		}
		return b
	}

	cfg := &Config{
		TelegramToken:   env("TELEGRAM_TOKEN", ""),
		HTTPAddr:        env("HTTP_ADDR", DefaultHTTPAddr),
		CameraDevice:    env("CAMERA_DEVICE", ""),
		CameraRotation:  integer("CAMERA_ROTATION", 0),
		ModelPath:       env("MODEL_PATH", DefaultModelPath),
		MetadataPath:    env("METADATA_PATH", DefaultMetadataPath),
		ORTLibraryPath:  env("ORT_LIBRARY_PATH", ""),
		ModelInputSize:  integer("MODEL_INPUT_SIZE", DefaultModelInputSize),
		Normalizer:      strings.ToLower(env("NORMALIZER", DefaultNormalizer)),
		HeatmapMaxAlpha: integer("HEATMAP_MAX_ALPHA", DefaultHeatmapMaxAlpha),
		PreviewMaxSide:  integer("PREVIEW_MAX_SIDE", 0),
		HistoryDB:       env("HISTORY_DB", ""),
		LogJSON:         boolean("LOG_JSON", false),
		Debug:           boolean("DEBUG", false),
	}
	cfg.PreviewWindow = boolean("PREVIEW_WINDOW", cfg.CameraDevice != "")

	var err error
	for _, e := range errs {
		err = errors.CombineErrors(err, e)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.TelegramToken == "" && c.HTTPAddr == "" && c.CameraDevice == "" {
		return errors.New("nothing to run: set TELEGRAM_TOKEN, HTTP_ADDR or CAMERA_DEVICE")
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	switch c.CameraRotation {
	case 0, 90, 180, 270:
	default:
		return errors.Newf("CAMERA_ROTATION must be 0, 90, 180 or 270, got %d", c.CameraRotation)
	}
	if c.ModelInputSize <= 0 {
		return errors.Newf("MODEL_INPUT_SIZE must be positive, got %d", c.ModelInputSize)
	}
	if c.HeatmapMaxAlpha < 1 || c.HeatmapMaxAlpha > 255 {
		return errors.Newf("HEATMAP_MAX_ALPHA must be in 1..255, got %d", c.HeatmapMaxAlpha)
	}
	if c.PreviewMaxSide < 0 {
		return errors.Newf("PREVIEW_MAX_SIDE must not be negative, got %d", c.PreviewMaxSide)
	}
	return nil
}
