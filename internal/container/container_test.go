package container

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"anomaly-vision/config"
	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
	"anomaly-vision/internal/infrastructure/storage"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	metadata := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(metadata, []byte(`{"image_threshold": 10, "pixel_threshold": 10, "pred_scores_min": 0, "pred_scores_max": 20}`), 0o600))

	return &config.Config{
		HTTPAddr:        config.DefaultHTTPAddr,
		ModelPath:       filepath.Join(dir, "model.onnx"),
		MetadataPath:    metadata,
		ModelInputSize:  config.DefaultModelInputSize,
		Normalizer:      config.DefaultNormalizer,
		HeatmapMaxAlpha: config.DefaultHeatmapMaxAlpha,
	}
}

func unavailable(ctx context.Context) (port.ModelSession, error) {
	return nil, errors.New("no runtime in tests")
}

func TestNewWithFactory_Defaults(t *testing.T) {
	c, err := NewWithFactory(testConfig(t), unavailable)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.UserService)
	require.NotNil(t, c.Detector)
	require.NotNil(t, c.Pipeline)
	require.Nil(t, c.Sink)
	require.IsType(t, &storage.MemoryDetectionRepository{}, c.History)
	require.Equal(t, app.StrategyCentered, c.Detector.Strategy())

	_, err = c.Detector.DetectImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "test")
	require.True(t, errors.Is(err, entity.ErrInitialization))
}

func TestNewWithFactory_SQLiteAndPreview(t *testing.T) {
	cfg := testConfig(t)
	cfg.Normalizer = app.StrategyMinMax
	cfg.HistoryDB = filepath.Join(t.TempDir(), "history.db")
	cfg.PreviewWindow = true

	c, err := NewWithFactory(cfg, unavailable)
	require.NoError(t, err)

	require.NotNil(t, c.Sink)
	require.IsType(t, &storage.SQLiteDetectionRepository{}, c.History)
	require.Equal(t, app.StrategyMinMax, c.Detector.Strategy())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNewWithFactory_UnknownNormalizer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Normalizer = "zscore"

	_, err := NewWithFactory(cfg, unavailable)
	require.Error(t, err)
}
