package api

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/infrastructure/preprocess"
)

type fakeDetector struct {
	mu      sync.Mutex
	err     error
	label   entity.Label
	sources []string
	shown   int
}

func newFakeDetector(label entity.Label) *fakeDetector {
	return &fakeDetector{label: label}
}

func (d *fakeDetector) DetectFrame(ctx context.Context, frame *entity.Frame) (*entity.DetectionResult, error) {
	return d.result(image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height)), frame.Source)
}

func (d *fakeDetector) DetectImage(ctx context.Context, img image.Image, source string) (*entity.DetectionResult, error) {
	return d.result(img, source)
}

func (d *fakeDetector) result(img image.Image, source string) (*entity.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, source)
	if d.err != nil {
		return nil, d.err
	}
	score := 0.2
	if d.label == entity.LabelAnomalous {
		score = 0.9
	}
	return &entity.DetectionResult{
		ID:                "det-1",
		Source:            img,
		Label:             d.label,
		Score:             score,
		RawScore:          55,
		AnomalyMap:        []float32{0, 0.5, 0.75, 1},
		PixelThreshold:    0.5,
		AnomalousFraction: 0.5,
		Strategy:          app.StrategyCentered,
		Timings:           entity.Timings{Inference: 12 * time.Millisecond, Total: 20 * time.Millisecond},
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (d *fakeDetector) Visualize(result *entity.DetectionResult) image.Image {
	d.mu.Lock()
	d.shown++
	d.mu.Unlock()
	return result.Source
}

func (d *fakeDetector) Stats() app.DetectionStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return app.DetectionStats{Processed: int64(len(d.sources)), Anomalous: 1}
}

func (d *fakeDetector) Strategy() string { return app.StrategyCentered }

type fakeQueue struct {
	accept    bool
	submitted []*entity.Frame
	current   *entity.DetectionResult
}

func (q *fakeQueue) Submit(frame *entity.Frame) bool {
	q.submitted = append(q.submitted, frame)
	if !q.accept {
		frame.Release()
	}
	return q.accept
}

func (q *fakeQueue) Current() *entity.DetectionResult { return q.current }

func (q *fakeQueue) Stats() app.PipelineStats {
	return app.PipelineStats{Submitted: int64(len(q.submitted))}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	data, err := preprocess.EncodeJPEG(img, preprocess.DefaultJPEGQuality)
	require.NoError(t, err)
	return data
}

func jpegImage(t *testing.T) image.Image {
	img, err := preprocess.Decode(jpegBytes(t, 8, 8))
	require.NoError(t, err)
	return img
}
