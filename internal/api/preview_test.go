package api

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "anomaly-vision/internal/application"
	"anomaly-vision/internal/domain/entity"
)

type fakeDisplay struct {
	mu     sync.Mutex
	shown  int
	closed bool
	err    error
}

func (d *fakeDisplay) Show(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown++
	return d.err
}

func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

func openDisplay(d *fakeDisplay) func() (Display, error) {
	return func() (Display, error) { return d, nil }
}

func TestPreview_ShowsResultsAndSkipsErrors(t *testing.T) {
	sink := app.NewChannelSink(4)
	display := &fakeDisplay{}
	det := newFakeDetector(entity.LabelNormal)
	preview := NewPreview(sink.Events(), det, openDisplay(display))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- preview.Run(ctx) }()

	result, err := det.DetectImage(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4)), "camera")
	require.NoError(t, err)
	sink.OnError(errors.Wrap(entity.ErrInference, "boom"))
	sink.OnResult(result)

	require.Eventually(t, func() bool { return display.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, display.closed)
}

func TestPreview_DisplayFailureStops(t *testing.T) {
	sink := app.NewChannelSink(1)
	display := &fakeDisplay{err: errors.New("window closed")}
	det := newFakeDetector(entity.LabelNormal)

	result, err := det.DetectImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "camera")
	require.NoError(t, err)
	sink.OnResult(result)

	err = NewPreview(sink.Events(), det, openDisplay(display)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, display.closed)
}

func TestPreview_OpenFailure(t *testing.T) {
	sink := app.NewChannelSink(1)
	open := func() (Display, error) { return nil, errors.New("no display") }

	err := NewPreview(sink.Events(), newFakeDetector(entity.LabelNormal), open).Run(context.Background())
	require.Error(t, err)
}
