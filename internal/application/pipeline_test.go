package app

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomaly-vision/internal/domain/entity"
)

// gatedDetector ждёт сигнала перед каждым ответом.
type gatedDetector struct {
	gate  chan struct{}
	err   error
	calls atomic.Int32
}

func (d *gatedDetector) DetectFrame(ctx context.Context, frame *entity.Frame) (*entity.DetectionResult, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return &entity.DetectionResult{
		ID:     frame.ID,
		Source: image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Label:  entity.LabelNormal,
	}, nil
}

func (d *gatedDetector) DetectImage(ctx context.Context, img image.Image, source string) (*entity.DetectionResult, error) {
	return nil, errors.New("not used")
}

type releaseCounter struct {
	mu  sync.Mutex
	ids []string
}

func (c *releaseCounter) frame(id string) *entity.Frame {
	f := &entity.Frame{ID: id}
	f.OnRelease(func() {
		c.mu.Lock()
		c.ids = append(c.ids, id)
		c.mu.Unlock()
	})
	return f
}

func (c *releaseCounter) released() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func startPipeline(t *testing.T, p *FramePipeline) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("pipeline did not stop")
		}
	}
}

func nextEvent(t *testing.T, sink *ChannelSink) SinkEvent {
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no pipeline event")
		return SinkEvent{}
	}
}

func waitIdle(t *testing.T, p *FramePipeline) {
	require.Eventually(t, func() bool { return !p.Stats().Busy }, 2*time.Second, 5*time.Millisecond)
}

func TestFramePipeline_DropsWhileBusy(t *testing.T) {
	det := &gatedDetector{gate: make(chan struct{})}
	sink := NewChannelSink(4)
	p := NewFramePipeline(det, sink)
	stop := startPipeline(t, p)
	defer stop()

	frames := &releaseCounter{}
	require.True(t, p.Submit(frames.frame("a")))
	require.False(t, p.Submit(frames.frame("b")))
	require.False(t, p.Submit(frames.frame("c")))
	assert.Equal(t, []string{"b", "c"}, frames.released())

	det.gate <- struct{}{}
	ev := nextEvent(t, sink)
	require.NoError(t, ev.Err)
	assert.Equal(t, "a", ev.Result.ID)
	waitIdle(t, p)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, frames.released())
	assert.Equal(t, int32(1), det.calls.Load())

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Same(t, ev.Result, p.Current())
}

func TestFramePipeline_ReleasesPreviousResult(t *testing.T) {
	det := &gatedDetector{}
	sink := NewChannelSink(4)
	p := NewFramePipeline(det, sink)
	stop := startPipeline(t, p)
	defer stop()

	frames := &releaseCounter{}
	require.True(t, p.Submit(frames.frame("first")))
	first := nextEvent(t, sink).Result
	require.NotNil(t, first)
	_, err := first.Visualize(&stubRenderer{})
	require.NoError(t, err)
	require.True(t, first.Rendered())
	waitIdle(t, p)

	require.True(t, p.Submit(frames.frame("second")))
	second := nextEvent(t, sink).Result
	require.NotNil(t, second)
	waitIdle(t, p)

	assert.False(t, first.Rendered())
	assert.Same(t, second, p.Current())
}

func TestFramePipeline_ErrorsReachSink(t *testing.T) {
	det := &gatedDetector{err: errors.Wrap(entity.ErrInference, "runtime error")}
	sink := NewChannelSink(4)
	p := NewFramePipeline(det, sink)
	stop := startPipeline(t, p)
	defer stop()

	frames := &releaseCounter{}
	require.True(t, p.Submit(frames.frame("bad")))
	ev := nextEvent(t, sink)
	require.Error(t, ev.Err)
	assert.Nil(t, ev.Result)
	assert.True(t, errors.Is(ev.Err, entity.ErrInference))
	waitIdle(t, p)

	assert.Equal(t, []string{"bad"}, frames.released())
	assert.Equal(t, int64(1), p.Stats().Failed)
	assert.Nil(t, p.Current())

	// после ошибки конвейер принимает следующий кадр
	det.err = nil
	require.True(t, p.Submit(frames.frame("good")))
	require.NoError(t, nextEvent(t, sink).Err)
}

func TestFramePipeline_StopReleasesCurrent(t *testing.T) {
	det := &gatedDetector{}
	sink := NewChannelSink(1)
	p := NewFramePipeline(det, sink)
	stop := startPipeline(t, p)

	frames := &releaseCounter{}
	require.True(t, p.Submit(frames.frame("only")))
	result := nextEvent(t, sink).Result
	_, err := result.Visualize(&stubRenderer{})
	require.NoError(t, err)
	waitIdle(t, p)

	stop()
	assert.Nil(t, p.Current())
	assert.False(t, result.Rendered())
}

func TestFramePipeline_SubmitNil(t *testing.T) {
	p := NewFramePipeline(&gatedDetector{}, nil)
	assert.False(t, p.Submit(nil))
	assert.Equal(t, int64(0), p.Stats().Submitted)
}

func TestChannelSink_KeepsNewest(t *testing.T) {
	sink := NewChannelSink(1)
	sink.OnResult(&entity.DetectionResult{ID: "old"})
	sink.OnResult(&entity.DetectionResult{ID: "new"})
	sink.OnError(errors.New("late"))

	ev := <-sink.Events()
	require.Error(t, ev.Err)
	assert.Len(t, sink.Events(), 0)

	sink.OnResult(&entity.DetectionResult{ID: "a"})
	ev = <-sink.Events()
	assert.Equal(t, "a", ev.Result.ID)
}
