package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
	"anomaly-vision/internal/logger"
)

// PipelineStats счётчики конвейера кадров
type PipelineStats struct {
	Submitted int64 `json:"submitted"`
	Dropped   int64 `json:"dropped"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Busy      bool  `json:"busy"`
}

// FramePipeline обрабатывает кадры по одному. Пока кадр в работе,
// новые кадры отбрасываются сразу, без очереди.
type FramePipeline struct {
	detector port.AnomalyDetector
	sink     port.FrameSink
	frames   chan *entity.Frame
	busy     atomic.Bool
	log      *zap.SugaredLogger

	submitted atomic.Int64
	dropped   atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	current *entity.DetectionResult
}

// NewFramePipeline создаёт конвейер. sink может быть nil.
func NewFramePipeline(detector port.AnomalyDetector, sink port.FrameSink) *FramePipeline {
	return &FramePipeline{
		detector: detector,
		sink:     sink,
		frames:   make(chan *entity.Frame, 1),
		log:      logger.Named("pipeline"),
	}
}

// Submit передаёт кадр в обработку. Возвращает false, если кадр отброшен;
// отброшенный кадр освобождается сразу.
func (p *FramePipeline) Submit(frame *entity.Frame) bool {
	if frame == nil {
		return false
	}
	p.submitted.Add(1)

	if !p.busy.CompareAndSwap(false, true) {
		p.drop(frame)
		return false
	}

	select {
	case p.frames <- frame:
		return true
	default:
		p.busy.Store(false)
		p.drop(frame)
		return false
	}
}

// Run обрабатывает кадры в одной горутине до отмены контекста.
func (p *FramePipeline) Run(ctx context.Context) error {
	defer p.releaseCurrent()

	for {
		select {
		case <-ctx.Done():
			select {
			case frame := <-p.frames:
				frame.Release()
				p.busy.Store(false)
			default:
			}
			return nil
		case frame := <-p.frames:
			p.process(ctx, frame)
		}
	}
}

// Current последний успешный результат
func (p *FramePipeline) Current() *entity.DetectionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stats возвращает счётчики
func (p *FramePipeline) Stats() PipelineStats {
	return PipelineStats{
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Busy:      p.busy.Load(),
	}
}

func (p *FramePipeline) process(ctx context.Context, frame *entity.Frame) {
	defer p.busy.Store(false)
	defer frame.Release()

	result, err := p.detector.DetectFrame(ctx, frame)
	if err != nil {
		p.failed.Add(1)
		p.log.Debugw("frame failed", logger.FieldFrameID, frame.ID, logger.FieldError, err)
		if p.sink != nil {
			p.sink.OnError(err)
		}
		return
	}

	p.processed.Add(1)
	p.replace(result)
	if p.sink != nil {
		p.sink.OnResult(result)
	}
}

// replace делает результат текущим и сбрасывает кэш предыдущего.
func (p *FramePipeline) replace(result *entity.DetectionResult) {
	p.mu.Lock()
	prev := p.current
	p.current = result
	p.mu.Unlock()

	if prev != nil && prev != result {
		prev.Release()
	}
}

func (p *FramePipeline) releaseCurrent() {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
}

func (p *FramePipeline) drop(frame *entity.Frame) {
	n := p.dropped.Add(1)
	frame.Release()
	if n%100 == 1 {
		p.log.Debugw("frame dropped, detector busy", logger.FieldFrameID, frame.ID, logger.FieldDropped, n)
	}
}

// SinkEvent результат или ошибка конвейера
type SinkEvent struct {
	Result *entity.DetectionResult
	Err    error
}

// ChannelSink передаёт события конвейера в другую горутину (окно показа,
// чат). Если получатель не успевает, старое событие вытесняется новым.
type ChannelSink struct {
	events chan SinkEvent
}

// NewChannelSink создаёт sink с буфером depth (минимум 1).
func NewChannelSink(depth int) *ChannelSink {
	if depth < 1 {
		depth = 1
	}
	return &ChannelSink{events: make(chan SinkEvent, depth)}
}

func (s *ChannelSink) OnResult(result *entity.DetectionResult) {
	s.push(SinkEvent{Result: result})
}

func (s *ChannelSink) OnError(err error) {
	s.push(SinkEvent{Err: err})
}

// Events канал событий
func (s *ChannelSink) Events() <-chan SinkEvent {
	return s.events
}

func (s *ChannelSink) push(ev SinkEvent) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// Проверка реализации интерфейса
var _ port.FrameSink = (*ChannelSink)(nil)
