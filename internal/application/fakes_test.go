package app

import (
	"context"
	"image"
	"sync"

	"github.com/cockroachdb/errors"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// fakeSession отвечает заранее заданными выходами.
type fakeSession struct {
	mu      sync.Mutex
	info    port.TensorInfo
	outputs []entity.OutputTensor
	err     error
	calls   int
	closed  bool
	block   chan struct{}
	seen    map[string]*entity.Tensor
}

func newFakeSession(size int64, anomalyMap []float32, score float32) *fakeSession {
	return &fakeSession{
		info: port.TensorInfo{Name: "input", Shape: []int64{1, 3, size, size}},
		outputs: []entity.OutputTensor{
			{Name: "anomaly_map", Data: anomalyMap},
			{Name: "pred_score", Data: []float32{score}},
		},
	}
}

func (s *fakeSession) InputInfo() port.TensorInfo { return s.info }

func (s *fakeSession) Run(ctx context.Context, inputs map[string]*entity.Tensor) ([]entity.OutputTensor, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = inputs
	if s.err != nil {
		return nil, s.err
	}
	return s.outputs, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// sessionFactory выдаёт сессии по очереди и считает вызовы.
type sessionFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	errs     []error
	calls    int
}

func (f *sessionFactory) New(ctx context.Context) (port.ModelSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no sessions")
	}
	if i >= len(f.sessions) {
		i = len(f.sessions) - 1
	}
	return f.sessions[i], nil
}

func (f *sessionFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(result *entity.DetectionResult) (image.Image, error) {
	if r.err != nil {
		return nil, r.err
	}
	return image.NewRGBA(result.Source.Bounds()), nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []entity.DetectionRecord
}

func (h *memoryHistory) Save(ctx context.Context, record entity.DetectionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *memoryHistory) Recent(ctx context.Context, limit int) ([]entity.DetectionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]entity.DetectionRecord(nil), h.records...), nil
}

func squareMap(n int, value func(i int) float32) []float32 {
	out := make([]float32, n*n)
	for i := range out {
		out[i] = value(i)
	}
	return out
}
