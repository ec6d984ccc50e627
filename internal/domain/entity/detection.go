package entity

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Label итоговая метка изображения
type Label string

const (
	LabelAnomalous Label = "Anomalous"
	LabelNormal    Label = "Normal"
)

// Timings длительность этапов одного прохода конвейера.
type Timings struct {
	Decode      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}

// DetectionResult нормализованный результат детекции.
// Поля не меняются после создания; визуализация вычисляется лениво
// и сбрасывается через Release.
type DetectionResult struct {
	ID                string
	Source            image.Image // исходное изображение (уже повернутое)
	Label             Label
	Score             float64   // нормализованная оценка в [0,1]
	RawScore          float64   // оценка модели до нормализации
	AnomalyMap        []float32 // нормализованная карта в [0,1]
	PixelThreshold    float64   // порог пикселя в пространстве карты
	AnomalousFraction float64   // доля пикселей выше порога
	Strategy          string    // стратегия нормализации
	Timings           Timings
	CreatedAt         time.Time

	mu     sync.Mutex
	visual image.Image
}

// IsAnomalous сообщает, помечено ли изображение как аномальное.
func (r *DetectionResult) IsAnomalous() bool {
	return r.Label == LabelAnomalous
}

// DisplayPercent уверенность в метке в процентах.
func (r *DetectionResult) DisplayPercent() float64 {
	if r.IsAnomalous() {
		return r.Score * 100
	}
	return (1 - r.Score) * 100
}

// Caption подпись вида "Anomalous (97.3%)".
func (r *DetectionResult) Caption() string {
	return fmt.Sprintf("%s (%.1f%%)", r.Label, r.DisplayPercent())
}

// GridSize возвращает сторону квадратной сетки карты.
func (r *DetectionResult) GridSize() (int, error) {
	return SquareSide(len(r.AnomalyMap))
}

// SquareSide возвращает n, если length == n*n.
func SquareSide(length int) (int, error) {
	if length <= 0 {
		return 0, errors.Wrap(ErrRender, "empty anomaly map")
	}
	n := int(math.Sqrt(float64(length)))
	for n*n > length {
		n--
	}
	for (n+1)*(n+1) <= length {
		n++
	}
	if n*n != length {
		return 0, errors.Wrapf(ErrRender, "anomaly map of %d cells is not square", length)
	}
	return n, nil
}

// Visualize возвращает закэшированную визуализацию или строит её.
// При ошибке отрисовки возвращается исходное изображение.
func (r *DetectionResult) Visualize(renderer interface {
	Render(*DetectionResult) (image.Image, error)
}) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.visual != nil {
		return r.visual, nil
	}

	img, err := renderer.Render(r)
	if err != nil {
		return r.Source, err
	}
	r.visual = img
	return img, nil
}

// Rendered сообщает, есть ли закэшированная визуализация.
func (r *DetectionResult) Rendered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visual != nil
}

// Release сбрасывает закэшированную визуализацию.
func (r *DetectionResult) Release() {
	r.mu.Lock()
	r.visual = nil
	r.mu.Unlock()
}

// Record краткая запись для истории.
func (r *DetectionResult) Record(source string) DetectionRecord {
	return DetectionRecord{
		ID:                r.ID,
		Source:            source,
		Label:             r.Label,
		Score:             r.Score,
		RawScore:          r.RawScore,
		AnomalousFraction: r.AnomalousFraction,
		Strategy:          r.Strategy,
		InferenceMS:       r.Timings.Inference.Milliseconds(),
		TotalMS:           r.Timings.Total.Milliseconds(),
		CreatedAt:         r.CreatedAt,
	}
}

// DetectionRecord запись истории детекций.
type DetectionRecord struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	Label             Label     `json:"label"`
	Score             float64   `json:"score"`
	RawScore          float64   `json:"raw_score"`
	AnomalousFraction float64   `json:"anomalous_fraction"`
	Strategy          string    `json:"strategy"`
	InferenceMS       int64     `json:"inference_ms"`
	TotalMS           int64     `json:"total_ms"`
	CreatedAt         time.Time `json:"created_at"`
}
