package entity

// Tensor плоский буфер float32 в раскладке NCHW (batch=1).
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor выделяет тензор формы (1, channels, height, width).
func NewTensor(channels, height, width int) *Tensor {
	return &Tensor{
		Shape: []int64{1, int64(channels), int64(height), int64(width)},
		Data:  make([]float32, channels*height*width),
	}
}

// Channels возвращает число каналов
func (t *Tensor) Channels() int { return t.dim(1) }

// Height возвращает высоту
func (t *Tensor) Height() int { return t.dim(2) }

// Width возвращает ширину
func (t *Tensor) Width() int { return t.dim(3) }

// Plane возвращает срез одного канала без копирования.
func (t *Tensor) Plane(c int) []float32 {
	size := t.Height() * t.Width()
	return t.Data[c*size : (c+1)*size]
}

// HasShape сравнивает форму тензора с ожидаемой.
func (t *Tensor) HasShape(shape []int64) bool {
	if len(t.Shape) != len(shape) {
		return false
	}
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) dim(i int) int {
	if i >= len(t.Shape) {
		return 0
	}
	return int(t.Shape[i])
}
