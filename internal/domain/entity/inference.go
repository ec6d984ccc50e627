package entity

// OutputTensor один выход модели.
type OutputTensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// InferenceOutput сырые выходы модели: карта аномальности и общая оценка.
type InferenceOutput struct {
	AnomalyMap []float32
	RawScore   float32
}
