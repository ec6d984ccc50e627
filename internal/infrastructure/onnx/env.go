package onnx

import (
	"sync"

	"github.com/cockroachdb/errors"
	ort "github.com/yalue/onnxruntime_go"

	"anomaly-vision/internal/domain/entity"
)

var (
	envMu     sync.Mutex
	envActive bool
)

// Init загружает разделяемую библиотеку onnxruntime и поднимает окружение.
// Пустой libPath оставляет путь по умолчанию. Повторный вызов ничего не делает.
func Init(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envActive {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Mark(errors.Wrap(err, "initialize onnxruntime environment"), entity.ErrInitialization)
	}
	envActive = true
	return nil
}

// Destroy освобождает окружение onnxruntime.
func Destroy() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !envActive {
		return nil
	}
	envActive = false
	return ort.DestroyEnvironment()
}

// Active сообщает, поднято ли окружение.
func Active() bool {
	envMu.Lock()
	defer envMu.Unlock()
	return envActive
}
