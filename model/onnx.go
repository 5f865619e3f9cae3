package model

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

func initORT() error {
	libPath := "/usr/lib/libonnxruntime.so"
	switch runtime.GOOS {
	case "windows":
		libPath = "onnxruntime.dll"
	case "darwin":
		libPath = "libonnxruntime.dylib"
	}
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

// ONNX runs a champion model exported to ONNX. The session and its
// input/output tensors are allocated once and reused across predictions;
// inference itself is synchronous and deterministic for fixed inputs.
//
// The exported graph takes a single float32 feature vector named "input" and
// emits a single probability named "output". Regime awareness is encoded as
// trailing one-hot features appended by the caller's feature extractor, so
// the regime string itself is not consumed here.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
}

// NewONNX loads the model at path expecting featureDim inputs.
func NewONNX(path string, featureDim int) (*ONNX, error) {
	var initErr error
	ortInit.Do(func() { initErr = initORT() })
	if initErr != nil {
		return nil, fmt.Errorf("model: onnxruntime init: %w", initErr)
	}
	if featureDim <= 0 {
		return nil, fmt.Errorf("model: feature dim must be positive")
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(featureDim)), make([]float32, featureDim))
	if err != nil {
		return nil, fmt.Errorf("model: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("model: output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(path,
		[]string{"input"}, []string{"output"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("model: session for %s: %w", path, err)
	}

	return &ONNX{session: session, input: input, output: output, dim: featureDim}, nil
}

func (m *ONNX) Predict(features []float64, regime string) (float64, error) {
	_ = regime // encoded in the feature vector by the extractor

	if len(features) != m.dim {
		return 0, fmt.Errorf("model: got %d features, model expects %d", len(features), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.input.GetData()
	for i, f := range features {
		data[i] = float32(f)
	}
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("model: inference: %w", err)
	}
	p := float64(m.output.GetData()[0])
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, nil
}

// Close releases the session and tensors.
func (m *ONNX) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
