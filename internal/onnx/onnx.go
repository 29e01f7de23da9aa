package onnx

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the ONNX Runtime shared library once per process. An empty
// libraryPath uses the loader's default search path.
func Init(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	})
	return initErr
}

// Shutdown releases the ONNX Runtime environment.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Model describes a loaded model's first input and output.
type Model struct {
	Session     *ort.DynamicAdvancedSession
	InputName   string
	InputShape  ort.Shape
	OutputName  string
	OutputShape ort.Shape
}

// Load opens modelPath with its declared first input and output. When useCUDA
// is set the CUDA provider is tried first and CPU is used if it is missing;
// both produce the same predictions.
func Load(logger zerolog.Logger, modelPath string, useCUDA bool) (*Model, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", modelPath)
	}

	inputNames := []string{inputs[0].Name}
	outputNames := []string{outputs[0].Name}

	var session *ort.DynamicAdvancedSession
	if useCUDA {
		session, err = newCUDASession(modelPath, inputNames, outputNames)
		if err != nil {
			logger.Warn().Err(err).Str("model", modelPath).Msg("CUDA unavailable, using CPU")
		}
	}
	if session == nil {
		session, err = ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
		}
	}

	logger.Info().
		Str("model", modelPath).
		Str("input", inputs[0].Name).
		Str("output", outputs[0].Name).
		Msg("model loaded")

	return &Model{
		Session:     session,
		InputName:   inputs[0].Name,
		InputShape:  inputs[0].Dimensions,
		OutputName:  outputs[0].Name,
		OutputShape: outputs[0].Dimensions,
	}, nil
}

func newCUDASession(modelPath string, inputNames, outputNames []string) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	defer cuda.Destroy()

	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return nil, err
	}
	return ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
}

// RunFloat32 runs the model on a single float32 input and returns the
// output data and shape.
func (m *Model) RunFloat32(shape ort.Shape, data []float32) ([]float32, ort.Shape, error) {
	input, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := m.Session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	out := make([]float32, len(tensor.GetData()))
	copy(out, tensor.GetData())
	return out, tensor.GetShape().Clone(), nil
}

func (m *Model) Close() error {
	if m.Session == nil {
		return nil
	}
	return m.Session.Destroy()
}
