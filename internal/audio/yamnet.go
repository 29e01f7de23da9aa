package audio

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"jamesfarrell.me/vidextract/internal/onnx"
)

// YAMNet classifies audio into the 521 AudioSet classes.
type YAMNet struct {
	model   *onnx.Model
	names   []string
	batched bool
}

func NewYAMNet(logger zerolog.Logger, modelPath, classMapPath string, useCUDA bool) (*YAMNet, error) {
	names, err := LoadClassMap(classMapPath)
	if err != nil {
		return nil, err
	}

	model, err := onnx.Load(logger, modelPath, useCUDA)
	if err != nil {
		return nil, err
	}

	return &YAMNet{
		model:   model,
		names:   names,
		batched: len(model.InputShape) == 2,
	}, nil
}

func (y *YAMNet) Classify(ctx context.Context, window []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := ort.NewShape(int64(len(window)))
	if y.batched {
		shape = ort.NewShape(1, int64(len(window)))
	}

	out, outShape, err := y.model.RunFloat32(shape, window)
	if err != nil {
		return nil, err
	}
	return meanOverPatches(out, outShape, len(y.names))
}

func (y *YAMNet) ClassNames() []string {
	return y.names
}

func (y *YAMNet) Close() error {
	return y.model.Close()
}

// meanOverPatches averages a [patches, classes] score matrix per class.
func meanOverPatches(data []float32, shape ort.Shape, classes int) ([]float32, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("scalar classifier output")
	}
	width := int(shape[len(shape)-1])
	if width <= 0 || len(data)%width != 0 {
		return nil, fmt.Errorf("unexpected classifier output shape %v", shape)
	}
	if classes > 0 && width != classes {
		return nil, fmt.Errorf("classifier has %d classes, class map has %d", width, classes)
	}

	patches := len(data) / width
	if patches == 0 {
		return nil, fmt.Errorf("classifier returned no patches")
	}

	mean := make([]float32, width)
	for p := 0; p < patches; p++ {
		for c := 0; c < width; c++ {
			mean[c] += data[p*width+c]
		}
	}
	for c := range mean {
		mean[c] /= float32(patches)
	}
	return mean, nil
}

// LoadClassMap reads the YAMNet class map CSV (index,mid,display_name).
func LoadClassMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class map: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read class map: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("class map %s is empty", path)
	}

	names := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 3 {
			return nil, fmt.Errorf("class map row has %d columns", len(rec))
		}
		names = append(names, rec[2])
	}
	return names, nil
}
