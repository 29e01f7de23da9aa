package visual

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"jamesfarrell.me/vidextract/internal/onnx"
)

// DefaultConfidence is the score at which YOLOv8 itself reports a box.
const DefaultConfidence = 0.25

// YOLO detects objects with an Ultralytics YOLOv8 ONNX export.
type YOLO struct {
	model      *onnx.Model
	names      []string
	size       int
	confidence float32
	logger     zerolog.Logger
}

func NewYOLO(logger zerolog.Logger, modelPath, namesPath string, confidence float32, useCUDA bool) (*YOLO, error) {
	names, err := LoadClassNames(namesPath)
	if err != nil {
		return nil, err
	}

	model, err := onnx.Load(logger, modelPath, useCUDA)
	if err != nil {
		return nil, err
	}

	size := 640
	if s := model.InputShape; len(s) == 4 && s[3] > 0 {
		size = int(s[3])
	}
	if confidence <= 0 {
		confidence = DefaultConfidence
	}

	return &YOLO{
		model:      model,
		names:      names,
		size:       size,
		confidence: confidence,
		logger:     logger.With().Str("detector", "yolo").Logger(),
	}, nil
}

// Detect runs one forward pass and returns distinct class names, highest
// confidence first.
func (y *YOLO) Detect(ctx context.Context, frame image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := preprocess(frame, y.size)
	out, shape, err := y.model.RunFloat32(ort.NewShape(1, 3, int64(y.size), int64(y.size)), input)
	if err != nil {
		return nil, err
	}

	return decodeDetections(out, shape, y.confidence, y.names)
}

func (y *YOLO) Close() error {
	return y.model.Close()
}

// preprocess resizes to size x size and lays out RGB planes scaled to 0..1.
func preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()

	plane := size * size
	data := make([]float32, 3*plane)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
			idx++
		}
	}
	return data
}

// decodeDetections reads a [1, 4+C, N] (or transposed [1, N, 4+C]) YOLOv8
// output. An anchor predicts its best class when that score reaches minScore.
func decodeDetections(data []float32, shape ort.Shape, minScore float32, names []string) ([]string, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	rows, cols := int(shape[1]), int(shape[2])
	transposed := rows > cols
	attrs, anchors := rows, cols
	if transposed {
		attrs, anchors = cols, rows
	}
	if attrs <= 4 || len(data) != attrs*anchors {
		return nil, fmt.Errorf("unexpected output shape %v for %d values", shape, len(data))
	}

	at := func(attr, anchor int) float32 {
		if transposed {
			return data[anchor*attrs+attr]
		}
		return data[attr*anchors+anchor]
	}

	best := map[int]float32{}
	for a := 0; a < anchors; a++ {
		cls, score := -1, float32(0)
		for k := 0; k < attrs-4; k++ {
			if s := at(4+k, a); s > score {
				cls, score = k, s
			}
		}
		if cls < 0 || score < minScore {
			continue
		}
		if score > best[cls] {
			best[cls] = score
		}
	}

	classes := make([]int, 0, len(best))
	for c := range best {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if best[classes[i]] != best[classes[j]] {
			return best[classes[i]] > best[classes[j]]
		}
		return classes[i] < classes[j]
	})

	labels := make([]string, 0, len(classes))
	for _, c := range classes {
		labels = append(labels, className(names, c))
	}
	return labels, nil
}

func className(names []string, c int) string {
	if c < len(names) {
		return names[c]
	}
	return fmt.Sprintf("class_%d", c)
}

// LoadClassNames reads one class name per line.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class names: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no class names in %s", path)
	}
	return names, nil
}
