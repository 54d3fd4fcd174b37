package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Prediction is the winning class of one forward pass.
type Prediction struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type Options struct {
	ModelPath         string
	LabelsPath        string
	ONNXSharedLibPath string
}

// Classifier wraps a single ONNX session loaded at construction time.
// Run is serialized because the bound input/output tensors are shared.
type Classifier struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	labels      Labels
	layout      Layout
	outputWidth int
}

// NewClassifier loads the ONNX runtime, the label table and the model.
// Any failure here is meant to stop the process.
func NewClassifier(opts Options) (*Classifier, error) {
	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	if opts.ONNXSharedLibPath != "" {
		ort.SetSharedLibraryPath(opts.ONNXSharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no inputs or outputs")
	}

	layout := LayoutForShape(inputs[0].Dimensions)
	inputShape, err := normalizeInputShape(inputs[0].Dimensions, layout)
	if err != nil {
		return nil, err
	}
	outputShape := normalizeOutputShape(outputs[0].Dimensions)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		_ = outputTensor.Destroy()
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	return &Classifier{
		session:     session,
		input:       inputTensor,
		output:      outputTensor,
		labels:      labels,
		layout:      layout,
		outputWidth: int(outputShape[len(outputShape)-1]),
	}, nil
}

// Labels returns the label table in use.
func (c *Classifier) Labels() Labels {
	return c.labels
}

// OutputWidth is the number of scores the model emits per image.
func (c *Classifier) OutputWidth() int {
	return c.outputWidth
}

// PredictFile decodes the image at path and classifies it.
func (c *Classifier) PredictFile(ctx context.Context, path string) (Prediction, error) {
	img, err := decodeFile(path)
	if err != nil {
		return Prediction{}, err
	}
	return c.Predict(ctx, img)
}

func (c *Classifier) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	data := Preprocess(img, c.layout)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	in := c.input.GetData()
	if len(in) != len(data) {
		return Prediction{}, fmt.Errorf("input tensor size %d != preprocessed %d", len(in), len(data))
	}
	copy(in, data)
	if err := c.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("onnx run: %w", err)
	}

	// only the first batch row is meaningful
	scores := c.output.GetData()
	if len(scores) > c.outputWidth {
		scores = scores[:c.outputWidth]
	}
	return predictionFromScores(scores, c.labels), nil
}

func (c *Classifier) Close() error {
	var closeErr error
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			closeErr = err
		}
	}
	if c.input != nil {
		if err := c.input.Destroy(); err != nil {
			closeErr = err
		}
	}
	if c.output != nil {
		if err := c.output.Destroy(); err != nil {
			closeErr = err
		}
	}
	if err := ort.DestroyEnvironment(); err != nil {
		closeErr = err
	}
	return closeErr
}

func predictionFromScores(scores []float32, labels Labels) Prediction {
	idx := Argmax(scores)
	if idx < 0 {
		return Prediction{Index: -1, Label: UnknownLabel}
	}
	return Prediction{
		Index: idx,
		Label: labels.Lookup(idx),
		Score: scores[idx],
	}
}

// normalizeInputShape fills dynamic (non-positive) dimensions: batch
// becomes 1, spatial dims become 224, channels become 3.
func normalizeInputShape(shape []int64, layout Layout) ([]int64, error) {
	if len(shape) != 4 {
		return nil, fmt.Errorf("model input must be 4-d, got %v", shape)
	}
	fixed := [4]int64{1, height, width, 3}
	if layout == NCHW {
		fixed = [4]int64{1, 3, height, width}
	}
	out := make([]int64, 4)
	for i, d := range shape {
		if d <= 0 || i == 0 {
			d = fixed[i]
		}
		if d != fixed[i] {
			return nil, fmt.Errorf("model input shape %v is not compatible with %v", shape, fixed)
		}
		out[i] = d
	}
	return out, nil
}

func normalizeOutputShape(shape []int64) []int64 {
	if len(shape) == 0 {
		return []int64{1}
	}
	out := make([]int64, len(shape))
	for i, d := range shape {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}
