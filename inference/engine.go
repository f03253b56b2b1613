// Package inference - Model loading and execution across inference runtimes.
package inference

import (
	"fmt"
	"path/filepath"
	"strings"

	"gorgonia.org/tensor"
)

// InputShape is the (batch, height, width, channels) shape every model input is forced to,
// whatever shape the artifact declares. Models exported with an unresolved batch
// dimension otherwise present a degenerate (1,1,1,3) input.
var InputShape = tensor.Shape{1, 224, 224, 3}

// ElementType is the element type of a model tensor.
type ElementType int

const (
	// ElementUnknown is an element type no backend supports.
	ElementUnknown ElementType = iota
	// ElementFloat32 is a 32-bit float tensor.
	ElementFloat32
	// ElementUint8 is an unsigned 8-bit integer tensor (quantized models).
	ElementUint8
	// ElementInt8 is a signed 8-bit integer tensor (quantized models).
	ElementInt8
)

// String returns the element type name.
func (e ElementType) String() string {
	switch e {
	case ElementFloat32:
		return "float32"
	case ElementUint8:
		return "uint8"
	case ElementInt8:
		return "int8"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the element type is floating-point.
func (e ElementType) IsFloat() bool {
	return e == ElementFloat32
}

// Dtype maps the element type onto the tensor package's dtype.
func (e ElementType) Dtype() tensor.Dtype {
	switch e {
	case ElementUint8:
		return tensor.Uint8
	case ElementInt8:
		return tensor.Int8
	default:
		return tensor.Float32
	}
}

// TensorInfo describes one input or output slot of a loaded model.
type TensorInfo struct {
	// Index of the slot in the model's input or output list.
	Index int `json:"index" yaml:"index"`
	// Name of the slot, when the runtime exposes one.
	Name string `json:"name" yaml:"name"`
	// Shape of the slot after allocation.
	Shape tensor.Shape `json:"shape" yaml:"shape"`
	// Type is the element type of the slot.
	Type ElementType `json:"type" yaml:"type"`
}

// String renders the descriptor for logs.
func (t TensorInfo) String() string {
	return fmt.Sprintf("#%d %s %v %s", t.Index, t.Name, []int(t.Shape), t.Type)
}

// Engine is a model opened in an inference runtime with its input already forced to
// InputShape and its buffers allocated.
type Engine interface {
	// Input describes the input slot.
	Input() TensorInfo
	// Output describes the output slot.
	Output() TensorInfo
	// Run binds input to the input slot, executes one forward pass and returns the output
	// vector as float32 scores.
	Run(input *tensor.Dense) ([]float32, error)
	// Close releases the runtime resources.
	Close() error
}

// Backend names an inference runtime.
type Backend string

const (
	// BackendTFLite runs .tflite models with TensorFlow Lite.
	BackendTFLite Backend = "tflite"
	// BackendONNX runs .onnx models with ONNX Runtime.
	BackendONNX Backend = "onnx"
	// BackendGraph runs YAML linear probes in-process with gorgonia.
	BackendGraph Backend = "graph"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendTFLite, BackendONNX, BackendGraph}

// BackendFor picks the backend for a model file from its extension. Unknown extensions
// fall back to TFLite, the format of the bundled model.
//
// Arguments:
//   - path: The model file path.
//
// Returns:
//   - Backend: The backend to open the file with.
func BackendFor(path string) Backend {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return BackendONNX
	case ".yaml", ".yml":
		return BackendGraph
	default:
		return BackendTFLite
	}
}

// shapeSize returns the number of elements of a shape.
func shapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
