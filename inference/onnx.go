package inference

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// onnxEngine runs a model with ONNX Runtime through a dynamic session, so the input
// tensor can be bound at the forced shape whatever the model declares for its batch
// dimension.
type onnxEngine struct {
	session *ort.DynamicAdvancedSession
	scores  *ort.Tensor[float32]
	input   TensorInfo
	output  TensorInfo
}

// SharedLibPath returns the default ONNX Runtime shared library for the current platform.
//
// Returns:
//   - string: The path to the shared library.
func SharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

// openONNX loads a .onnx model and binds a (1,224,224,3) input.
//
// Order of operations:
//  1. Environment setup, once per process.
//  2. Input/output metadata, read from the model file.
//  3. Shape check: every declared input dimension must be dynamic or equal InputShape.
//  4. Output buffer allocation, with a dynamic batch resolved to 1.
//  5. Session options: threads, graph optimization and execution provider.
//  6. Session creation.
//
// Arguments:
//   - path: The model file.
//   - opts: Shared library path, thread count and execution provider.
//
// Returns:
//   - Engine: The opened engine.
//   - error: An error if any step fails.
func openONNX(path string, opts Options) (Engine, error) {
	if !ort.IsInitialized() {
		lib := opts.SharedLibrary
		if lib == "" {
			lib = SharedLibPath()
		}
		ort.SetSharedLibraryPath(lib)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrapf(err, "initialize onnxruntime from %s", lib)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model inputs and outputs")
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("onnx model has no input or output")
	}

	in, out := inputs[0], outputs[0]
	inType := elementTypeFromONNX(in.DataType)
	if inType == ElementUnknown {
		return nil, errors.Errorf("unsupported onnx input type %v", in.DataType)
	}
	if elementTypeFromONNX(out.DataType) != ElementFloat32 {
		return nil, errors.Errorf("unsupported onnx output type %v, want float32", out.DataType)
	}
	if err := compatibleShape(in.Dimensions); err != nil {
		return nil, err
	}

	outShape := make(ort.Shape, len(out.Dimensions))
	for i, d := range out.Dimensions {
		switch {
		case d > 0:
			outShape[i] = d
		case i == 0:
			outShape[i] = 1
		default:
			return nil, errors.Errorf("onnx output dimension %d is dynamic", i)
		}
	}
	scores, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, errors.Wrap(err, "allocate output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		scores.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()
	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			scores.Destroy()
			return nil, errors.Wrap(err, "set intra-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		scores.Destroy()
		return nil, errors.Wrap(err, "set graph optimization level")
	}
	if err := applyProvider(options, opts); err != nil {
		scores.Destroy()
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, options)
	if err != nil {
		scores.Destroy()
		return nil, errors.Wrap(err, "create onnx session")
	}

	outDims := make(tensor.Shape, len(outShape))
	for i, d := range outShape {
		outDims[i] = int(d)
	}

	return &onnxEngine{
		session: session,
		scores:  scores,
		input: TensorInfo{
			Index: 0,
			Name:  in.Name,
			Shape: InputShape.Clone(),
			Type:  inType,
		},
		output: TensorInfo{
			Index: 0,
			Name:  out.Name,
			Shape: outDims,
			Type:  ElementFloat32,
		},
	}, nil
}

func elementTypeFromONNX(t ort.TensorElementDataType) ElementType {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return ElementFloat32
	case ort.TensorElementDataTypeUint8:
		return ElementUint8
	case ort.TensorElementDataTypeInt8:
		return ElementInt8
	default:
		return ElementUnknown
	}
}

// compatibleShape checks a declared input shape against InputShape. Dynamic dimensions
// (zero or negative) are accepted.
func compatibleShape(declared ort.Shape) error {
	if len(declared) != len(InputShape) {
		return errors.Errorf("onnx input has %d dimensions, want %d", len(declared), len(InputShape))
	}
	for i, d := range declared {
		if d > 0 && int(d) != InputShape[i] {
			return errors.Errorf("onnx input shape %v cannot be forced to %v", declared, []int(InputShape))
		}
	}
	return nil
}

func (e *onnxEngine) Input() TensorInfo {
	return e.input
}

func (e *onnxEngine) Output() TensorInfo {
	return e.output
}

func (e *onnxEngine) Run(input *tensor.Dense) ([]float32, error) {
	dims := make([]int64, len(e.input.Shape))
	for i, d := range e.input.Shape {
		dims[i] = int64(d)
	}
	shape := ort.NewShape(dims...)

	var (
		value ort.Value
		err   error
	)
	switch data := input.Data().(type) {
	case []float32:
		value, err = ort.NewTensor(shape, data)
	case []uint8:
		value, err = ort.NewTensor(shape, data)
	case []int8:
		value, err = ort.NewTensor(shape, data)
	default:
		return nil, errors.Errorf("unsupported input backing %T", data)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	defer value.Destroy()

	if err := e.session.Run([]ort.Value{value}, []ort.Value{e.scores}); err != nil {
		return nil, errors.Wrap(err, "run onnx session")
	}

	out := e.scores.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (e *onnxEngine) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.scores != nil {
		e.scores.Destroy()
		e.scores = nil
	}
	return err
}
