//go:build !notflite

package inference

import (
	"strings"

	"github.com/mattn/go-tflite"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// tfliteEngine runs a model with the TensorFlow Lite C API.
type tfliteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	input       TensorInfo
	output      TensorInfo
	reported    []string
}

// openTFLite loads a .tflite model, resizes input 0 to InputShape and allocates tensors.
//
// Arguments:
//   - path: The model file.
//   - opts: Thread count.
//
// Returns:
//   - Engine: The opened engine.
//   - error: An error if any interpreter step fails.
func openTFLite(path string, opts Options) (Engine, error) {
	e := &tfliteEngine{}

	e.model = tflite.NewModelFromFile(path)
	if e.model == nil {
		return nil, errors.Errorf("cannot read tflite model %s", path)
	}

	e.options = tflite.NewInterpreterOptions()
	if opts.Threads > 0 {
		e.options.SetNumThread(opts.Threads)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		e.reported = append(e.reported, msg)
	}, nil)

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, errors.New("cannot create tflite interpreter")
	}

	if e.interpreter.GetInputTensorCount() < 1 || e.interpreter.GetOutputTensorCount() < 1 {
		e.Close()
		return nil, errors.New("tflite model has no input or output tensor")
	}

	dims := make([]int32, len(InputShape))
	for i, d := range InputShape {
		dims[i] = int32(d)
	}
	if status := e.interpreter.ResizeInputTensor(0, dims); status != tflite.OK {
		e.Close()
		return nil, e.fail("resize input tensor")
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, e.fail("allocate tensors")
	}

	in := e.interpreter.GetInputTensor(0)
	e.input = TensorInfo{
		Index: 0,
		Name:  in.Name(),
		Shape: tensor.Shape(in.Shape()),
		Type:  elementTypeFromTFLite(in.Type()),
	}

	out := e.interpreter.GetOutputTensor(0)
	e.output = TensorInfo{
		Index: 0,
		Name:  out.Name(),
		Shape: tensor.Shape(out.Shape()),
		Type:  elementTypeFromTFLite(out.Type()),
	}
	if e.output.Type == ElementUnknown {
		e.Close()
		return nil, errors.Errorf("unsupported tflite output type %v", out.Type())
	}

	return e, nil
}

func elementTypeFromTFLite(t tflite.TensorType) ElementType {
	switch t {
	case tflite.Float32:
		return ElementFloat32
	case tflite.UInt8:
		return ElementUint8
	case tflite.Int8:
		return ElementInt8
	default:
		return ElementUnknown
	}
}

// fail builds an error carrying whatever the interpreter reported.
func (e *tfliteEngine) fail(step string) error {
	if len(e.reported) == 0 {
		return errors.Errorf("tflite: %s failed", step)
	}
	msg := strings.Join(e.reported, "; ")
	e.reported = nil
	return errors.Errorf("tflite: %s failed: %s", step, msg)
}

func (e *tfliteEngine) Input() TensorInfo {
	return e.input
}

func (e *tfliteEngine) Output() TensorInfo {
	return e.output
}

func (e *tfliteEngine) Run(input *tensor.Dense) ([]float32, error) {
	in := e.interpreter.GetInputTensor(0)
	if status := in.CopyFromBuffer(input.Data()); status != tflite.OK {
		return nil, e.fail("copy input")
	}
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, e.fail("invoke")
	}

	out := e.interpreter.GetOutputTensor(0)
	n := shapeSize(e.output.Shape)
	scores := make([]float32, n)

	switch e.output.Type {
	case ElementFloat32:
		if status := out.CopyToBuffer(scores); status != tflite.OK {
			return nil, e.fail("copy output")
		}
	case ElementUint8:
		raw := make([]uint8, n)
		if status := out.CopyToBuffer(raw); status != tflite.OK {
			return nil, e.fail("copy output")
		}
		q := out.QuantizationParams()
		for i, v := range raw {
			scores[i] = dequantize(float64(v), q.Scale, q.ZeroPoint, 255)
		}
	case ElementInt8:
		raw := make([]int8, n)
		if status := out.CopyToBuffer(raw); status != tflite.OK {
			return nil, e.fail("copy output")
		}
		q := out.QuantizationParams()
		for i, v := range raw {
			scores[i] = dequantize(float64(v)+128, q.Scale, q.ZeroPoint+128, 255)
		}
	}

	return scores, nil
}

func (e *tfliteEngine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
