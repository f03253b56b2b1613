package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"
)

// Options configures Load.
type Options struct {
	// Backend forces a runtime. Empty selects one from the file extension.
	Backend Backend
	// Threads is the interpreter thread count (0 lets the runtime decide).
	Threads int
	// SharedLibrary is the ONNX Runtime shared library path.
	SharedLibrary string
	// Provider is the ONNX Runtime execution provider. Empty runs on CPU.
	Provider Provider
	// DeviceID is the accelerator used by the execution provider.
	DeviceID int
	// DeviceType is the OpenVINO target device. Empty means "CPU".
	DeviceType string
	// Classes, when positive, is the output vector length the model must produce.
	Classes int
}

// opener opens a model file in one runtime.
type opener func(path string, opts Options) (Engine, error)

var openers = map[Backend]opener{
	BackendTFLite: openTFLite,
	BackendONNX:   openONNX,
	BackendGraph:  openGraph,
}

// Handle is a loaded model together with its cached input/output descriptors. It is
// created once at startup and closed at shutdown.
type Handle struct {
	mu      sync.Mutex
	engine  Engine
	path    string
	backend Backend
	input   TensorInfo
	output  TensorInfo
}

// Load opens a model file and forces its input to InputShape.
//
// A missing file is logged as a warning and the open is attempted anyway, leaving the
// runtime to report the failure.
//
// Arguments:
//   - path: The model file.
//   - opts: Backend selection and runtime options.
//   - logger: Receives load diagnostics.
//
// Returns:
//   - *Handle: The loaded model.
//   - error: An error if the runtime cannot open, resize or allocate the model, or if the
//     output length does not match opts.Classes.
func Load(path string, opts Options, logger logrus.FieldLogger) (*Handle, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFor(path)
	}
	log := logger.WithFields(logrus.Fields{"model": path, "backend": backend})

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn("model file not found, attempting to open it anyway")
	}

	open, ok := openers[backend]
	if !ok {
		return nil, errors.Errorf("unsupported inference backend %q", backend)
	}

	engine, err := open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s model %s", backend, path)
	}

	handle := &Handle{
		engine:  engine,
		path:    path,
		backend: backend,
		input:   engine.Input(),
		output:  engine.Output(),
	}

	if !handle.input.Shape.Eq(InputShape) {
		_ = engine.Close()
		return nil, errors.Errorf("model input shape %v, want %v", []int(handle.input.Shape), []int(InputShape))
	}
	if handle.input.Type == ElementUnknown {
		_ = engine.Close()
		return nil, errors.New("model input element type is not supported")
	}
	if n := shapeSize(handle.output.Shape); opts.Classes > 0 && n != opts.Classes {
		_ = engine.Close()
		return nil, errors.Errorf("model produces %d scores, label table has %d entries", n, opts.Classes)
	}

	log.WithFields(logrus.Fields{
		"input":  handle.input.String(),
		"output": handle.output.String(),
	}).Info("model loaded")

	return handle, nil
}

// Input returns the cached input descriptor.
func (h *Handle) Input() TensorInfo {
	return h.input
}

// Output returns the cached output descriptor.
func (h *Handle) Output() TensorInfo {
	return h.output
}

// Path returns the model file the handle was loaded from.
func (h *Handle) Path() string {
	return h.path
}

// Backend returns the runtime the model runs in.
func (h *Handle) Backend() Backend {
	return h.backend
}

// Run executes one forward pass.
//
// Arguments:
//   - input: A tensor of the input slot's shape and element type.
//
// Returns:
//   - []float32: The output vector.
//   - error: An error if the tensor does not match the input slot or the runtime fails.
func (h *Handle) Run(input *tensor.Dense) ([]float32, error) {
	if input == nil {
		return nil, errors.New("nil input tensor")
	}
	if !input.Shape().Eq(h.input.Shape) {
		return nil, errors.Errorf("input tensor shape %v, model expects %v", []int(input.Shape()), []int(h.input.Shape))
	}
	if input.Dtype() != h.input.Type.Dtype() {
		return nil, errors.Errorf("input tensor type %v, model expects %v", input.Dtype(), h.input.Type)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return nil, errors.New("model handle is closed")
	}
	scores, err := h.engine.Run(input)
	if err != nil {
		return nil, errors.Wrap(err, "run model")
	}
	return scores, nil
}

// Close releases the runtime. It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	return errors.Wrap(err, "close model")
}

// NewHandle wraps an already opened engine. It is used by callers that manage their own
// runtime, such as tests substituting a fake engine.
//
// Arguments:
//   - engine: The opened engine.
//   - path: The model path reported by the handle.
//
// Returns:
//   - *Handle: The handle.
func NewHandle(engine Engine, path string) *Handle {
	return &Handle{
		engine:  engine,
		path:    path,
		backend: BackendFor(path),
		input:   engine.Input(),
		output:  engine.Output(),
	}
}
