package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"
)

// redProbe favours "Fresh" for red-dominant frames and "Rotten" for blue-dominant ones.
var redProbe = Probe{
	Labels: []string{"Fresh", "Rotten"},
	Weights: [][]float32{
		{4, -4},
		{0, 0},
		{-4, 4},
	},
	Bias: []float32{0, 0},
}

// solidInput builds a float input where every pixel has the given RGB values.
func solidInput(r, g, b float32) *tensor.Dense {
	data := make([]float32, InputShape.TotalSize())
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = r, g, b
	}
	return tensor.New(tensor.WithShape(InputShape...), tensor.WithBacking(data))
}

func writeProbe(t *testing.T, probe Probe) string {
	t.Helper()
	data, err := yaml.Marshal(probe)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBackendFor(t *testing.T) {
	assert.Equal(t, BackendTFLite, BackendFor("food_model.tflite"))
	assert.Equal(t, BackendONNX, BackendFor("models/food_model.ONNX"))
	assert.Equal(t, BackendGraph, BackendFor("probe.yml"))
	assert.Equal(t, BackendTFLite, BackendFor("food_model"))
}

func TestElementType(t *testing.T) {
	assert.True(t, ElementFloat32.IsFloat())
	assert.False(t, ElementUint8.IsFloat())
	assert.Equal(t, tensor.Float32, ElementFloat32.Dtype())
	assert.Equal(t, tensor.Uint8, ElementUint8.Dtype())
	assert.Equal(t, tensor.Int8, ElementInt8.Dtype())
	assert.Equal(t, "int8", ElementInt8.String())
	assert.Equal(t, "unknown", ElementUnknown.String())
}

func TestDequantize(t *testing.T) {
	assert.InDelta(t, 1.0, dequantize(255, 0, 0, 255), 1e-6)
	assert.InDelta(t, 0.5, dequantize(128, 1.0/256, 0, 255), 1e-6)
	assert.InDelta(t, 0.0, dequantize(10, 0.1, 10, 255), 1e-6)
}

func TestOpenVINOOptions(t *testing.T) {
	assert.Equal(t, map[string]string{"device_type": "CPU", "device_id": "0"}, openVINOOptions("", 0))
	assert.Equal(t, map[string]string{"device_type": "GPU", "device_id": "1"}, openVINOOptions("gpu", 1))
	assert.Equal(t, "NPU", openVINOOptions("NPU", 0)["device_type"])
}

func TestCompatibleShape(t *testing.T) {
	assert.NoError(t, compatibleShape(ort.NewShape(-1, 224, 224, 3)))
	assert.NoError(t, compatibleShape(ort.NewShape(1, 224, 224, 3)))
	assert.NoError(t, compatibleShape(ort.NewShape(-1, -1, -1, 3)))
	assert.Error(t, compatibleShape(ort.NewShape(1, 3, 224, 224)))
	assert.Error(t, compatibleShape(ort.NewShape(1, 224, 224)))
}

func TestGraphEngine(t *testing.T) {
	engine, err := NewGraphEngine(redProbe)
	require.NoError(t, err)
	defer engine.Close()

	assert.True(t, engine.Input().Shape.Eq(InputShape))
	assert.Equal(t, ElementFloat32, engine.Input().Type)
	assert.Equal(t, tensor.Shape{1, 2}, engine.Output().Shape)

	scores, err := engine.Run(solidInput(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores[0]+scores[1], 1e-5)
	assert.Greater(t, scores[0], scores[1])

	// The machine is reset between runs.
	scores, err = engine.Run(solidInput(0, 0, 1))
	require.NoError(t, err)
	assert.Greater(t, scores[1], scores[0])
}

func TestProbeValidate(t *testing.T) {
	assert.NoError(t, redProbe.Validate())
	assert.Error(t, Probe{}.Validate())
	assert.Error(t, Probe{Weights: [][]float32{{1}}, Bias: []float32{0}}.Validate())
	assert.Error(t, Probe{Weights: [][]float32{{1, 2}, {1}, {1, 2}}, Bias: []float32{0, 0}}.Validate())
}

func TestLoadGraphModel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := writeProbe(t, redProbe)

	handle, err := Load(path, Options{Classes: 2}, logger)
	require.NoError(t, err)
	defer handle.Close()

	assert.Equal(t, BackendGraph, handle.Backend())
	assert.Equal(t, path, handle.Path())
	assert.Equal(t, "model loaded", hook.LastEntry().Message)

	scores, err := handle.Run(solidInput(0.9, 0.2, 0.1))
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestLoadRejectsLabelMismatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := writeProbe(t, redProbe)

	_, err := Load(path, Options{Classes: 3}, logger)
	assert.Error(t, err)
}

func TestLoadMissingFileWarnsThenFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "missing.yaml")

	handle, err := Load(path, Options{}, logger)
	assert.Error(t, err)
	assert.Nil(t, handle)

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}

func TestLoadUnknownBackend(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Load("model.bin", Options{Backend: "caffe"}, logger)
	assert.Error(t, err)
}

// stubEngine reports a fixed input descriptor.
type stubEngine struct {
	input  TensorInfo
	output TensorInfo
	closed bool
}

func (s *stubEngine) Input() TensorInfo                    { return s.input }
func (s *stubEngine) Output() TensorInfo                   { return s.output }
func (s *stubEngine) Run(*tensor.Dense) ([]float32, error) { return nil, errors.New("not runnable") }
func (s *stubEngine) Close() error                         { s.closed = true; return nil }

func TestLoadRejectsUnforcedShape(t *testing.T) {
	stub := &stubEngine{
		input:  TensorInfo{Shape: tensor.Shape{1, 1, 1, 3}, Type: ElementFloat32},
		output: TensorInfo{Shape: tensor.Shape{1, 2}, Type: ElementFloat32},
	}
	openers["stub"] = func(string, Options) (Engine, error) { return stub, nil }
	defer delete(openers, "stub")

	logger, _ := test.NewNullLogger()
	_, err := Load("model.stub", Options{Backend: "stub"}, logger)
	assert.Error(t, err)
	assert.True(t, stub.closed)
}

func TestHandleRunValidatesInput(t *testing.T) {
	engine, err := NewGraphEngine(redProbe)
	require.NoError(t, err)
	handle := NewHandle(engine, "probe.yaml")

	_, err = handle.Run(nil)
	assert.Error(t, err)

	wrongShape := tensor.New(tensor.WithShape(1, 2, 2, 3), tensor.Of(tensor.Float32))
	_, err = handle.Run(wrongShape)
	assert.Error(t, err)

	wrongType := tensor.New(tensor.WithShape(InputShape...), tensor.Of(tensor.Uint8))
	_, err = handle.Run(wrongType)
	assert.Error(t, err)

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())

	_, err = handle.Run(solidInput(1, 1, 1))
	assert.Error(t, err)
}
