package inference

import (
	"os"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Probe is a linear classifier over per-channel mean intensities, stored as YAML. It runs
// in-process on hosts without a native runtime.
//
//	labels: [Fresh, Rotten]
//	weights:      # one row per input channel (R, G, B), one column per class
//	  - [ 2.0, -2.0]
//	  - [ 1.5, -1.5]
//	  - [-1.0,  1.0]
//	bias: [0.0, 0.0]
type Probe struct {
	// Labels is informational; class order is the order of the weight columns.
	Labels  []string    `json:"labels,omitempty" yaml:"labels,omitempty"`
	Weights [][]float32 `json:"weights" yaml:"weights"`
	Bias    []float32   `json:"bias" yaml:"bias"`
}

// Validate checks the probe dimensions against the input channel count.
func (p Probe) Validate() error {
	channels := InputShape[3]
	classes := len(p.Bias)
	if classes == 0 {
		return errors.New("probe has no classes")
	}
	if len(p.Weights) != channels {
		return errors.Errorf("probe has %d weight rows, want %d", len(p.Weights), channels)
	}
	for i, row := range p.Weights {
		if len(row) != classes {
			return errors.Errorf("probe weight row %d has %d columns, want %d", i, len(row), classes)
		}
		for _, w := range row {
			if math32.IsNaN(w) || math32.IsInf(w, 0) {
				return errors.Errorf("probe weight row %d is not finite", i)
			}
		}
	}
	for _, b := range p.Bias {
		if math32.IsNaN(b) || math32.IsInf(b, 0) {
			return errors.New("probe bias is not finite")
		}
	}
	return nil
}

// graphEngine evaluates softmax(mean_pool(x) · W + b) with a gorgonia tape machine.
type graphEngine struct {
	graph  *G.ExprGraph
	x      *G.Node
	prob   *G.Node
	vm     G.VM
	input  TensorInfo
	output TensorInfo
}

func openGraph(path string, _ Options) (Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read probe %s", path)
	}
	var probe Probe
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrapf(err, "parse probe %s", path)
	}
	return NewGraphEngine(probe)
}

// NewGraphEngine compiles a probe into an Engine.
//
// Arguments:
//   - probe: The probe weights.
//
// Returns:
//   - Engine: The compiled engine, taking float32 input of InputShape.
//   - error: An error if the probe is invalid or the graph cannot be built.
func NewGraphEngine(probe Probe) (Engine, error) {
	if err := probe.Validate(); err != nil {
		return nil, err
	}

	channels := InputShape[3]
	classes := len(probe.Bias)

	wBacking := make([]float32, 0, channels*classes)
	for _, row := range probe.Weights {
		wBacking = append(wBacking, row...)
	}
	bBacking := make([]float32, classes)
	copy(bBacking, probe.Bias)

	g := G.NewGraph()
	x := G.NewTensor(g, tensor.Float32, len(InputShape), G.WithShape(InputShape...), G.WithName("x"))
	w := G.NewMatrix(g, tensor.Float32, G.WithShape(channels, classes), G.WithName("w"),
		G.WithValue(tensor.New(tensor.WithShape(channels, classes), tensor.WithBacking(wBacking))))
	b := G.NewMatrix(g, tensor.Float32, G.WithShape(1, classes), G.WithName("b"),
		G.WithValue(tensor.New(tensor.WithShape(1, classes), tensor.WithBacking(bBacking))))

	pixels, err := G.Reshape(x, tensor.Shape{InputShape[1] * InputShape[2], channels})
	if err != nil {
		return nil, errors.Wrap(err, "reshape input")
	}
	pooled, err := G.Mean(pixels, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mean pool")
	}
	row, err := G.Reshape(pooled, tensor.Shape{1, channels})
	if err != nil {
		return nil, errors.Wrap(err, "reshape pooled")
	}
	logits, err := G.Mul(row, w)
	if err != nil {
		return nil, errors.Wrap(err, "dense")
	}
	if logits, err = G.Add(logits, b); err != nil {
		return nil, errors.Wrap(err, "bias")
	}
	prob, err := G.SoftMax(logits)
	if err != nil {
		return nil, errors.Wrap(err, "softmax")
	}

	return &graphEngine{
		graph: g,
		x:     x,
		prob:  prob,
		vm:    G.NewTapeMachine(g),
		input: TensorInfo{
			Index: 0,
			Name:  "x",
			Shape: InputShape.Clone(),
			Type:  ElementFloat32,
		},
		output: TensorInfo{
			Index: 0,
			Name:  "prob",
			Shape: tensor.Shape{1, classes},
			Type:  ElementFloat32,
		},
	}, nil
}

func (e *graphEngine) Input() TensorInfo {
	return e.input
}

func (e *graphEngine) Output() TensorInfo {
	return e.output
}

func (e *graphEngine) Run(input *tensor.Dense) ([]float32, error) {
	if err := G.Let(e.x, input); err != nil {
		return nil, errors.Wrap(err, "bind input")
	}
	defer e.vm.Reset()

	if err := e.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "run graph")
	}

	data, ok := e.prob.Value().Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected graph output %T", e.prob.Value().Data())
	}
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (e *graphEngine) Close() error {
	if e.vm == nil {
		return nil
	}
	err := e.vm.Close()
	e.vm = nil
	return err
}
