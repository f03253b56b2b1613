package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-freshness/classifier"
	"github.com/nvr-ai/go-freshness/controller"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/inference"
	"github.com/nvr-ai/go-freshness/models"
)

type fixedEngine struct{ scores []float32 }

func (f fixedEngine) Input() inference.TensorInfo {
	return inference.TensorInfo{Shape: inference.InputShape.Clone(), Type: inference.ElementUint8}
}

func (f fixedEngine) Output() inference.TensorInfo {
	return inference.TensorInfo{Shape: tensor.Shape{1, len(f.scores)}, Type: inference.ElementFloat32}
}

func (f fixedEngine) Run(*tensor.Dense) ([]float32, error) { return f.scores, nil }
func (f fixedEngine) Close() error                         { return nil }

type memCamera struct{ open bool }

func (m *memCamera) Open() error  { m.open = true; return nil }
func (m *memCamera) Close() error { m.open = false; return nil }
func (m *memCamera) IsOpen() bool { return m.open }

func (m *memCamera) Capture(context.Context) (*images.Frame, error) {
	return images.NewFrame(4, 4, make([]byte, 4*4*images.Channels))
}

func newConsole(t *testing.T, input string) (*Console, *bytes.Buffer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	handle := inference.NewHandle(fixedEngine{scores: []float32{0.95, 0.05}}, "food_model.tflite")
	clf, err := classifier.New(handle, models.FreshnessLabels, logger)
	require.NoError(t, err)

	var out bytes.Buffer
	ctrl := controller.New(&memCamera{}, clf, logger)
	return New(ctrl, strings.NewReader(input), &out), &out
}

func TestRunSession(t *testing.T) {
	c, out := newConsole(t, "check\nopen\ncheck\nstatus\nopen\nquit\nopen\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "[Open] [Check: disabled] "+controller.StatusWelcome)
	assert.Contains(t, text, "error: Open the camera first.")
	assert.Contains(t, text, "[Stop] [Check: enabled] "+controller.StatusStreaming)
	assert.Contains(t, text, "[Stop] [Check: enabled] Result: Fresh (95.0%)")
	assert.Contains(t, text, "[Open] [Check: disabled] "+controller.StatusStopped)

	// Nothing after quit is executed.
	assert.Equal(t, 3, strings.Count(text, "[Stop]"))
	assert.Equal(t, 1, strings.Count(text, controller.StatusStopped))
}

func TestRunEndsAtEOF(t *testing.T) {
	c, out := newConsole(t, "help\nbogus\n")

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "capture and classify one frame")
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestExecuteQuit(t *testing.T) {
	c, _ := newConsole(t, "")
	assert.True(t, c.Execute(context.Background(), " QUIT "))
	assert.False(t, c.Execute(context.Background(), ""))
}
