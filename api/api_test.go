package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-freshness/classifier"
	"github.com/nvr-ai/go-freshness/controller"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/inference"
	"github.com/nvr-ai/go-freshness/models"
)

type stillCamera struct {
	open  bool
	frame *images.Frame
}

func (s *stillCamera) Open() error  { s.open = true; return nil }
func (s *stillCamera) Close() error { s.open = false; return nil }
func (s *stillCamera) IsOpen() bool { return s.open }

func (s *stillCamera) Capture(context.Context) (*images.Frame, error) {
	return s.frame, nil
}

// newServer wires a controller around the red/blue probe model.
func newServer(t *testing.T, withModel bool) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()

	var handle *inference.Handle
	if withModel {
		engine, err := inference.NewGraphEngine(inference.Probe{
			Weights: [][]float32{{4, -4}, {0, 0}, {-4, 4}},
			Bias:    []float32{0, 0},
		})
		require.NoError(t, err)
		handle = inference.NewHandle(engine, "probe.yaml")
		t.Cleanup(func() { _ = handle.Close() })
	}
	clf, err := classifier.New(handle, models.FreshnessLabels, logger)
	require.NoError(t, err)

	// BGR (255, 0, 0) is blue, which the probe reads as rotten.
	data := make([]byte, 64*48*images.Channels)
	for i := 0; i < len(data); i += images.Channels {
		data[i] = 255
	}
	frame, err := images.NewFrame(64, 48, data)
	require.NoError(t, err)

	ctrl := controller.New(&stillCamera{frame: frame}, clf, logger)
	server := httptest.NewServer(NewRouter(ctrl, logger))
	t.Cleanup(server.Close)
	return server
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	server := newServer(t, true)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	var body HealthResponse
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.ModelLoaded)
}

func TestRequestIDIsPropagated(t *testing.T) {
	server := newServer(t, true)
	id := uuid.New().String()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func TestCheckFlow(t *testing.T) {
	server := newServer(t, true)

	resp := post(t, server.URL+"/check")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var failure ErrorResponse
	decode(t, resp, &failure)
	assert.Equal(t, "Open the camera first.", failure.Error)
	assert.NotEmpty(t, failure.RequestID)

	resp = post(t, server.URL+"/camera/toggle")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap controller.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, "streaming_ready", snap.State)
	assert.Equal(t, controller.CaptionStop, snap.Caption)
	assert.True(t, snap.CheckEnabled)

	resp = post(t, server.URL+"/check")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result ResultResponse
	decode(t, resp, &result)
	assert.Equal(t, "Rotten", result.Result.Label)
	assert.Contains(t, result.Status, "Result: Rotten")

	metrics, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	var stages MetricsResponse
	decode(t, metrics, &stages)
	assert.Equal(t, int64(1), stages.Stages[classifier.StageInference].Count)

	resp = post(t, server.URL+"/camera/toggle")
	decode(t, resp, &snap)
	assert.Equal(t, "idle", snap.State)
	assert.False(t, snap.CheckEnabled)
}

func TestCheckWithoutModel(t *testing.T) {
	server := newServer(t, false)

	resp := post(t, server.URL+"/camera/toggle")
	resp.Body.Close()

	resp = post(t, server.URL+"/check")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var failure ErrorResponse
	decode(t, resp, &failure)
	assert.Equal(t, "inference unavailable", failure.Error)
}

func upload(t *testing.T, url string, field string, payload []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "apple.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url, writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestClassifyUpload(t *testing.T) {
	server := newServer(t, true)

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 20, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	resp := upload(t, server.URL+"/classify", "image", buf.Bytes())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result ResultResponse
	decode(t, resp, &result)
	assert.Equal(t, "Fresh", result.Result.Label)
	assert.Greater(t, result.Result.Confidence, 50.0)
}

func TestClassifyRejectsBadUploads(t *testing.T) {
	server := newServer(t, true)

	resp := upload(t, server.URL+"/classify", "image", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = upload(t, server.URL+"/classify", "file", []byte("whatever"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestClassifyRejectsOversizedImage(t *testing.T) {
	server := newServer(t, true)

	// A 1x1 PNG whose header declares 8000x8000 pixels.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[16:20], 8000)
	binary.BigEndian.PutUint32(data[20:24], 8000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	resp := upload(t, server.URL+"/classify", "image", data)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var failure ErrorResponse
	decode(t, resp, &failure)
	assert.Contains(t, failure.Error, "image too large")
}

func TestMethodNotAllowed(t *testing.T) {
	server := newServer(t, true)

	resp, err := http.Get(server.URL + "/check")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
