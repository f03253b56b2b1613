// Package config - Application configuration for the freshness checker.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultModelPath is the model artifact looked up in the working directory.
	DefaultModelPath = "food_model.tflite"
	// DefaultSnapshotPath is the snapshot file overwritten on every capture.
	DefaultSnapshotPath = "scan.png"
	// DefaultCameraWidth is the requested capture width.
	DefaultCameraWidth = 640
	// DefaultCameraHeight is the requested capture height.
	DefaultCameraHeight = 480
	// DefaultAddr is the listen address of the HTTP surface.
	DefaultAddr = ":8080"
	// DefaultBatchDir holds batch reports written without an explicit output path.
	DefaultBatchDir = "benchmark_results"
)

// Config is the complete application configuration.
type Config struct {
	Model  ModelConfig  `json:"model" yaml:"model"`
	Camera CameraConfig `json:"camera" yaml:"camera"`
	Server ServerConfig `json:"server" yaml:"server"`
	Log    LogConfig    `json:"log" yaml:"log"`
	Batch  BatchConfig  `json:"batch" yaml:"batch"`
}

// ModelConfig locates the model artifact and selects the inference backend.
type ModelConfig struct {
	// Path to the serialized model file.
	Path string `json:"path" yaml:"path"`
	// Backend forces an inference backend ("tflite", "onnx", "graph"). Empty selects by extension.
	Backend string `json:"backend" yaml:"backend"`
	// Threads is the number of interpreter threads (0 lets the runtime decide).
	Threads int `json:"threads" yaml:"threads"`
	// SharedLibrary is the ONNX Runtime shared library path, only used by the onnx backend.
	SharedLibrary string `json:"shared_library" yaml:"shared_library"`
	// Provider is the ONNX Runtime execution provider ("cpu", "cuda", "coreml", "openvino").
	Provider string `json:"provider" yaml:"provider"`
	// DeviceID is the accelerator used by the execution provider.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// DeviceType is the OpenVINO target ("CPU", "GPU", "NPU", "AUTO"). Empty means "CPU".
	DeviceType string `json:"device_type" yaml:"device_type"`
	// LabelsPath optionally replaces the built-in label table (one label per line).
	LabelsPath string `json:"labels_path" yaml:"labels_path"`
}

// CameraConfig configures frame acquisition.
type CameraConfig struct {
	DeviceID     int    `json:"device_id" yaml:"device_id"`
	Width        int    `json:"width" yaml:"width"`
	Height       int    `json:"height" yaml:"height"`
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`
	// StillImage serves every capture from this file instead of a device.
	StillImage string `json:"still_image" yaml:"still_image"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	// Output is the report file. Empty writes a timestamped file under DefaultBatchDir.
	Output string `json:"output" yaml:"output"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	// Level is a logrus level name ("debug", "info", "warn", ...).
	Level string `json:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
	// File appends logs to this path in addition to stderr.
	File string `json:"file" yaml:"file"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: The default configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Path: DefaultModelPath,
		},
		Camera: CameraConfig{
			DeviceID:     0,
			Width:        DefaultCameraWidth,
			Height:       DefaultCameraHeight,
			SnapshotPath: DefaultSnapshotPath,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
//
// Arguments:
//   - path: The YAML file to read. An empty path returns the defaults.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the application cannot run with.
//
// Returns:
//   - error: The first invalid field found, if any.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Model.Path) == "" {
		return errors.New("model.path is required")
	}
	switch c.Model.Backend {
	case "", "tflite", "onnx", "graph":
	default:
		return errors.Errorf("model.backend %q is not supported", c.Model.Backend)
	}
	switch c.Model.Provider {
	case "", "cpu", "cuda", "coreml", "openvino":
	default:
		return errors.Errorf("model.provider %q is not supported", c.Model.Provider)
	}
	if c.Model.Threads < 0 {
		return errors.Errorf("model.threads must be >= 0, got %d", c.Model.Threads)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.Errorf("camera resolution must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.SnapshotPath == "" {
		return errors.New("camera.snapshot_path is required")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.Errorf("log.format %q is not supported", c.Log.Format)
	}

	return nil
}
