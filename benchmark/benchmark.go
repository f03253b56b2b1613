package benchmark

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/models/postprocess"
	"github.com/nvr-ai/go-freshness/util"
)

// Classifier classifies a decoded frame.
type Classifier interface {
	Classify(ctx context.Context, frame *images.Frame) (postprocess.Result, error)
}

// Report is the JSON document written by a batch run.
type Report struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Model         string        `json:"model"`
	Backend       string        `json:"backend"`
	Directory     string        `json:"directory"`
	TotalDuration time.Duration `json:"total_duration"`
	Results       []ImageResult `json:"results"`
	Summary       Summary       `json:"summary"`
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	// Classifier runs each image.
	Classifier Classifier
	// Model and Backend are recorded in the report.
	Model   string
	Backend string
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
	// Logger receives per-image failures.
	Logger logrus.FieldLogger
}

// Suite classifies every image in a directory.
type Suite struct {
	classifier Classifier
	model      string
	backend    string
	progress   io.Writer
	logger     logrus.FieldLogger
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(args NewSuiteArgs) *Suite {
	return &Suite{
		classifier: args.Classifier,
		model:      args.Model,
		backend:    args.Backend,
		progress:   args.Progress,
		logger:     args.Logger,
	}
}

// Run classifies every supported image in dir. Images that fail to decode or classify are
// recorded with their error and do not stop the batch.
//
// Arguments:
//   - ctx: Stops the batch between images.
//   - dir: The image directory.
//
// Returns:
//   - *Report: The per-image results and summary.
//   - error: An error if the directory cannot be read, holds no images, or ctx is cancelled.
func (s *Suite) Run(ctx context.Context, dir string) (*Report, error) {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images found in %s", dir)
	}

	report := &Report{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Model:     s.model,
		Backend:   s.backend,
		Directory: dir,
		Results:   make([]ImageResult, 0, len(files)),
	}

	var bar *pb.ProgressBar
	if s.progress != nil {
		bar = pb.New(len(files))
		bar.SetWriter(s.progress)
		bar.Start()
		defer bar.Finish()
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)
	start := time.Now()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Results = append(report.Results, s.process(ctx, file))
		if bar != nil {
			bar.Increment()
		}
	}

	report.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	report.Summary = Summarize(report.Results, report.TotalDuration)
	report.Summary.MemoryStats = memoryDelta(startMem, endMem)

	s.logger.WithFields(logrus.Fields{
		"report":   report.ID,
		"images":   report.Summary.Images,
		"failures": report.Summary.Failures,
		"fps":      report.Summary.FramesPerSecond,
	}).Info("batch completed")
	return report, nil
}

func (s *Suite) process(ctx context.Context, file util.ImageFile) ImageResult {
	result := ImageResult{Name: file.Name, Path: file.Path}

	decodeStart := time.Now()
	frame, format, err := images.DecodeBytes(file.Data)
	result.DecodeDuration = time.Since(decodeStart)
	if err != nil {
		result.Error = err.Error()
		s.logger.WithError(err).WithField("image", file.Path).Warn("image skipped")
		return result
	}
	result.Format = format
	result.Width = frame.Width
	result.Height = frame.Height

	classifyStart := time.Now()
	classified, err := s.classifier.Classify(ctx, frame)
	result.ClassifyDuration = time.Since(classifyStart)
	if err != nil {
		result.Error = err.Error()
		s.logger.WithError(err).WithField("image", file.Path).Warn("classification failed")
		return result
	}
	result.Label = classified.Label
	result.Confidence = classified.Confidence
	return result
}

// Save writes the report as indented JSON, creating parent directories.
//
// Arguments:
//   - path: The destination file.
//
// Returns:
//   - error: An error if the file cannot be written.
func (r *Report) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	return nil
}
