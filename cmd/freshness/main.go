// Command freshness checks food freshness from a camera or image files.
//
// Usage:
//
//	freshness run      [flags]          interactive console (open, check, status, quit)
//	freshness serve    [flags]          HTTP API
//	freshness classify [flags] IMAGE    classify one image file
//	freshness batch    [flags] -dir DIR classify a directory and write a JSON report
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/api"
	"github.com/nvr-ai/go-freshness/benchmark"
	"github.com/nvr-ai/go-freshness/config"
	"github.com/nvr-ai/go-freshness/console"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/logging"
)

const usage = `usage: freshness <command> [flags]

commands:
  run       interactive console
  serve     HTTP API
  classify  classify one image file
  batch     classify every image in a directory

run "freshness <command> -h" for command flags`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runConsole(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "classify":
		err = runClassify(ctx, args)
	case "batch":
		err = runBatch(ctx, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "freshness: %v\n", err)
		os.Exit(1)
	}
}

// flags binds the configuration flags shared by every command.
type flags struct {
	set        *flag.FlagSet
	configFile string
	model      string
	backend    string
	labels     string
	threads    int
	sharedLib  string
	provider   string
	device     int
	deviceType string
	still      string
	snapshot   string
	logLevel   string
	logFormat  string
}

func newFlags(name string) *flags {
	f := &flags{set: flag.NewFlagSet(name, flag.ExitOnError)}
	f.set.StringVar(&f.configFile, "config", "", "Path to YAML configuration file")
	f.set.StringVar(&f.model, "model", "", "Path to model file (.tflite, .onnx, .yaml)")
	f.set.StringVar(&f.backend, "backend", "", "Inference backend: tflite, onnx or graph (default: by extension)")
	f.set.StringVar(&f.labels, "labels", "", "Labels file, one label per line")
	f.set.IntVar(&f.threads, "threads", -1, "Interpreter threads (0 lets the runtime decide)")
	f.set.StringVar(&f.sharedLib, "onnx-lib", "", "ONNX Runtime shared library path")
	f.set.StringVar(&f.provider, "provider", "", "ONNX Runtime execution provider: cpu, cuda, coreml or openvino")
	f.set.IntVar(&f.device, "device", -1, "Video capture device id")
	f.set.StringVar(&f.deviceType, "device-type", "", "OpenVINO device type: CPU, GPU, NPU or AUTO")
	f.set.StringVar(&f.still, "still", "", "Serve captures from this image instead of a device")
	f.set.StringVar(&f.snapshot, "snapshot", "", "Snapshot file written on every capture")
	f.set.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.set.StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	return f
}

// load parses args, then layers defaults, the config file and explicit flags.
func (f *flags) load(args []string) (config.Config, *logrus.Logger, func(), error) {
	if err := f.set.Parse(args); err != nil {
		return config.Config{}, nil, nil, err
	}

	cfg, err := config.Load(f.configFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	if f.model != "" {
		cfg.Model.Path = f.model
	}
	if f.backend != "" {
		cfg.Model.Backend = f.backend
	}
	if f.labels != "" {
		cfg.Model.LabelsPath = f.labels
	}
	if f.threads >= 0 {
		cfg.Model.Threads = f.threads
	}
	if f.sharedLib != "" {
		cfg.Model.SharedLibrary = f.sharedLib
	}
	if f.provider != "" {
		cfg.Model.Provider = f.provider
	}
	if f.deviceType != "" {
		cfg.Model.DeviceType = f.deviceType
	}
	if f.device >= 0 {
		cfg.Camera.DeviceID = f.device
	}
	if f.still != "" {
		cfg.Camera.StillImage = f.still
	}
	if f.snapshot != "" {
		cfg.Camera.SnapshotPath = f.snapshot
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

func runConsole(ctx context.Context, args []string) error {
	cfg, logger, closeLog, err := newFlags("run").load(args)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return console.New(a.controller, os.Stdin, os.Stdout).Run(ctx)
}

func runServe(ctx context.Context, args []string) error {
	f := newFlags("serve")
	addr := f.set.String("addr", "", "HTTP listen address (default "+config.DefaultAddr+")")
	cfg, logger, closeLog, err := f.load(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return api.Serve(ctx, cfg.Server.Addr, api.NewRouter(a.controller, logger), logger)
}

func runClassify(ctx context.Context, args []string) error {
	f := newFlags("classify")
	cfg, logger, closeLog, err := f.load(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if f.set.NArg() != 1 {
		return errors.New("classify takes exactly one image path")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	frame, err := images.DecodeFile(f.set.Arg(0))
	if err != nil {
		return err
	}
	result, err := a.controller.ClassifyFrame(ctx, frame)
	if err != nil {
		return errors.New(a.controller.Status())
	}
	fmt.Println(result.String())
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	f := newFlags("batch")
	dir := f.set.String("dir", "", "Directory of images to classify (required)")
	output := f.set.String("output", "", "Report file (default ./"+config.DefaultBatchDir+"/batch_<timestamp>.json)")
	quiet := f.set.Bool("quiet", false, "Disable the progress bar")
	cfg, logger, closeLog, err := f.load(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if *dir == "" {
		return errors.New("batch requires -dir")
	}
	if *output != "" {
		cfg.Batch.Output = *output
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	if !a.classifier.Available() {
		return errors.New("inference unavailable")
	}

	suiteArgs := benchmark.NewSuiteArgs{
		Classifier: a.classifier,
		Model:      cfg.Model.Path,
		Backend:    a.backend(),
		Logger:     logger,
	}
	if !*quiet {
		suiteArgs.Progress = os.Stderr
	}

	report, err := benchmark.NewSuite(suiteArgs).Run(ctx, *dir)
	if err != nil {
		return err
	}

	path := cfg.Batch.Output
	if path == "" {
		path = filepath.Join(config.DefaultBatchDir, fmt.Sprintf("batch_%s.json", time.Now().Format("2006-01-02_15-04-05")))
	}
	if err := report.Save(path); err != nil {
		return err
	}

	fmt.Printf("Classified %d images (%d failed) in %s\n", report.Summary.Images, report.Summary.Failures, report.TotalDuration)
	for label, n := range report.Summary.LabelCounts {
		fmt.Printf("  %-8s %d\n", label, n)
	}
	fmt.Printf("Latency: mean %.2fms, p95 %.2fms\n", report.Summary.LatencyMeanMs, report.Summary.LatencyP95Ms)
	fmt.Printf("Report saved to: %s\n", path)
	return nil
}
