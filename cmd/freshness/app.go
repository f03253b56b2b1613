package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/camera"
	"github.com/nvr-ai/go-freshness/classifier"
	"github.com/nvr-ai/go-freshness/config"
	"github.com/nvr-ai/go-freshness/controller"
	"github.com/nvr-ai/go-freshness/inference"
	"github.com/nvr-ai/go-freshness/models"
)

// app is the application context: built once at startup, torn down at shutdown, and
// passed to every surface.
type app struct {
	config     config.Config
	logger     *logrus.Logger
	handle     *inference.Handle
	classifier *classifier.Classifier
	camera     camera.Camera
	controller *controller.Controller
}

// newApp loads the model and wires the pipeline. A model that fails to load is logged and
// leaves inference disabled.
func newApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*app, error) {
	labels := models.FreshnessLabels
	if cfg.Model.LabelsPath != "" {
		loaded, err := models.LoadLabels(cfg.Model.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = loaded
	}

	handle, err := inference.Load(cfg.Model.Path, inference.Options{
		Backend:       inference.Backend(cfg.Model.Backend),
		Threads:       cfg.Model.Threads,
		SharedLibrary: cfg.Model.SharedLibrary,
		Provider:      inference.Provider(cfg.Model.Provider),
		DeviceID:      cfg.Model.DeviceID,
		DeviceType:    cfg.Model.DeviceType,
		Classes:       labels.Len(),
	}, logger)
	if err != nil {
		logger.WithError(err).Error("model failed to load, inference is disabled")
	}

	clf, err := classifier.New(handle, labels, logger)
	if err != nil {
		if handle != nil {
			_ = handle.Close()
		}
		return nil, err
	}

	if err := camera.Request(ctx, camera.AlwaysGrant); err != nil {
		logger.WithError(err).Warn("camera permission not granted")
	}
	cam := camera.New(cfg.Camera, logger)

	return &app{
		config:     cfg,
		logger:     logger,
		handle:     handle,
		classifier: clf,
		camera:     cam,
		controller: controller.New(cam, clf, logger),
	}, nil
}

// backend returns the name of the runtime in use, or "none".
func (a *app) backend() string {
	if a.handle == nil {
		return "none"
	}
	return string(a.handle.Backend())
}

func (a *app) close() error {
	var errs []error
	if err := a.controller.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if a.handle != nil {
		if err := a.handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "shutdown")
	}
	return nil
}
