// Package photohq upscales photos with an on-device super-resolution model.
//
// It wires together the pieces in pkg/: a picker that turns files into
// decoded photos, an optimizer that runs the model and restores the source
// aspect ratio, and a photo library the results are saved into.
//
// Basic usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	app, err := photohq.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//
//	saved, err := app.UpscaleFile(ctx, "photo.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("saved to", saved)
//
// The model backend is chosen by config: "onnx" runs a Real-ESRGAN style
// model through ONNX Runtime, "interpolate" upsamples with Lanczos and needs
// no runtime.
package photohq

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/internal/config"
	"github.com/menta2k/photo-hq/pkg/inference"
	"github.com/menta2k/photo-hq/pkg/library"
	"github.com/menta2k/photo-hq/pkg/onnx"
	"github.com/menta2k/photo-hq/pkg/optimizer"
	"github.com/menta2k/photo-hq/pkg/picker"
	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Version of the photohq library
const Version = "1.0.0"

// ErrNothingPicked is returned when no photo could be loaded from the input
var ErrNothingPicked = errors.New("no photo could be loaded")

// App is a configured upscaling session
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	model     inference.Model
	closer    io.Closer
	library   *library.Dir
	optimizer *optimizer.Optimizer
}

// Option configures an App
type Option func(*App)

// WithLogger sets the logger shared by every component
func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithModel uses model instead of building one from config
func WithModel(model inference.Model) Option {
	return func(a *App) { a.model = model }
}

// New builds the model, library and optimizer described by cfg. A model
// that cannot be constructed is an error.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}

	if a.model == nil {
		model, err := a.newModel()
		if err != nil {
			return nil, err
		}
		a.model = model
	}

	cropAndScale, err := types.ParseCropAndScale(cfg.Model.CropAndScale)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.library = library.NewDir(cfg.Library.Dir, cfg.EncodeOptions(),
		library.WithPrefix(cfg.Library.Prefix),
		library.WithLogger(a.log.Named("library")))

	a.optimizer = optimizer.New(a.model, a.library,
		optimizer.WithLogger(a.log.Named("optimizer")),
		optimizer.WithTimeout(cfg.Model.Timeout),
		optimizer.WithCropAndScale(cropAndScale))

	a.log.Info("photohq ready",
		zap.String("model", a.model.Name()),
		zap.Stringer("input_size", a.model.InputSize()),
		zap.String("library", cfg.Library.Dir))
	return a, nil
}

func (a *App) newModel() (inference.Model, error) {
	mc := a.cfg.Model
	size := types.Size{Width: mc.InputSize, Height: mc.InputSize}

	switch mc.Backend {
	case config.BackendONNX:
		model, err := onnx.New(onnx.Config{
			ModelPath:   mc.Path,
			LibraryPath: mc.LibraryPath,
			NumThreads:  mc.Threads,
			InputSize:   size,
		}, a.log.Named("onnx"))
		if err != nil {
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
		a.closer = model
		return model, nil
	default:
		return inference.NewInterpolator(size, mc.Scale), nil
	}
}

// Config returns the configuration the app was built from
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the app logger
func (a *App) Logger() *zap.Logger {
	return a.log
}

// Model returns the super-resolution model
func (a *App) Model() inference.Model {
	return a.model
}

// Library returns the photo library results are saved into
func (a *App) Library() *library.Dir {
	return a.library
}

// Optimizer returns the session state holder
func (a *App) Optimizer() *optimizer.Optimizer {
	return a.optimizer
}

// NewPicker creates a picker configured from the app config
func (a *App) NewPicker(opts ...picker.Option) *picker.Adapter {
	pc := a.cfg.Picker
	cfg := picker.Config{
		SelectionLimit:      pc.SelectionLimit,
		Filter:              picker.Filter{Images: pc.Images, LivePhotos: pc.LivePhotos},
		CloseAfterSelection: pc.CloseAfterSelection,
	}
	return picker.New(cfg, append([]picker.Option{picker.WithLogger(a.log.Named("picker"))}, opts...)...)
}

// UpscaleFile picks the photo at path, upscales it and saves the result into
// the library, returning the saved path
func (a *App) UpscaleFile(ctx context.Context, path string) (string, error) {
	p := a.NewPicker()

	providers, err := p.Resolve([]string{path})
	if err != nil {
		return "", err
	}
	photos, err := p.PickAsync(ctx, providers).Wait(ctx)
	if err != nil {
		return "", err
	}
	if len(photos) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNothingPicked, path)
	}

	return a.UpscalePhoto(ctx, photos[0])
}

// UpscalePhoto upscales an already decoded photo and saves the result
func (a *App) UpscalePhoto(ctx context.Context, photo processing.Photo) (string, error) {
	a.optimizer.SetOriginal(photo)

	t, err := a.optimizer.OptimizeImage(ctx, photo)
	if err != nil {
		return "", err
	}
	result, err := t.Wait(ctx)
	if err != nil {
		return "", err
	}

	saved, err := a.optimizer.SaveImage(ctx, result).Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", photo.Path, err)
	}
	return saved, nil
}

// Close releases the model runtime, if any
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
