// Package optimizer holds the state of one photo upscaling session: the
// source photo, the upscaled result, the busy flag and the user-facing alert.
//
// State changes are published to subscribers as State snapshots, so any front
// end (terminal UI, CLI, tests) can render without touching the optimizer's
// internals.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/pkg/aspect"
	"github.com/menta2k/photo-hq/pkg/inference"
	"github.com/menta2k/photo-hq/pkg/library"
	"github.com/menta2k/photo-hq/pkg/orientation"
	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/task"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Alert messages shown to the user
const (
	SaveSuccessMessage      = "Saved to your photo library."
	SaveFailureMessage      = "The photo could not be saved."
	InferenceFailureMessage = "The photo could not be optimized."
)

var (
	// ErrBusy is returned when an optimization is already in flight
	ErrBusy = errors.New("optimizer: an optimization is already running")
	// ErrOptimize wraps every inference failure, including an empty result
	ErrOptimize = errors.New("optimizer: optimization failed")
)

// State is a snapshot of the optimizer
type State struct {
	Original     *processing.Photo
	Converted    image.Image
	Correction   aspect.Correction
	Optimizing   bool
	AlertMessage string
	ShowAlert    bool
}

// Optimizer owns the session state and runs inference in the background
type Optimizer struct {
	model        inference.Model
	library      library.Writer
	handler      *inference.Handler
	cropAndScale types.CropAndScale
	timeout      time.Duration
	log          *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	subs       map[int]func(State)
	nextSub    int
}

// Option configures an Optimizer
type Option func(*Optimizer)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(o *Optimizer) { o.log = log }
}

// WithTimeout bounds each inference run when the caller's context has no
// deadline. Zero leaves runs unbounded.
func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) { o.timeout = d }
}

// WithCropAndScale sets how photos are fitted into the model input
func WithCropAndScale(c types.CropAndScale) Option {
	return func(o *Optimizer) { o.cropAndScale = c }
}

// New creates an optimizer for model, saving into lib
func New(model inference.Model, lib library.Writer, opts ...Option) *Optimizer {
	o := &Optimizer{
		model:        model,
		library:      lib,
		cropAndScale: types.ScaleFill,
		log:          zap.NewNop(),
		subs:         make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.handler = inference.NewHandler(o.log)
	return o
}

// State returns the current snapshot
func (o *Optimizer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (o *Optimizer) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers outside it
func (o *Optimizer) update(fn func(s *State)) {
	o.mu.Lock()
	fn(&o.state)
	snapshot := o.state
	subs := make([]func(State), 0, len(o.subs))
	for _, s := range o.subs {
		subs = append(subs, s)
	}
	o.mu.Unlock()

	for _, s := range subs {
		s(snapshot)
	}
}

// SetOriginal replaces the source photo and drops any previous result
func (o *Optimizer) SetOriginal(photo processing.Photo) {
	o.update(func(s *State) {
		o.generation++
		s.Original = &photo
		s.Converted = nil
		s.Correction = aspect.Measure(photo.DisplaySize())
	})
}

// DismissAlert hides the current alert
func (o *Optimizer) DismissAlert() {
	o.update(func(s *State) {
		s.ShowAlert = false
	})
}

// OptimizeImage starts upscaling photo in the background. A photo other
// than the current source replaces it as with SetOriginal. It fails without
// touching state when the photo cannot be converted to RGB, and with ErrBusy
// while another run is in flight.
func (o *Optimizer) OptimizeImage(ctx context.Context, photo processing.Photo) (*task.Task[image.Image], error) {
	if _, err := processing.ToRGBA(photo.Image); err != nil {
		return nil, err
	}
	px, err := orientation.ToPixel(photo.Orientation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", processing.ErrUnsupportedImage, err)
	}

	correction := aspect.Measure(photo.DisplaySize())

	o.mu.Lock()
	if o.state.Optimizing {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.state.Optimizing = true
	o.mu.Unlock()

	var gen uint64
	o.update(func(s *State) {
		// optimizing another photo makes it the source
		if s.Original == nil || !s.Original.Same(photo) {
			o.generation++
			s.Original = &photo
			s.Converted = nil
		}
		s.Correction = correction
		gen = o.generation
	})

	// a fresh request per call; nothing is shared between runs
	req := inference.Request{
		Image:        photo.Image,
		Orientation:  px,
		CropAndScale: o.cropAndScale,
	}

	o.log.Info("optimization started",
		zap.String("photo", photo.Path),
		zap.Stringer("size", photo.Size()),
		zap.Stringer("orientation", photo.Orientation),
		zap.Stringer("correction", correction))

	return task.Go(ctx, func(ctx context.Context) (result image.Image, err error) {
		defer func() {
			if r := recover(); r != nil {
				result, err = nil, fmt.Errorf("inference panicked: %v", r)
			}
			o.complete(gen, result, err)
			if err != nil {
				result, err = nil, fmt.Errorf("%w: %w", ErrOptimize, err)
			}
		}()
		return o.run(ctx, req, correction)
	}), nil
}

func (o *Optimizer) run(ctx context.Context, req inference.Request, correction aspect.Correction) (image.Image, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	buf, err := o.handler.Perform(ctx, o.model, req)
	if err != nil {
		return nil, err
	}

	converted, err := processing.BufferToImage(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrNoResult, err)
	}

	result, err := correction.Apply(converted)
	if err != nil {
		return nil, err
	}

	o.log.Info("optimization finished",
		zap.Stringer("model_output", buf.Size()),
		zap.Int("width", result.Bounds().Dx()),
		zap.Int("height", result.Bounds().Dy()),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// complete is the single point where inference results enter state
func (o *Optimizer) complete(gen uint64, result image.Image, err error) {
	if err != nil {
		o.log.Error("optimization failed", zap.Error(err))
	}

	o.update(func(s *State) {
		s.Optimizing = false
		// a newer source was picked while this run was in flight
		if gen != o.generation {
			return
		}
		if err != nil {
			s.AlertMessage = InferenceFailureMessage
			s.ShowAlert = true
			return
		}
		s.Converted = result
	})
}

// SaveImage writes img to the photo library. Exactly one of the success or
// failure alerts is raised when the save finishes.
func (o *Optimizer) SaveImage(ctx context.Context, img image.Image) *task.Task[string] {
	return task.Go(ctx, func(ctx context.Context) (string, error) {
		path, err := o.save(ctx, img)

		o.update(func(s *State) {
			if err != nil {
				s.AlertMessage = SaveFailureMessage
			} else {
				s.AlertMessage = SaveSuccessMessage
			}
			s.ShowAlert = true
		})

		if err != nil {
			o.log.Error("save failed", zap.Error(err))
			return "", err
		}
		return path, nil
	})
}

func (o *Optimizer) save(ctx context.Context, img image.Image) (path string, err error) {
	if img == nil {
		return "", errors.New("optimizer: nothing to save")
	}
	if o.library == nil {
		return "", errors.New("optimizer: no photo library configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("optimizer: save panicked: %v", r)
		}
	}()
	return o.library.Save(ctx, img)
}
