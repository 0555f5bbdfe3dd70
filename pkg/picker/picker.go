// Package picker turns a selection of photo assets into decoded photos.
//
// A selection is a list of providers. The adapter loads every provider
// concurrently and hands the successfully decoded photos to a single
// completion callback; providers that fail to load are logged and left out.
package picker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/task"
)

// Kind is an asset representation a provider can be loaded as
type Kind int

const (
	KindImage Kind = iota
	KindLivePhoto
)

func (k Kind) String() string {
	if k == KindLivePhoto {
		return "live-photo"
	}
	return "image"
}

// Provider is a selected asset whose photo is resolved asynchronously
type Provider interface {
	Name() string
	Conforms(kind Kind) bool
	Load(ctx context.Context, kind Kind) (processing.Photo, error)
}

// Filter selects which asset kinds may be picked
type Filter struct {
	Images     bool
	LivePhotos bool
}

// Allows reports whether the filter admits kind
func (f Filter) Allows(kind Kind) bool {
	if kind == KindLivePhoto {
		return f.LivePhotos
	}
	return f.Images
}

// Config controls the picker
type Config struct {
	SelectionLimit      int
	Filter              Filter
	CloseAfterSelection bool
}

// DefaultConfig picks a single still image or live photo and closes after selection
func DefaultConfig() Config {
	return Config{
		SelectionLimit:      1,
		Filter:              Filter{Images: true, LivePhotos: true},
		CloseAfterSelection: true,
	}
}

// Adapter bridges a selection into one completion callback
type Adapter struct {
	cfg     Config
	log     *zap.Logger
	loading func(bool)
	dismiss func()
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used for load failures
func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithLoadingBinding sets the caller-owned loading flag setter
func WithLoadingBinding(fn func(loading bool)) Option {
	return func(a *Adapter) { a.loading = fn }
}

// WithDismiss sets the hook called when the picker closes after a selection
func WithDismiss(fn func()) Option {
	return func(a *Adapter) { a.dismiss = fn }
}

// New creates an adapter
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		log:     zap.NewNop(),
		loading: func(bool) {},
		dismiss: func() {},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config returns the adapter configuration
func (a *Adapter) Config() Config {
	return a.cfg
}

// Pick loads the selected providers and calls completion once with the photos
// that loaded, in selection order. The loading binding is true while loading
// and reset after completion returns.
func (a *Adapter) Pick(ctx context.Context, providers []Provider, completion func([]processing.Photo)) {
	if limit := a.cfg.SelectionLimit; limit > 0 && len(providers) > limit {
		a.log.Debug("selection truncated", zap.Int("selected", len(providers)), zap.Int("limit", limit))
		providers = providers[:limit]
	}

	a.loading(true)

	loaded := make([]*processing.Photo, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			photo, ok := a.load(ctx, p)
			if ok {
				loaded[i] = &photo
			}
			return nil
		})
	}
	_ = g.Wait()

	photos := make([]processing.Photo, 0, len(loaded))
	for _, p := range loaded {
		if p != nil {
			photos = append(photos, *p)
		}
	}

	if completion != nil {
		completion(photos)
	}

	a.loading(false)
	if a.cfg.CloseAfterSelection {
		a.dismiss()
	}
}

// PickAsync runs Pick on its own goroutine
func (a *Adapter) PickAsync(ctx context.Context, providers []Provider) *task.Task[[]processing.Photo] {
	return task.Go(ctx, func(ctx context.Context) ([]processing.Photo, error) {
		var (
			mu     sync.Mutex
			result []processing.Photo
		)
		a.Pick(ctx, providers, func(photos []processing.Photo) {
			mu.Lock()
			result = photos
			mu.Unlock()
		})
		mu.Lock()
		defer mu.Unlock()
		return result, nil
	})
}

// load resolves one provider, preferring the live-photo representation
func (a *Adapter) load(ctx context.Context, p Provider) (processing.Photo, bool) {
	kind, ok := a.representation(p)
	if !ok {
		a.log.Warn("asset has no loadable representation", zap.String("asset", p.Name()))
		return processing.Photo{}, false
	}

	photo, err := p.Load(ctx, kind)
	if err != nil {
		a.log.Warn("asset load failed",
			zap.String("asset", p.Name()),
			zap.Stringer("kind", kind),
			zap.Error(err))
		return processing.Photo{}, false
	}
	if photo.Image == nil {
		a.log.Warn("asset loaded without an image", zap.String("asset", p.Name()))
		return processing.Photo{}, false
	}
	return photo, true
}

func (a *Adapter) representation(p Provider) (Kind, bool) {
	if a.cfg.Filter.Allows(KindLivePhoto) && p.Conforms(KindLivePhoto) {
		return KindLivePhoto, true
	}
	if a.cfg.Filter.Allows(KindImage) && p.Conforms(KindImage) {
		return KindImage, true
	}
	return KindImage, false
}
