// Package library stores finished photos in a local photo library directory.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/internal/utils"
	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Writer saves a bitmap into a photo library and returns where it went
type Writer interface {
	Save(ctx context.Context, img image.Image) (string, error)
}

// Entry is a photo stored in the library
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Dir is a Writer backed by a directory on disk
type Dir struct {
	root      string
	prefix    string
	opts      types.EncodeOptions
	processor *processing.Processor
	log       *zap.Logger
}

// Option configures a Dir
type Option func(*Dir)

// WithPrefix sets a file name prefix for saved photos
func WithPrefix(prefix string) Option {
	return func(d *Dir) { d.prefix = utils.SanitizeFilename(prefix) }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(d *Dir) { d.log = log }
}

// NewDir creates a library rooted at root
func NewDir(root string, opts types.EncodeOptions, options ...Option) *Dir {
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	opts.Format = processing.NormalizeFormat(opts.Format)

	d := &Dir{
		root:      root,
		opts:      opts,
		processor: processing.NewProcessor(),
		log:       zap.NewNop(),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Root returns the library directory
func (d *Dir) Root() string {
	return d.root
}

// Save encodes img into the library under a new unique name
func (d *Dir) Save(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("library: nil image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := utils.EnsureDir(d.root); err != nil {
		return "", fmt.Errorf("library: create %s: %w", d.root, err)
	}

	name := fmt.Sprintf("%s%s.%s", d.prefix, uuid.New().String(), d.opts.Format)
	path := filepath.Join(d.root, name)
	if err := d.processor.SaveImage(img, path, d.opts); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("library: save %s: %w", name, err)
	}

	b := img.Bounds()
	d.log.Info("photo saved",
		zap.String("path", path),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.String("format", d.opts.Format))
	return path, nil
}

// List returns the library's photos, oldest first
func (d *Dir) List() ([]Entry, error) {
	if !utils.DirExists(d.root) {
		return nil, nil
	}

	files, err := utils.ListImageFiles(d.root)
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Path: f, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}
