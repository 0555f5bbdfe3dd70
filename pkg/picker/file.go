package picker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/internal/utils"
	"github.com/menta2k/photo-hq/pkg/processing"
)

// FileProvider is an asset backed by a file on disk. A still image with a
// motion companion next to it (IMG_0001.jpg + IMG_0001.mov) is a live photo.
type FileProvider struct {
	path      string
	mime      string
	companion string
	processor *processing.Processor
}

// NewFileProvider sniffs the file type of path
func NewFileProvider(path string) (*FileProvider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("picker: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("picker: %s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("picker: detect %s: %w", filepath.Base(path), err)
	}

	fp := &FileProvider{
		path:      path,
		mime:      mt.String(),
		processor: processing.NewProcessor(),
	}
	if fp.isImage() {
		fp.companion, _ = utils.LivePhotoCompanion(path)
	}
	return fp, nil
}

func (f *FileProvider) Name() string {
	return f.path
}

// MIME returns the sniffed media type
func (f *FileProvider) MIME() string {
	return f.mime
}

func (f *FileProvider) isImage() bool {
	return strings.HasPrefix(f.mime, "image/")
}

func (f *FileProvider) Conforms(kind Kind) bool {
	switch kind {
	case KindLivePhoto:
		return f.isImage() && f.companion != ""
	default:
		return f.isImage()
	}
}

// Load decodes the photo. A live photo loads as its still frame.
func (f *FileProvider) Load(ctx context.Context, kind Kind) (processing.Photo, error) {
	if !f.Conforms(kind) {
		return processing.Photo{}, fmt.Errorf("picker: %s is not a %s (%s)", filepath.Base(f.path), kind, f.mime)
	}
	if err := ctx.Err(); err != nil {
		return processing.Photo{}, err
	}
	return f.processor.LoadImage(f.path)
}

// Resolve turns paths into providers. Paths the filter does not admit are
// logged and skipped; unreadable paths are an error.
func (a *Adapter) Resolve(paths []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(paths))
	for _, path := range paths {
		fp, err := NewFileProvider(path)
		if err != nil {
			return nil, err
		}
		if _, ok := a.representation(fp); !ok {
			a.log.Info("asset skipped by filter", zap.String("asset", path), zap.String("mime", fp.MIME()))
			continue
		}
		providers = append(providers, fp)
	}
	return providers, nil
}
