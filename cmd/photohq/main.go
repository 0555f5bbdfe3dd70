package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	photohq "github.com/menta2k/photo-hq"
	"github.com/menta2k/photo-hq/internal/config"
	"github.com/menta2k/photo-hq/internal/logger"
	"github.com/menta2k/photo-hq/internal/tui"
	"github.com/menta2k/photo-hq/internal/utils"
	"github.com/menta2k/photo-hq/pkg/library"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit
func run() int {
	var configPath, in, outDir, backend, model, format string
	var quality int
	var verbose, version, list bool

	flag.StringVar(&configPath, "config", "", "config file (json or yaml)")
	flag.StringVar(&in, "in", "", "comma separated input photos; without it the terminal UI starts")
	flag.StringVar(&outDir, "out", "", "photo library directory")
	flag.StringVar(&backend, "backend", "", "model backend: onnx or interpolate")
	flag.StringVar(&model, "model", "", "path to the .onnx super-resolution model")
	flag.StringVar(&format, "format", "", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&verbose, "verbose", false, "development logging at debug level")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.BoolVar(&list, "list", false, "list the photos in the library and exit")
	flag.Parse()

	if version {
		fmt.Println(photohq.GetVersion())
		return 0
	}

	if configPath == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			configPath = p
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Print(err)
		return 1
	}

	if outDir != "" {
		cfg.Library.Dir = outDir
	}
	if backend != "" {
		cfg.Model.Backend = backend
	}
	if model != "" {
		cfg.Model.Path = model
		if backend == "" {
			cfg.Model.Backend = config.BackendONNX
		}
	}
	if format != "" {
		cfg.Library.Format = format
	}
	if quality > 0 {
		cfg.Library.Quality = quality
	}
	if verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	if list {
		dir := library.NewDir(cfg.Library.Dir, cfg.EncodeOptions(), library.WithPrefix(cfg.Library.Prefix))
		if err := listLibrary(os.Stdout, dir); err != nil {
			log.Print(err)
			return 1
		}
		return 0
	}

	interactive := in == "" && flag.NArg() == 0
	zl, err := newLogger(cfg, interactive)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer zl.Sync()

	app, err := photohq.New(cfg, photohq.WithLogger(zl))
	if err != nil {
		zl.Error("failed to start", zap.Error(err))
		return 1
	}
	defer app.Close()

	if interactive {
		if err := tui.Run(app); err != nil {
			zl.Error("terminal UI failed", zap.Error(err))
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs := append(splitInputs(in), flag.Args()...)
	failed := 0
	for _, path := range inputs {
		saved, err := app.UpscaleFile(ctx, path)
		if err != nil {
			failed++
			zl.Error("upscale failed", zap.String("photo", path), zap.Error(err))
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Println(saved)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// listLibrary prints one line per saved photo and a total
func listLibrary(w io.Writer, dir *library.Dir) error {
	entries, err := dir.List()
	if err != nil {
		return err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ModTime.Format("2006-01-02 15:04:05"), utils.FormatFileSize(e.Size), e.Path)
	}
	fmt.Fprintf(w, "%d photos, %s in %s\n", len(entries), utils.FormatFileSize(total), dir.Root())
	return nil
}

// newLogger logs to the console in batch mode. The terminal UI owns the
// screen, so it only logs when a log file is configured.
func newLogger(cfg *config.Config, interactive bool) (*zap.Logger, error) {
	if !interactive {
		return logger.New(cfg.Log.Level, cfg.Log.Development)
	}
	if cfg.Log.File == "" {
		return zap.NewNop(), nil
	}
	return logger.ToFile(cfg.Log.File, cfg.Log.Level)
}

func splitInputs(in string) []string {
	var out []string
	for _, p := range strings.Split(in, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
