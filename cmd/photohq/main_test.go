package main

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/photo-hq/pkg/library"
	"github.com/menta2k/photo-hq/pkg/types"
)

func TestListLibrary(t *testing.T) {
	root := filepath.Join(t.TempDir(), "library")
	dir := library.NewDir(root, types.EncodeOptions{Format: "png"})

	var out bytes.Buffer
	if err := listLibrary(&out, dir); err != nil {
		t.Fatalf("listLibrary failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "0 photos, 0 B in ") {
		t.Errorf("Unexpected output for empty library: %q", out.String())
	}

	path, err := dir.Save(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := listLibrary(&out, dir); err != nil {
		t.Fatalf("listLibrary failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected one entry and a total, got %q", out.String())
	}
	if !strings.HasSuffix(lines[0], path) {
		t.Errorf("Expected entry for %s, got %q", path, lines[0])
	}
	if !strings.HasPrefix(lines[1], "1 photos, ") {
		t.Errorf("Unexpected total %q", lines[1])
	}
}

func TestSplitInputs(t *testing.T) {
	got := splitInputs(" a.jpg, ,b.png,")
	if len(got) != 2 || got[0] != "a.jpg" || got[1] != "b.png" {
		t.Errorf("Unexpected inputs %v", got)
	}
	if splitInputs("") != nil {
		t.Error("Expected no inputs")
	}
}
