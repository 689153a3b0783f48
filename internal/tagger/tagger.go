// Package tagger writes book metadata into the files themselves.
package tagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// ErrToolNotFound is returned when the external tagging tool is not installed.
var ErrToolNotFound = errors.New("metadata tool not found")

// ErrUnsupported is returned for files whose format is not tagged.
var ErrUnsupported = errors.New("format not tagged")

// Metadata is what gets embedded into a file.
type Metadata struct {
	Author      string
	Title       string
	Tags        []string
	Description string
}

// Tagger embeds metadata into a file in place.
type Tagger interface {
	Tag(ctx context.Context, path string, md Metadata) error
}

// Noop is used when tagging is disabled.
type Noop struct{}

// Tag does nothing.
func (Noop) Tag(context.Context, string, Metadata) error { return nil }

// DefaultExtensions are the formats exiftool can write document metadata to.
var DefaultExtensions = []string{".pdf", ".epub", ".docx"}

// ExifTool runs the exiftool binary.
type ExifTool struct {
	binary     string
	extensions []string
	logger     *slog.Logger
}

// NewExifTool creates a tagger. An empty binary means "exiftool" on PATH;
// empty extensions means DefaultExtensions.
func NewExifTool(binary string, extensions []string, logger *slog.Logger) *ExifTool {
	if binary == "" {
		binary = "exiftool"
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &ExifTool{binary: binary, extensions: exts, logger: logger}
}

// Supports reports whether path has a taggable extension.
func (t *ExifTool) Supports(path string) bool {
	return slices.Contains(t.extensions, strings.ToLower(filepath.Ext(path)))
}

// Args builds the exiftool command line for path.
func Args(path string, md Metadata) []string {
	args := []string{
		"-overwrite_original",
		"-Author=" + md.Author,
		"-Title=" + md.Title,
	}
	if len(md.Tags) > 0 {
		args = append(args, "-Keywords="+strings.Join(md.Tags, ", "))
	}
	if md.Description != "" {
		args = append(args, "-Description="+md.Description)
	}
	return append(args, path)
}

// Tag writes md into path. Extensions outside the configured list return
// ErrUnsupported without running the tool.
func (t *ExifTool) Tag(ctx context.Context, path string, md Metadata) error {
	if !t.Supports(path) {
		t.logger.Debug("skipping metadata tagging for unsupported format", "path", path)
		return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	bin, err := exec.LookPath(t.binary)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, t.binary)
	}

	cmd := exec.CommandContext(ctx, bin, Args(path, md)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("exiftool failed: %w", err)
		}
		return fmt.Errorf("exiftool failed: %w: %s", err, msg)
	}

	t.logger.Debug("metadata written", "path", path)
	return nil
}
