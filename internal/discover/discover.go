package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hbomb79/mediainspect/pkg/logger"
)

var log = logger.Get("Discover")

// DefaultExtensions are the file extensions (without the leading dot)
// considered media when no others are configured.
var DefaultExtensions = []string{
	"mp4", "mkv", "avi", "mov", "wmv", "flv", "webm", "m4v", "mpg", "mpeg", "m2v",
	"3gp", "3g2", "mxf", "ts", "mts", "m2ts", "vob", "ogv", "qt", "rm", "rmvb", "asf",
	"mp3", "wav", "flac", "m4a", "aac", "ogg", "wma", "opus",
}

type (
	// Scan reports the progress of a discovery run.
	Scan struct {
		Scanned int
		Found   int
		Elapsed time.Duration
	}

	// Discoverer finds media files beneath a set of paths.
	Discoverer struct {
		extensions map[string]struct{}
	}
)

func New(extensions []string) *Discoverer {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[normaliseExtension(ext)] = struct{}{}
	}

	return &Discoverer{extensions: exts}
}

// IsMedia returns true if the path has one of the configured media
// extensions (compared case-insensitively).
func (discoverer *Discoverer) IsMedia(path string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}

	_, ok := discoverer.extensions[normaliseExtension(ext)]
	return ok
}

// Discover returns every media file found at, or recursively beneath,
// each of the paths given. Regular files are included directly (if
// they are media), directories are walked in lexical order.
//
// Paths which cannot be accessed are logged and skipped; discovery of
// the remaining paths continues. The observer, if provided, is notified
// each time a media file is found.
func (discoverer *Discoverer) Discover(ctx context.Context, paths []string, observer func(Scan)) ([]string, Scan) {
	started := time.Now()
	found := make([]string, 0)
	scan := Scan{}

	visit := func(path string) {
		scan.Scanned++
		if !discoverer.IsMedia(path) {
			return
		}

		scan.Found++
		found = append(found, path)
		if observer != nil {
			scan.Elapsed = time.Since(started)
			observer(scan)
		}
	}

	for _, root := range paths {
		if ctx.Err() != nil {
			break
		}

		info, err := os.Stat(root)
		if err != nil {
			log.Emit(logger.WARNING, "Skipping path %s: %v\n", root, err)
			continue
		}

		if !info.IsDir() {
			if info.Mode().IsRegular() {
				visit(root)
			}
			continue
		}

		if err := discoverer.walk(ctx, root, visit); err != nil {
			log.Emit(logger.WARNING, "Walk of %s stopped early: %v\n", root, err)
		}
	}

	scan.Elapsed = time.Since(started)
	return found, scan
}

func (discoverer *Discoverer) walk(ctx context.Context, root string, visit func(string)) error {
	return filepath.WalkDir(root, func(path string, dir fs.DirEntry, err error) error {
		if err != nil {
			log.Emit(logger.WARNING, "Error accessing %s: %v\n", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if dir.IsDir() {
			return nil
		}

		if dir.Type()&fs.ModeSymlink != 0 {
			// Follow links to files, but never walk in to linked directories
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !dir.Type().IsRegular() {
			return nil
		}

		visit(path)
		return nil
	})
}

func normaliseExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
