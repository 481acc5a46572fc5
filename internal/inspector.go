package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hbomb79/mediainspect/internal/acquire"
	"github.com/hbomb79/mediainspect/internal/cache"
	"github.com/hbomb79/mediainspect/internal/config"
	"github.com/hbomb79/mediainspect/internal/discover"
	"github.com/hbomb79/mediainspect/internal/fields"
	"github.com/hbomb79/mediainspect/internal/probe"
	"github.com/hbomb79/mediainspect/internal/query"
	"github.com/hbomb79/mediainspect/internal/render"
	"github.com/hbomb79/mediainspect/internal/watch"
	"github.com/hbomb79/mediainspect/pkg/logger"
)

var (
	log = logger.Get("Core")

	ErrNoPaths = errors.New("no paths provided")
)

type (
	// Options describe a single invocation of the inspector.
	Options struct {
		// Paths are the files and directories to inspect.
		Paths []string
		// Filters are the raw filter expressions to apply to the rows.
		Filters []string
		// Cached renders every entry of the metadata cache instead of
		// discovering and probing Paths.
		Cached bool
		// Prune removes cache entries for files which no longer exist
		// before anything else happens.
		Prune bool
		// Watch keeps the inspector running after the first render,
		// re-rendering whenever media beneath Paths changes.
		Watch bool
	}

	// Inspector owns the services required for a run: the metadata
	// cache, the acquisition service and the table renderer.
	Inspector struct {
		config     *config.Config
		store      *cache.Store
		acquirer   *acquire.Service
		discoverer *discover.Discoverer
		table      *render.Table
		sortBy     fields.Column
		direction  query.Direction
	}
)

// New constructs an Inspector using the validated configuration provided. If
// prober is nil, ffprobe (at the configured path) is used.
//
// Failure to create the cache directory is returned as an error, as nothing
// could ever be persisted.
func New(cfg *config.Config, out io.Writer, prober probe.Prober) (*Inspector, error) {
	sortBy, ok := fields.ParseColumn(cfg.Sort)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort column %q", config.ErrInvalid, cfg.Sort)
	}
	direction, ok := query.ParseDirection(cfg.Direction)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort direction %q", config.ErrInvalid, cfg.Direction)
	}

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	if prober == nil {
		prober = probe.NewFfprobeProber(cfg.FfprobePath)
	}

	log.Emit(logger.DEBUG, "Using cache at %s\n", store.Path())
	return &Inspector{
		config:     cfg,
		store:      store,
		acquirer:   acquire.New(acquire.Config{ProbeTimeout: time.Duration(cfg.ProbeTimeoutSeconds) * time.Second}, store, prober),
		discoverer: discover.New(cfg.Extensions),
		table:      render.New(out, render.Options{Color: cfg.UseColor()}),
		sortBy:     sortBy,
		direction:  direction,
	}, nil
}

// Run performs a single invocation of the inspector. Files which fail to be
// inspected are reported and skipped; only problems with the cache file as a
// whole, or with rendering, are returned.
//
// When watching, Run does not return until the context is cancelled.
func (inspector *Inspector) Run(ctx context.Context, opts Options) error {
	filters := query.ParseFilters(opts.Filters)
	for _, f := range filters {
		if !f.Valid() {
			log.Emit(logger.WARNING, "Ignoring filter: %v\n", f.Err())
		}
	}

	inspector.loadCache()

	if opts.Prune {
		removed, err := inspector.store.Prune()
		if err != nil {
			return err
		}
		log.Emit(logger.SUCCESS, "Pruned %d cache entries\n", removed)

		if !opts.Cached && len(opts.Paths) == 0 {
			return nil
		}
	}

	if opts.Cached {
		return inspector.renderCached(filters)
	}

	if len(opts.Paths) == 0 {
		return ErrNoPaths
	}

	if err := inspector.inspect(ctx, opts.Paths, filters); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}

	log.Emit(logger.INFO, "Watching for changes, press Ctrl+C to stop\n")
	watcher := watch.New(opts.Paths, time.Duration(inspector.config.WatchDebounceMillis)*time.Millisecond, inspector.discoverer.IsMedia)
	return watcher.Run(ctx, func(changed []string) {
		for _, path := range changed {
			log.Emit(logger.VERBOSE, "Changed: %s\n", path)
		}

		if err := inspector.inspect(ctx, opts.Paths, filters); err != nil {
			log.Emit(logger.ERROR, "Failed to refresh after changes: %v\n", err)
		}
	})
}

// inspect discovers, acquires and renders the media beneath the paths given.
func (inspector *Inspector) inspect(ctx context.Context, paths []string, filters []query.Filter) error {
	files, scan := inspector.discoverer.Discover(ctx, paths, func(s discover.Scan) {
		log.Emit(logger.VERBOSE, "Scanning: %d scanned, %d media files found (%s)\n", s.Scanned, s.Found, fields.FormatElapsed(s.Elapsed))
	})
	log.Emit(logger.INFO, "Scanning completed in %s: %d scanned, %d media files found\n", fields.FormatElapsed(scan.Elapsed), scan.Scanned, scan.Found)

	if len(files) == 0 {
		log.Emit(logger.WARNING, "No media files found!\n")
		return nil
	}

	var last acquire.Progress
	results, troubles := inspector.acquirer.AcquireAll(ctx, files, func(p acquire.Progress) {
		last = p
		log.Emit(logger.VERBOSE, "Processing: %d/%d files (%d from cache) (%s)\n", p.Processed, p.Total, p.Cached, fields.FormatElapsed(p.Elapsed))
	})
	log.Emit(logger.INFO, "Processed %d/%d files (%d from cache, %d failed) in %s\n", last.Processed, last.Total, last.Cached, last.Failed, fields.FormatElapsed(last.Elapsed))

	for _, trouble := range troubles {
		log.Emit(logger.ERROR, "Error processing %s\n", trouble)
	}

	rows := make([]fields.Row, 0, len(results))
	for _, result := range results {
		rows = append(rows, fields.Extract(result.Path, result.Record, inspector.fieldOptions()))
	}

	return inspector.render(rows, filters)
}

// loadCache loads the metadata cache up front so that a reset cache is
// reported once, rather than surfacing as every file being probed again.
// A cache which cannot be read at all is not fatal here: acquisition reports
// the failure against each file instead.
func (inspector *Inspector) loadCache() {
	outcome, err := inspector.store.Load()
	if err != nil {
		log.Emit(logger.ERROR, "Failed to read cache: %v\n", err)
		return
	}

	switch outcome {
	case cache.Recovered:
		log.Emit(logger.WARNING, "Cache at %s could not be used and has been reset, every file will be probed again\n", inspector.store.Path())
	case cache.Empty:
		log.Emit(logger.DEBUG, "No existing cache at %s\n", inspector.store.Path())
	default:
		if n, err := inspector.store.Len(); err == nil {
			log.Emit(logger.DEBUG, "Loaded %d cache entries\n", n)
		}
	}
}

// renderCached renders every entry of the metadata cache, without
// discovering or probing anything.
func (inspector *Inspector) renderCached(filters []query.Filter) error {
	entries, err := inspector.store.Entries()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		log.Emit(logger.WARNING, "No cached entries found!\n")
		return nil
	}

	rows := make([]fields.Row, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, fields.Extract(entry.Identity.String(), entry.Record, inspector.fieldOptions()))
	}

	return inspector.render(rows, filters)
}

func (inspector *Inspector) render(rows []fields.Row, filters []query.Filter) error {
	rows = query.Apply(rows, filters)
	query.Sort(rows, inspector.sortBy, inspector.direction)

	log.Emit(logger.DEBUG, "Rendering %d rows sorted by %s (%s)\n", len(rows), inspector.sortBy, inspector.direction)
	return inspector.table.Render(rows)
}

func (inspector *Inspector) fieldOptions() fields.Options {
	return fields.Options{FilenameLength: inspector.config.FilenameLength}
}
