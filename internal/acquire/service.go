package acquire

import (
	"context"
	"errors"
	"time"

	"github.com/hbomb79/mediainspect/internal/identity"
	"github.com/hbomb79/mediainspect/internal/probe"
	"github.com/hbomb79/mediainspect/pkg/logger"
)

var log = logger.Get("Acquire")

type (
	store interface {
		Get(identity.Identity, identity.Signature) (*probe.Record, bool, error)
		Put(identity.Identity, identity.Signature, *probe.Record) error
	}

	Config struct {
		// ProbeTimeout bounds how long a single prober invocation may run
		// before it is cancelled. Zero disables the bound.
		ProbeTimeout time.Duration
	}

	// Result is a successfully acquired probe record for a single file.
	Result struct {
		Path     string
		Identity identity.Identity
		Record   *probe.Record
		Cached   bool
	}

	// Progress is delivered to the observer given to AcquireAll after
	// each file has been processed (successfully or not).
	Progress struct {
		Processed int
		Total     int
		Cached    int
		Failed    int
		Elapsed   time.Duration
	}

	// Service is responsible for getting the probe record for a file,
	// preferring the metadata cache and falling back to the external prober.
	Service struct {
		store  store
		prober probe.Prober
		config Config
	}
)

func New(config Config, store store, prober probe.Prober) *Service {
	return &Service{store: store, prober: prober, config: config}
}

// Acquire returns the probe record for the file at the given path:
//   - The file's identity and signature are computed,
//   - The cache is consulted; a hit is returned without invoking the prober,
//   - On a miss, the prober is invoked and the result stored in the cache.
//
// Storing the fresh result is best-effort: if the cache cannot be persisted, a
// warning is logged and the freshly probed record is still returned.
//
// Any other failure is returned as a *Trouble, which only concerns this file.
func (service *Service) Acquire(ctx context.Context, path string) (*Result, error) {
	id, err := identity.Of(path)
	if err != nil {
		return nil, newTrouble(path, err)
	}

	sig, err := identity.SignatureOf(path)
	if err != nil {
		return nil, newTrouble(path, err)
	}

	if record, ok, err := service.store.Get(id, sig); err != nil {
		return nil, newTrouble(path, err)
	} else if ok {
		log.Emit(logger.VERBOSE, "Cache hit for %s\n", id)
		return &Result{Path: path, Identity: id, Record: record, Cached: true}, nil
	}

	probeCtx := ctx
	if service.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, service.config.ProbeTimeout)
		defer cancel()
	}

	log.Emit(logger.DEBUG, "Cache miss for %s, probing\n", id)
	record, err := service.prober.Probe(probeCtx, path)
	if err != nil {
		return nil, newTrouble(path, err)
	}
	if record == nil {
		return nil, newTrouble(path, errors.Join(probe.ErrProbe, errors.New("prober returned no record")))
	}

	if err := service.store.Put(id, sig, record); err != nil {
		log.Emit(logger.WARNING, "Failed to persist cache entry for %s: %s\n", id, err.Error())
	}

	return &Result{Path: path, Identity: id, Record: record, Cached: false}, nil
}

// AcquireAll acquires each path in turn (one prober invocation at a time),
// returning the successful results in the same order as the paths provided, and
// the troubles encountered along the way. A failing file never stops the others
// from being processed; only cancellation of the context does.
//
// The observer, if non-nil, is called after every file.
func (service *Service) AcquireAll(ctx context.Context, paths []string, observer func(Progress)) ([]*Result, []*Trouble) {
	results := make([]*Result, 0, len(paths))
	troubles := make([]*Trouble, 0)
	progress := Progress{Total: len(paths)}
	started := time.Now()

	for _, path := range paths {
		if ctx.Err() != nil {
			log.Emit(logger.STOP, "Acquisition cancelled with %d of %d files processed\n", progress.Processed, progress.Total)
			break
		}

		result, err := service.Acquire(ctx, path)
		progress.Processed++
		if err != nil {
			var trouble *Trouble
			if !errors.As(err, &trouble) {
				trouble = newTrouble(path, err)
			}

			progress.Failed++
			troubles = append(troubles, trouble)
		} else {
			if result.Cached {
				progress.Cached++
			}
			results = append(results, result)
		}

		if observer != nil {
			progress.Elapsed = time.Since(started)
			observer(progress)
		}
	}

	return results, troubles
}
