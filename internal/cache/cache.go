package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/mediainspect/internal/identity"
	"github.com/hbomb79/mediainspect/internal/probe"
	"github.com/hbomb79/mediainspect/pkg/logger"
)

var (
	log = logger.Get("Cache")

	// ErrIO is wrapped by all errors caused by reading or writing
	// the persisted cache file.
	ErrIO = errors.New("cache storage access failed")
)

const FileName = "cache.json"

type (
	LoadOutcome int

	// Entry is the cached probe result for a single file identity, along with the
	// signature the file had when it was probed.
	Entry struct {
		Signature identity.Signature `json:"signature"`
		Probe     *probe.Record      `json:"probe"`
	}

	// CachedFile is a snapshot of a single cache entry, as returned by Entries.
	CachedFile struct {
		Identity identity.Identity
		Record   *probe.Record
	}

	persistedCache struct {
		Entries map[identity.Identity]Entry `json:"entries"`
	}
)

const (
	// NotLoaded indicates the store has not yet attempted to load its file.
	NotLoaded LoadOutcome = iota
	// Empty indicates there was no persisted cache file to load.
	Empty
	// Fresh indicates the persisted cache file was loaded successfully.
	Fresh
	// Recovered indicates the persisted cache file existed but could not be
	// decoded (or held an incomplete entry), and so the store started from an
	// empty cache.
	Recovered
)

// The Store is a persistent mapping of file identity to the probe result
// for that file. The content is loaded lazily from the file at 'filePath' by
// the first method call that needs it, and the entire mapping is rewritten
// to that file after every mutation.
//
// A single mutex guards the whole store; every exported method holds it for
// its full duration, so loading and then using the content is atomic with
// respect to other callers. Nothing protects the file from other processes:
// concurrent instances race, and the last writer wins.
type Store struct {
	*sync.Mutex
	filePath string
	outcome  LoadOutcome
	content  map[identity.Identity]Entry
}

// New constructs a Store which persists to a 'cache.json' file inside of the
// directory provided. The directory is created if it does not exist; failure to do
// so is returned as an error, as a store which can never persist is not useful.
//
// No content is loaded until the store is first used.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModeDir|0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache directory %q: %w", ErrIO, dir, err)
	}

	return NewWithPath(filepath.Join(dir, FileName)), nil
}

// NewWithPath constructs a store which persists to exactly the file path
// provided. The parent directory is assumed to exist.
func NewWithPath(filePath string) *Store {
	return &Store{
		Mutex:    &sync.Mutex{},
		filePath: filePath,
		outcome:  NotLoaded,
	}
}

func (store *Store) Path() string { return store.filePath }

// Load reads the persisted cache in to memory if that has not already happened,
// returning the outcome of the load. A cache file which exists but cannot be
// decoded is NOT an error: the cache is a pure optimisation, so the store is
// simply started empty and the 'Recovered' outcome is reported. Failing to read
// the file at all (permissions, etc) is returned as an error wrapping ErrIO, and
// the load will be retried by the next caller.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Load() (LoadOutcome, error) {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return NotLoaded, err
	}

	return store.outcome, nil
}

// Outcome returns how the store was loaded, or NotLoaded if it has
// not been used yet.
func (store *Store) Outcome() LoadOutcome {
	store.Lock()
	defer store.Unlock()

	return store.outcome
}

// Get returns a copy of the cached probe record for the identity provided, but
// only if the signature stored with it matches the signature given. Any mismatch, or
// the lack of an entry entirely, returns false which indicates the file must be
// probed again.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Get(id identity.Identity, sig identity.Signature) (*probe.Record, bool, error) {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return nil, false, err
	}

	entry, ok := store.content[id]
	if !ok {
		return nil, false, nil
	}

	if entry.Signature != sig {
		log.Emit(logger.DEBUG, "Cache entry for %s is stale (signature %s, expected %s)\n", id, entry.Signature, sig)
		return nil, false, nil
	}

	return entry.Probe.Clone(), true, nil
}

// Put stores the record provided against the identity, overwriting any existing
// entry, and then immediately persists the entire cache to disk.
//
// If persisting fails, the error is returned (wrapping ErrIO) but the in-memory
// entry is retained for the remainder of this process.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Put(id identity.Identity, sig identity.Signature, record *probe.Record) error {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return err
	}

	store.content[id] = Entry{Signature: sig, Probe: record.Clone()}
	return store.save()
}

// Entries returns a snapshot of every entry in the cache, ordered by identity.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Entries() ([]CachedFile, error) {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return nil, err
	}

	out := make([]CachedFile, 0, len(store.content))
	for id, entry := range store.content {
		out = append(out, CachedFile{Identity: id, Record: entry.Probe.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	return out, nil
}

// Len returns the number of entries in the cache.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Len() (int, error) {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return 0, err
	}

	return len(store.content), nil
}

// Prune removes every entry whose file no longer exists on disk, persisting the
// cache if anything was removed. The number of removed entries is returned.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (store *Store) Prune() (int, error) {
	store.Lock()
	defer store.Unlock()

	if err := store.ensureLoaded(); err != nil {
		return 0, err
	}

	removed := 0
	for id := range store.content {
		if _, err := os.Stat(id.String()); errors.Is(err, os.ErrNotExist) {
			log.Emit(logger.REMOVE, "Pruning cache entry for missing file %s\n", id)
			delete(store.content, id)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	return removed, store.save()
}

// ensureLoaded loads the persisted cache file exactly once. Callers must hold the mutex.
func (store *Store) ensureLoaded() error {
	if store.content != nil {
		return nil
	}

	content, err := os.ReadFile(store.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Emit(logger.DEBUG, "No cache file at %s, starting with an empty cache\n", store.filePath)
			store.content = make(map[identity.Identity]Entry)
			store.outcome = Empty
			return nil
		}

		return fmt.Errorf("%w: failed to read cache file %q: %w", ErrIO, store.filePath, err)
	}

	var persisted persistedCache
	if err := json.Unmarshal(content, &persisted); err != nil {
		log.Emit(logger.INFO, "Cache file %s could not be decoded (%s), starting with an empty cache\n", store.filePath, err.Error())
		store.content = make(map[identity.Identity]Entry)
		store.outcome = Recovered
		return nil
	}

	if persisted.Entries == nil {
		persisted.Entries = make(map[identity.Identity]Entry)
	}

	for id, entry := range persisted.Entries {
		if err := entry.validate(); err != nil {
			log.Emit(logger.INFO, "Cache file %s has an invalid entry for %s (%s), starting with an empty cache\n", store.filePath, id, err.Error())
			store.content = make(map[identity.Identity]Entry)
			store.outcome = Recovered
			return nil
		}
	}

	log.Emit(logger.DEBUG, "Loaded %d cache entries from %s\n", len(persisted.Entries), store.filePath)
	store.content = persisted.Entries
	store.outcome = Fresh
	return nil
}

// save encodes the entire cache to JSON and replaces the cache file with it. The
// content is written to a uniquely named temporary file in the same directory
// first and then renamed over the cache file, so a crash mid-write never leaves a
// truncated cache behind. Callers must hold the mutex.
func (store *Store) save() error {
	encoded, err := json.MarshalIndent(persistedCache{Entries: store.content}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode cache: %w", ErrIO, err)
	}

	dir := filepath.Dir(store.filePath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(store.filePath), uuid.NewString()))
	if err := writeAndSync(tmpPath, encoded); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to write cache file %q: %w", ErrIO, tmpPath, err)
	}

	if err := os.Rename(tmpPath, store.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to replace cache file %q: %w", ErrIO, store.filePath, err)
	}

	return nil
}

// validate rejects entries which decoded without error but are missing
// the parts of a probe record every row relies on.
func (entry Entry) validate() error {
	if entry.Signature == "" {
		return errors.New("missing signature")
	}
	if entry.Probe == nil {
		return errors.New("missing probe record")
	}
	if entry.Probe.Container.Size == "" || entry.Probe.Container.Duration == "" {
		return errors.New("probe record has no format size or duration")
	}
	for i, stream := range entry.Probe.Streams {
		if stream.CodecType == "" {
			return fmt.Errorf("stream %d has no codec_type", i)
		}
	}

	return nil
}

func writeAndSync(path string, content []byte) error {
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := handle.Write(content); err != nil {
		handle.Close()
		return err
	}
	if err := handle.Sync(); err != nil {
		handle.Close()
		return err
	}

	return handle.Close()
}

func (o LoadOutcome) String() string {
	switch o {
	case NotLoaded:
		return fmt.Sprintf("NOT_LOADED[%d]", o)
	case Empty:
		return fmt.Sprintf("EMPTY[%d]", o)
	case Fresh:
		return fmt.Sprintf("FRESH[%d]", o)
	case Recovered:
		return fmt.Sprintf("RECOVERED[%d]", o)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", o)
	}
}
