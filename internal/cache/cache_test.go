package cache_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hbomb79/mediainspect/internal/cache"
	"github.com/hbomb79/mediainspect/internal/identity"
	"github.com/hbomb79/mediainspect/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

func ptr[T any](v T) *T { return &v }

func sampleRecord(name string) *probe.Record {
	return &probe.Record{
		Streams: []probe.Stream{
			{CodecType: "video", CodecName: ptr("h264"), Width: ptr(1920), Height: ptr(1080), FrameRate: ptr("25/1"), PixelFormat: ptr("yuv420p")},
			{CodecType: "audio", CodecName: ptr("aac"), Channels: ptr(2), BitRate: ptr("128000")},
		},
		Container: probe.Container{Filename: name, Size: "1500000000", Duration: "3600.0", BitRate: ptr("3333333")},
	}
}

func newStore(t *testing.T) *cache.Store {
	store, err := cache.New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return store
}

func Test_New_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := cache.New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, cache.FileName), store.Path())
}

func Test_New_DirectoryUncreatable(t *testing.T) {
	dir := fs.NewDir(t, "cache", fs.WithFile("occupied", "I am a file"))

	_, err := cache.New(dir.Join("occupied", "cache"))
	assert.ErrorIs(t, err, cache.ErrIO)
}

func Test_Load_IsLazy(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, cache.NotLoaded, store.Outcome())

	_, ok, err := store.Get("/missing", "1-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, cache.Empty, store.Outcome())
}

func Test_PutThenGet(t *testing.T) {
	store := newStore(t)
	record := sampleRecord("a.mp4")

	require.NoError(t, store.Put("/media/a.mp4", "10-100", record))

	got, ok, err := store.Get("/media/a.mp4", "10-100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record, got)

	_, ok, err = store.Get("/media/a.mp4", "10-101")
	require.NoError(t, err)
	assert.False(t, ok, "a different signature must be treated as a miss")

	_, ok, err = store.Get("/media/b.mp4", "10-100")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Get_ReturnsCopy(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put("/media/a.mp4", "10-100", sampleRecord("a.mp4")))

	first, _, err := store.Get("/media/a.mp4", "10-100")
	require.NoError(t, err)
	*first.Streams[0].Width = 1
	first.Container.Size = "0"

	second, _, err := store.Get("/media/a.mp4", "10-100")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord("a.mp4"), second)
}

func Test_Put_PersistsAcrossStores(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := cache.New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("/media/a.mp4", "10-100", sampleRecord("a.mp4")))
	require.NoError(t, store.Put("/media/b.mkv", "20-200", sampleRecord("b.mkv")))

	reopened, err := cache.New(dir)
	require.NoError(t, err)

	outcome, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, cache.Fresh, outcome)

	got, ok, err := reopened.Get("/media/b.mkv", "20-200")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRecord("b.mkv"), got)

	size, err := reopened.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func Test_Put_FileIsHumanReadableJSON(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put("/media/a.mp4", "10-100", sampleRecord("a.mp4")))

	content, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var decoded map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(content, &decoded))
	entry := decoded["entries"]["/media/a.mp4"]
	assert.Equal(t, "10-100", entry["signature"])
	assert.Contains(t, entry["probe"], "streams")
	assert.Contains(t, entry["probe"], "format")
	assert.Contains(t, string(content), "\n  ", "cache file should be indented")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary files must not be left behind")
}

func Test_Load_CorruptFileRecovers(t *testing.T) {
	dir := fs.NewDir(t, "cache", fs.WithFile(cache.FileName, `{"entries": {"/media/a.mp4": `))

	store := cache.NewWithPath(dir.Join(cache.FileName))
	outcome, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cache.Recovered, outcome)

	_, ok, err := store.Get("/media/a.mp4", "10-100")
	require.NoError(t, err)
	assert.False(t, ok)

	// The next successful put should replace the corrupt file with a valid one
	require.NoError(t, store.Put("/media/a.mp4", "10-100", sampleRecord("a.mp4")))
	reopened := cache.NewWithPath(dir.Join(cache.FileName))
	outcome, err = reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, cache.Fresh, outcome)
}

func Test_Load_IncompleteEntriesRecover(t *testing.T) {
	tests := []struct {
		summary string
		content string
	}{
		{
			summary: "legacy probe_data layout",
			content: `{"entries": {"/media/a.mp4": {"signature": "10-100", "probe_data": {"streams": [], "format": {"filename": "a.mp4", "size": "10", "duration": "1.0"}}}}}`,
		},
		{
			summary: "null probe record",
			content: `{"entries": {"/media/a.mp4": {"signature": "10-100", "probe": null}}}`,
		},
		{
			summary: "missing signature",
			content: `{"entries": {"/media/a.mp4": {"probe": {"streams": [], "format": {"size": "10", "duration": "1.0"}}}}}`,
		},
		{
			summary: "format without duration",
			content: `{"entries": {"/media/a.mp4": {"signature": "10-100", "probe": {"streams": [], "format": {"size": "10"}}}}}`,
		},
		{
			summary: "stream without codec_type",
			content: `{"entries": {"/media/a.mp4": {"signature": "10-100", "probe": {"streams": [{"codec_name": "h264"}], "format": {"size": "10", "duration": "1.0"}}}}}`,
		},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			dir := fs.NewDir(t, "cache", fs.WithFile(cache.FileName, test.content))

			store := cache.NewWithPath(dir.Join(cache.FileName))
			outcome, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, cache.Recovered, outcome)

			record, ok, err := store.Get("/media/a.mp4", "10-100")
			require.NoError(t, err)
			assert.False(t, ok, "an incomplete entry must be probed again")
			assert.Nil(t, record)
		})
	}
}

func Test_Load_EmptyEntriesObject(t *testing.T) {
	dir := fs.NewDir(t, "cache", fs.WithFile(cache.FileName, `{}`))

	store := cache.NewWithPath(dir.Join(cache.FileName))
	require.NoError(t, store.Put("/media/a.mp4", "1-1", sampleRecord("a.mp4")))
	assert.Equal(t, cache.Fresh, store.Outcome())
}

func Test_Load_UnreadableFile(t *testing.T) {
	// A directory where the cache file should be cannot be read as a file
	dir := fs.NewDir(t, "cache", fs.WithDir(cache.FileName))

	store := cache.NewWithPath(dir.Join(cache.FileName))
	_, err := store.Load()
	assert.ErrorIs(t, err, cache.ErrIO)

	_, _, err = store.Get("/media/a.mp4", "1-1")
	assert.ErrorIs(t, err, cache.ErrIO)
	assert.Equal(t, cache.NotLoaded, store.Outcome())
}

func Test_Put_PersistFailureRetainsEntry(t *testing.T) {
	store := cache.NewWithPath(filepath.Join(t.TempDir(), "does-not-exist", cache.FileName))

	err := store.Put("/media/a.mp4", "10-100", sampleRecord("a.mp4"))
	assert.ErrorIs(t, err, cache.ErrIO)

	got, ok, err := store.Get("/media/a.mp4", "10-100")
	require.NoError(t, err)
	assert.True(t, ok, "in-memory entry should survive a failed persist")
	assert.Equal(t, sampleRecord("a.mp4"), got)
}

func Test_Entries_SortedSnapshot(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put("/media/c.mkv", "1-1", sampleRecord("c.mkv")))
	require.NoError(t, store.Put("/media/a.mp4", "1-1", sampleRecord("a.mp4")))
	require.NoError(t, store.Put("/media/b.avi", "1-1", sampleRecord("b.avi")))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, identity.Identity("/media/a.mp4"), entries[0].Identity)
	assert.Equal(t, identity.Identity("/media/b.avi"), entries[1].Identity)
	assert.Equal(t, identity.Identity("/media/c.mkv"), entries[2].Identity)
	assert.Equal(t, "b.avi", entries[1].Record.Container.Filename)
}

func Test_Prune_RemovesVanishedFiles(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("kept.mp4", "x"))
	store := newStore(t)

	kept := identity.Identity(media.Join("kept.mp4"))
	gone := identity.Identity(media.Join("gone.mp4"))
	require.NoError(t, store.Put(kept, "1-1", sampleRecord("kept.mp4")))
	require.NoError(t, store.Put(gone, "1-1", sampleRecord("gone.mp4")))

	removed, err := store.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	reopened := cache.NewWithPath(store.Path())
	entries, err := reopened.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, kept, entries[0].Identity)

	removed, err = reopened.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func Test_Store_ConcurrentAccess(t *testing.T) {
	store := newStore(t)

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := identity.Identity(fmt.Sprintf("/media/%d.mp4", i))
			assert.NoError(t, store.Put(id, "1-1", sampleRecord(id.String())))
			_, ok, err := store.Get(id, "1-1")
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	size, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 8, size)
}
