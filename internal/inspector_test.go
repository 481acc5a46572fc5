package internal_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hbomb79/mediainspect/internal"
	"github.com/hbomb79/mediainspect/internal/cache"
	"github.com/hbomb79/mediainspect/internal/config"
	"github.com/hbomb79/mediainspect/internal/probe"
	"github.com/hbomb79/mediainspect/internal/probe/mocks"
	"github.com/hbomb79/mediainspect/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

func ptr[T any](v T) *T { return &v }

func videoRecord(bitRate string, duration string) *probe.Record {
	return &probe.Record{
		Streams: []probe.Stream{
			{CodecType: "video", CodecName: ptr("h264"), Profile: ptr("High"), Width: ptr(1920), Height: ptr(1080), FrameRate: ptr("25/1"), PixelFormat: ptr("yuv420p")},
			{CodecType: "audio", CodecName: ptr("aac"), Channels: ptr(2), BitRate: ptr("128000")},
		},
		Container: probe.Container{Size: "1500000000", Duration: duration, BitRate: ptr(bitRate)},
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		CacheDir:            filepath.Join(t.TempDir(), "cache"),
		FfprobePath:         "ffprobe",
		ProbeTimeoutSeconds: 5,
		FilenameLength:      65,
		Sort:                "bitrate",
		Direction:           "desc",
		Color:               config.ColorNever,
		LogLevel:            "verbose",
		WatchDebounceMillis: 100,
	}
}

// dataLines returns the lines of the rendered table between the header
// separator and the bottom edge.
func dataLines(out string) []string {
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) < 4 {
		return nil
	}

	return lines[3 : len(lines)-1]
}

func Test_Run_InspectsSortsAndCaches(t *testing.T) {
	media := fs.NewDir(t, "media",
		fs.WithFile("slow.mkv", "a"),
		fs.WithFile("fast.mkv", "b"),
		fs.WithFile("readme.txt", "c"),
	)

	prober := mocks.NewMockProber(t)
	prober.EXPECT().Probe(mock.Anything, media.Join("slow.mkv")).Return(videoRecord("3500000", "3600"), nil).Once()
	prober.EXPECT().Probe(mock.Anything, media.Join("fast.mkv")).Return(videoRecord("7200000", "5400"), nil).Once()

	cfg := testConfig(t)
	out := &bytes.Buffer{}
	inspector, err := internal.New(cfg, out, prober)
	require.NoError(t, err)

	require.NoError(t, inspector.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))
	lines := dataLines(out.String())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "fast.mkv")
	assert.Contains(t, lines[0], "7.20 Mbps")
	assert.Contains(t, lines[1], "slow.mkv")
	assert.NotContains(t, out.String(), "readme.txt")

	// A second run (with a fresh inspector sharing the cache directory) must not probe again
	out.Reset()
	again, err := internal.New(cfg, out, prober)
	require.NoError(t, err)
	require.NoError(t, again.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))
	assert.Len(t, dataLines(out.String()), 2)
}

func Test_Run_Filters(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("slow.mkv", "a"), fs.WithFile("fast.mkv", "b"))

	prober := mocks.NewMockProber(t)
	prober.EXPECT().Probe(mock.Anything, media.Join("slow.mkv")).Return(videoRecord("3500000", "3600"), nil)
	prober.EXPECT().Probe(mock.Anything, media.Join("fast.mkv")).Return(videoRecord("7200000", "5400"), nil)

	out := &bytes.Buffer{}
	inspector, err := internal.New(testConfig(t), out, prober)
	require.NoError(t, err)

	require.NoError(t, inspector.Run(context.Background(), internal.Options{
		Paths:   []string{media.Path()},
		Filters: []string{"bitrate:>:5", "nonsense"},
	}))

	lines := dataLines(out.String())
	require.Len(t, lines, 1, "invalid filters are ignored, valid ones applied")
	assert.Contains(t, lines[0], "fast.mkv")
}

func Test_Run_FailuresDoNotAbort(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("good.mkv", "a"), fs.WithFile("bad.mkv", "b"))

	prober := mocks.NewMockProber(t)
	prober.EXPECT().Probe(mock.Anything, media.Join("good.mkv")).Return(videoRecord("3500000", "3600"), nil)
	prober.EXPECT().Probe(mock.Anything, media.Join("bad.mkv")).Return(nil, errors.Join(probe.ErrProbe, errors.New("moov atom not found")))

	out := &bytes.Buffer{}
	inspector, err := internal.New(testConfig(t), out, prober)
	require.NoError(t, err)

	require.NoError(t, inspector.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))
	lines := dataLines(out.String())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "good.mkv")
}

func Test_Run_NoMediaFound(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("notes.txt", ""))

	out := &bytes.Buffer{}
	inspector, err := internal.New(testConfig(t), out, mocks.NewMockProber(t))
	require.NoError(t, err)

	assert.NoError(t, inspector.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))
	assert.Empty(t, out.String())
}

func Test_Run_NoPaths(t *testing.T) {
	inspector, err := internal.New(testConfig(t), &bytes.Buffer{}, mocks.NewMockProber(t))
	require.NoError(t, err)

	assert.ErrorIs(t, inspector.Run(context.Background(), internal.Options{}), internal.ErrNoPaths)
}

func Test_Run_CachedAndPrune(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("one.mkv", "a"), fs.WithFile("two.mkv", "b"))

	prober := mocks.NewMockProber(t)
	prober.EXPECT().Probe(mock.Anything, mock.Anything).Return(videoRecord("3500000", "3600"), nil).Twice()

	cfg := testConfig(t)
	inspector, err := internal.New(cfg, &bytes.Buffer{}, prober)
	require.NoError(t, err)
	require.NoError(t, inspector.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))

	out := &bytes.Buffer{}
	cached, err := internal.New(cfg, out, prober)
	require.NoError(t, err)
	require.NoError(t, cached.Run(context.Background(), internal.Options{Cached: true}))
	assert.Len(t, dataLines(out.String()), 2, "cached mode renders every entry without probing")

	media.Remove()
	out.Reset()
	pruned, err := internal.New(cfg, out, prober)
	require.NoError(t, err)
	require.NoError(t, pruned.Run(context.Background(), internal.Options{Prune: true}))
	assert.Empty(t, out.String(), "prune alone renders nothing")

	require.NoError(t, pruned.Run(context.Background(), internal.Options{Cached: true}))
	assert.Empty(t, out.String(), "an empty cache renders nothing")
}

func Test_New_UncreatableCacheDir(t *testing.T) {
	blocker := fs.NewFile(t, "blocker")
	cfg := testConfig(t)
	cfg.CacheDir = filepath.Join(blocker.Path(), "cache")

	_, err := internal.New(cfg, &bytes.Buffer{}, mocks.NewMockProber(t))
	assert.Error(t, err)
}

func Test_Run_ReportsResetCache(t *testing.T) {
	media := fs.NewDir(t, "media", fs.WithFile("a.mkv", "a"))
	cacheDir := fs.NewDir(t, "cache", fs.WithFile(cache.FileName, `{"entries": {"/media/a.mkv": {"signature": "1-1", "probe_data": {}}}}`))

	logs := &bytes.Buffer{}
	logger.SetOutput(logs)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	prober := mocks.NewMockProber(t)
	prober.EXPECT().Probe(mock.Anything, media.Join("a.mkv")).Return(videoRecord("3500000", "3600"), nil).Once()

	cfg := testConfig(t)
	cfg.CacheDir = cacheDir.Path()
	out := &bytes.Buffer{}
	inspector, err := internal.New(cfg, out, prober)
	require.NoError(t, err)

	require.NoError(t, inspector.Run(context.Background(), internal.Options{Paths: []string{media.Path()}}))
	assert.Contains(t, logs.String(), "has been reset")
	assert.Len(t, dataLines(out.String()), 1)
}
