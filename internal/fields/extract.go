package fields

import (
	"path/filepath"

	"github.com/hbomb79/mediainspect/internal/probe"
)

const unknownFilename = "Unknown"

type (
	Options struct {
		// FilenameLength is the maximum number of characters of the
		// filename column. Zero disables truncation.
		FilenameLength int
	}

	// Row is the ten display fields of a single media file,
	// indexed by Column.
	Row [columnCount]string
)

// Get returns the display string for the given column, or an empty
// string if the column is not known.
func (row Row) Get(column Column) string {
	if column < 0 || column >= columnCount {
		return ""
	}

	return row[column]
}

// Extract produces the display row for the media file at the given path
// using the probe record provided. Fields which cannot be derived from the
// record are left empty.
func Extract(path string, record *probe.Record, opts Options) Row {
	row := Row{}
	row[FilenameColumn] = TruncateMiddle(filename(path), opts.FilenameLength)
	if record == nil {
		return row
	}

	row[SizeColumn] = FormatSize(record.Container.Size)
	row[DurationColumn] = FormatDuration(record.Container.Duration)

	// Bitrate is taken from the container, but only reported for files with video
	if video := record.Video(); video != nil {
		row[FpsColumn] = FormatFrameRate(deref(video.FrameRate))
		if record.Container.BitRate != nil {
			row[BitrateColumn] = FormatBitrate(*record.Container.BitRate)
		}
		row[ResolutionColumn] = FormatResolution(deref(video.Width), deref(video.Height))
		row[CodecColumn] = deref(video.CodecName)
		row[ProfileColumn] = deref(video.Profile)
		row[DepthColumn] = BitDepth(deref(video.PixelFormat))
	}

	if audio := record.Audio(); audio != nil {
		row[AudioColumn] = FormatAudio(deref(audio.Channels), deref(audio.BitRate))
	}

	return row
}

func filename(path string) string {
	base := filepath.Base(path)
	if path == "" || base == "." || base == string(filepath.Separator) {
		return unknownFilename
	}

	return base
}

func deref[T any](ref *T) T {
	if ref == nil {
		var zero T
		return zero
	}

	return *ref
}
