package probe

import "fmt"

const (
	VideoCodecType = "video"
	AudioCodecType = "audio"
)

type (
	// Record is the typed result of probing a single media file. The
	// JSON shape mirrors the subset of ffprobe's report that we care about,
	// which is also the shape persisted in the metadata cache.
	Record struct {
		Streams   []Stream  `json:"streams"`
		Container Container `json:"format"`
	}

	// Stream describes a single stream within a container. Every field except
	// CodecType is optional; nil means ffprobe did not report it.
	Stream struct {
		CodecType   string  `json:"codec_type"`
		CodecName   *string `json:"codec_name,omitempty"`
		Profile     *string `json:"profile,omitempty"`
		Width       *int    `json:"width,omitempty"`
		Height      *int    `json:"height,omitempty"`
		FrameRate   *string `json:"r_frame_rate,omitempty"`
		BitRate     *string `json:"bit_rate,omitempty"`
		PixelFormat *string `json:"pix_fmt,omitempty"`
		Channels    *int    `json:"channels,omitempty"`
	}

	// Container holds the format-level information. Size and Duration are decimal
	// strings (bytes and seconds respectively), exactly as ffprobe reports them.
	Container struct {
		Filename string  `json:"filename"`
		Size     string  `json:"size"`
		Duration string  `json:"duration"`
		BitRate  *string `json:"bit_rate,omitempty"`
	}
)

// Video returns the first video stream reported by the prober, or nil
// if the record contains no video.
func (record *Record) Video() *Stream { return record.firstOfType(VideoCodecType) }

// Audio returns the first audio stream reported by the prober, or nil
// if the record contains no audio.
func (record *Record) Audio() *Stream { return record.firstOfType(AudioCodecType) }

func (record *Record) firstOfType(codecType string) *Stream {
	for i := range record.Streams {
		if record.Streams[i].CodecType == codecType {
			return &record.Streams[i]
		}
	}

	return nil
}

// Clone returns a deep copy of the record, such that modifications to the
// copy are never visible to the original (which may be held by the cache).
func (record *Record) Clone() *Record {
	out := &Record{
		Streams:   make([]Stream, len(record.Streams)),
		Container: record.Container,
	}
	out.Container.BitRate = cloneRef(record.Container.BitRate)

	for i, s := range record.Streams {
		out.Streams[i] = Stream{
			CodecType:   s.CodecType,
			CodecName:   cloneRef(s.CodecName),
			Profile:     cloneRef(s.Profile),
			Width:       cloneRef(s.Width),
			Height:      cloneRef(s.Height),
			FrameRate:   cloneRef(s.FrameRate),
			BitRate:     cloneRef(s.BitRate),
			PixelFormat: cloneRef(s.PixelFormat),
			Channels:    cloneRef(s.Channels),
		}
	}

	return out
}

func (record *Record) String() string {
	return fmt.Sprintf("{record file=%s | streams=%d | size=%s | duration=%s}", record.Container.Filename, len(record.Streams), record.Container.Size, record.Container.Duration)
}

func cloneRef[T any](v *T) *T {
	if v == nil {
		return nil
	}

	out := *v
	return &out
}
