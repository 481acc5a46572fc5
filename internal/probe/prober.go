package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hbomb79/mediainspect/pkg/logger"
	"github.com/mitchellh/mapstructure"
)

var (
	log = logger.Get("Probe")

	// ErrProbe is wrapped by every error caused by the external prober itself:
	// a non-zero exit, or output that cannot be decoded in to a Record.
	ErrProbe = errors.New("probe failed")
)

type (
	// Prober extracts a Record from the media file at the given path.
	Prober interface {
		Probe(ctx context.Context, path string) (*Record, error)
	}

	// FfprobeProber runs the ffprobe binary found at BinaryPath, requesting
	// a JSON report of the container format and all streams.
	FfprobeProber struct {
		BinaryPath string
	}
)

func NewFfprobeProber(binaryPath string) *FfprobeProber {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}

	return &FfprobeProber{BinaryPath: binaryPath}
}

// Probe runs a single ffprobe call against the path provided and parses the
// JSON report it emits. If ffprobe exits with a non-zero status then the
// error returned will wrap ErrProbe and contain ffprobe's diagnostic output.
//
// The command is bound to the context provided, so cancelling it (or
// letting its deadline expire) will kill a hung ffprobe process.
func (prober *FfprobeProber) Probe(ctx context.Context, path string) (*Record, error) {
	cmd := exec.CommandContext(ctx, prober.BinaryPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Emit(logger.VERBOSE, "Running %s for %s\n", prober.BinaryPath, path)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: ffprobe %q did not complete: %w", ErrProbe, path, ctxErr)
		}

		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return nil, fmt.Errorf("%w: ffprobe %q: %s", ErrProbe, path, diagnostic)
	}

	return ParseOutput(stdout.Bytes())
}

// ParseOutput converts raw ffprobe JSON in to a Record. The report must contain
// a 'format' object (with a size and duration) and a 'streams' array in which
// every stream declares its codec_type; anything else is considered malformed.
//
// Decoding is weakly typed, so numeric fields may be given as either JSON
// numbers or strings.
func ParseOutput(data []byte) (*Record, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: output is not valid JSON: %s", ErrProbe, err.Error())
	}

	if err := validateStructure(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProbe, err.Error())
	}

	record := &Record{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           record,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: output could not be decoded: %s", ErrProbe, err.Error())
	}

	return record, nil
}

func validateStructure(raw map[string]interface{}) error {
	format, ok := raw["format"].(map[string]interface{})
	if !ok {
		return errors.New("output is missing the 'format' section")
	}
	for _, key := range []string{"size", "duration"} {
		if _, ok := format[key]; !ok {
			return fmt.Errorf("format section is missing '%s'", key)
		}
	}

	streams, ok := raw["streams"].([]interface{})
	if !ok {
		return errors.New("output is missing the 'streams' section")
	}
	for i, s := range streams {
		stream, ok := s.(map[string]interface{})
		if !ok {
			return fmt.Errorf("stream %d is not an object", i)
		}
		if _, ok := stream["codec_type"]; !ok {
			return fmt.Errorf("stream %d has no codec_type", i)
		}
	}

	return nil
}
