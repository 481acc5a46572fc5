package acquire

import (
	"errors"
	"fmt"

	"github.com/hbomb79/mediainspect/internal/cache"
	"github.com/hbomb79/mediainspect/internal/identity"
	"github.com/hbomb79/mediainspect/internal/probe"
)

type (
	TroubleKind int

	// Trouble is the error returned when a single file could not be acquired. It
	// never aborts the processing of other files; the caller is expected to report
	// it and move on.
	Trouble struct {
		error
		kind TroubleKind
		path string
	}
)

const (
	// IOFailure indicates the file (or the cache) could not be accessed.
	IOFailure TroubleKind = iota
	// ProbeFailure indicates the external prober failed or produced garbage.
	ProbeFailure
)

func newTrouble(path string, err error) *Trouble {
	switch {
	case errors.Is(err, probe.ErrProbe):
		return &Trouble{error: err, kind: ProbeFailure, path: path}
	case errors.Is(err, identity.ErrIO), errors.Is(err, cache.ErrIO):
		return &Trouble{error: err, kind: IOFailure, path: path}
	}

	return &Trouble{error: err, kind: ProbeFailure, path: path}
}

func (t *Trouble) Kind() TroubleKind { return t.kind }
func (t *Trouble) Path() string      { return t.path }
func (t *Trouble) Unwrap() error     { return t.error }

func (t *Trouble) Error() string {
	return fmt.Sprintf("%s: %s", t.path, t.error.Error())
}

func (k TroubleKind) String() string {
	switch k {
	case IOFailure:
		return fmt.Sprintf("IO_FAILURE[%d]", k)
	case ProbeFailure:
		return fmt.Sprintf("PROBE_FAILURE[%d]", k)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", k)
	}
}
