// Package identity computes the cache key for a media file (its canonical
// path) and the signature used to decide whether a cached probe is still fresh.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrIO is wrapped by every error caused by the file system refusing to
// tell us about a file (missing, unreadable, vanished mid-run...)
var ErrIO = errors.New("file system access failed")

type (
	// Identity is the canonical absolute path of a file. Two relative paths
	// that resolve to the same file (including through symlinks) share
	// the same Identity.
	Identity string

	// Signature is a cheap fingerprint of a file, "<size>-<mtime unix seconds>".
	// Any change to either component produces a different Signature.
	Signature string
)

// Of resolves the path provided to its canonical absolute form.
func Of(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve absolute path of %q: %w", ErrIO, path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %q: %w", ErrIO, path, err)
	}

	return Identity(resolved), nil
}

// SignatureOf reads the size and modification time of the file at
// the path provided.
func SignatureOf(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read metadata of %q: %w", ErrIO, path, err)
	}

	return newSignature(info.Size(), info.ModTime().Unix()), nil
}

func newSignature(size int64, modifiedUnix int64) Signature {
	return Signature(fmt.Sprintf("%d-%d", size, modifiedUnix))
}

func (id Identity) String() string  { return string(id) }
func (sig Signature) String() string { return string(sig) }
