package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrInvalidPath      = errors.New("path cannot be empty string")
	ErrFileDoesNotExist = errors.New("file does not exist")
	ErrPathIsDir        = errors.New("given path is a directory, not a file")
)

// NowTS returns the current time as an integer UTC epoch second (spec.md §9
// time source note: a single wall clock, no attempt at log-time correlation).
func NowTS() int64 {
	return time.Now().UTC().Unix()
}

// FmtEpochUTC renders an epoch-second timestamp as an RFC3339 UTC string for
// display in the viewer's detail panes.
func FmtEpochUTC(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HumanInt formats large counters compactly for the viewer (e.g. 1.2k, 3.4M),
// carried from original_source/utils.py:human_int.
func HumanInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	var out string
	switch {
	case n < 1000:
		out = fmt.Sprintf("%d", n)
	case n < 1_000_000:
		out = fmt.Sprintf("%.1fk", float64(n)/1000)
	case n < 1_000_000_000:
		out = fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	default:
		out = fmt.Sprintf("%.1fG", float64(n)/1_000_000_000)
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseRelativePath resolves ~/ prefixed paths against the home directory
// and any path starting with "." (./x, ../x, .hidden) against the current
// working directory; other paths pass through unchanged.
func ParseRelativePath(dir string) (string, error) {
	if dir == "" {
		return "", ErrInvalidPath
	}
	switch {
	case strings.HasPrefix(dir, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, dir[2:]), nil
	case strings.HasPrefix(dir, "."):
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, dir), nil
	default:
		return dir, nil
	}
}

// ValidateFile checks that path exists and is a regular file, using afero so
// tests can substitute an in-memory filesystem.
func ValidateFile(afs afero.Fs, path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	exists, err := afero.Exists(afs, path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
	}
	isDir, err := afero.IsDir(afs, path)
	if err != nil {
		return err
	}
	if isDir {
		return fmt.Errorf("%w: %s", ErrPathIsDir, path)
	}
	return nil
}
