// Package tailer follows an append-only, rotatable text log file, yielding
// newly written lines on each call. Ported from original_source/tailer.py's
// TailFile class.
package tailer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// TailFile tracks an open handle, its inode, and a byte offset across calls
// to ReadAvailable, surviving log rotation (spec.md §4.1).
type TailFile struct {
	fs   afero.Fs
	path string

	startAtEnd bool
	openedOnce bool

	file   afero.File
	inode  uint64
	offset int64

	// partial holds a trailing line fragment with no terminating newline,
	// carried over to the next ReadAvailable call (spec.md §4.1 edge cases).
	partial []byte
}

// New constructs a TailFile for path. When startAtEnd is true, the first
// open seeks to the current end of file so only lines appended after
// construction are ever returned; subsequent reopens (after rotation)
// always start from the beginning of the new file.
func New(fs afero.Fs, path string, startAtEnd bool) *TailFile {
	return &TailFile{fs: fs, path: path, startAtEnd: startAtEnd}
}

// ReadAvailable returns up to maxLines newly appended lines. It is safe to
// call repeatedly; on any I/O error the handle is closed and cleared so the
// next call retries from scratch (spec.md §4.1).
func (t *TailFile) ReadAvailable(maxLines int) ([]string, error) {
	info, statErr := t.fs.Stat(t.path)
	if statErr != nil {
		// Path does not exist yet (or transiently vanished): no error
		// surfaced, just nothing to read this round.
		if os.IsNotExist(statErr) {
			return nil, nil
		}
		return nil, statErr
	}

	ino := inodeOf(info)

	if t.file == nil {
		if err := t.open(); err != nil {
			return nil, err
		}
	} else if ino != 0 && ino != t.inode {
		// Rotation: the path now refers to a different file. Close, reopen
		// from the start, and drop any held partial line from the old file.
		_ = t.file.Close()
		t.file = nil
		t.partial = nil
		if err := t.open(); err != nil {
			return nil, err
		}
	}

	t.inode = ino

	lines, err := t.readLines(maxLines)
	if err != nil {
		_ = t.file.Close()
		t.file = nil
		t.offset = 0
		return nil, err
	}
	return lines, nil
}

func (t *TailFile) open() error {
	f, err := t.fs.Open(t.path)
	if err != nil {
		return err
	}
	t.file = f
	t.offset = 0

	if info, statErr := t.fs.Stat(t.path); statErr == nil {
		t.inode = inodeOf(info)
	}

	if t.startAtEnd && !t.openedOnce {
		if seeker, ok := f.(io.Seeker); ok {
			end, seekErr := seeker.Seek(0, io.SeekEnd)
			if seekErr == nil {
				t.offset = end
			}
		}
	} else if t.offset > 0 {
		if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
			return err
		}
	}
	t.openedOnce = true
	return nil
}

func (t *TailFile) readLines(maxLines int) ([]string, error) {
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(t.file)
	var lines []string

	for maxLines <= 0 || len(lines) < maxLines {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 && err == nil {
			// complete line, possibly preceded by a held-over partial
			full := append(t.partial, chunk...)
			t.partial = nil
			t.offset += int64(len(chunk))
			lines = append(lines, decodeLenient(bytes.TrimRight(full, "\r\n")))
			continue
		}
		if err == io.EOF {
			// hold any trailing partial line for the next call; these bytes
			// are already consumed from the file, so advance offset past
			// them to avoid re-reading them on the next call.
			if len(chunk) > 0 {
				t.partial = append(t.partial, chunk...)
				t.offset += int64(len(chunk))
			}
			break
		}
		if err != nil {
			return lines, fmt.Errorf("error reading %q: %w", t.path, err)
		}
	}

	return lines, nil
}

// decodeLenient replaces invalid UTF-8 byte sequences rather than failing,
// matching the Python original's errors="replace" decoding.
func decodeLenient(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte("�")))
}

// Close releases the underlying file handle, if any.
func (t *TailFile) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}


