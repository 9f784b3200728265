package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// File is a seekable, sized source backed by a local file.
type File struct {
	f      *os.File
	size   int64
	closed atomic.Bool
}

// OpenFile opens path for reading.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat file: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("source: %s is a directory", path)
	}
	return &File{f: f, size: st.Size()}, nil
}

// Name returns the path the file was opened with.
func (s *File) Name() string { return s.f.Name() }

func (s *File) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *File) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

// Size returns the file length at open time.
func (s *File) Size() int64 { return s.size }

// OKToRead reports true until Close.
func (s *File) OKToRead() bool { return !s.closed.Load() }

// Close releases the file. It is safe to call more than once.
func (s *File) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.f.Close()
}

// Memory is a seekable, sized source over a byte slice.
type Memory struct {
	*bytes.Reader
	halted atomic.Bool
}

// NewMemory returns a source reading from b. The slice is not copied.
func NewMemory(b []byte) *Memory {
	return &Memory{Reader: bytes.NewReader(b)}
}

// OKToRead reports true until Close.
func (m *Memory) OKToRead() bool { return !m.halted.Load() }

// Close marks the source as no longer readable.
func (m *Memory) Close() error {
	m.halted.Store(true)
	return nil
}

var (
	_ io.ReadSeekCloser = (*File)(nil)
	_ io.ReadSeekCloser = (*Memory)(nil)
	_ Sizer             = (*File)(nil)
	_ Sizer             = (*Memory)(nil)
)
