package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

// Source is an in-memory workload.Source for tests. It serves deterministic
// bytes and can simulate a mid-stream failure.
type Source struct {
	AssetName   string
	ContentKind string
	Data        []byte

	// DeclaredSize overrides len(Data) when non-zero, for size-mismatch tests.
	DeclaredSize int64

	// FailAfter, when > 0, makes readers fail after that many bytes.
	FailAfter int

	// OpenErr, when set, is returned from Open.
	OpenErr error

	opens atomic.Int64
}

// NewSource creates a Source serving the given bytes.
func NewSource(name, contentType string, data []byte) *Source {
	return &Source{AssetName: name, ContentKind: contentType, Data: data}
}

// PatternSource creates a Source of the given size filled with a repeating
// deterministic pattern derived from the name.
func PatternSource(name, contentType string, size int) *Source {
	data := make([]byte, size)
	seed := byte(len(name))
	for i := range data {
		data[i] = seed + byte(i%251)
	}
	return &Source{AssetName: name, ContentKind: contentType, Data: data}
}

// Name returns the asset name.
func (s *Source) Name() string { return s.AssetName }

// Size returns the declared byte size.
func (s *Source) Size() int64 {
	if s.DeclaredSize != 0 {
		return s.DeclaredSize
	}
	return int64(len(s.Data))
}

// ContentType returns the source-side content-type.
func (s *Source) ContentType() string { return s.ContentKind }

// Open returns a fresh reader over the bytes.
func (s *Source) Open(_ context.Context) (io.ReadCloser, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opens.Add(1)
	if s.FailAfter > 0 {
		return &failingReader{
			Reader:    bytes.NewReader(s.Data),
			remaining: s.FailAfter,
		}, nil
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// Opens returns how many times the source was opened.
func (s *Source) Opens() int64 { return s.opens.Load() }

// failingReader errors once remaining bytes have been read.
type failingReader struct {
	*bytes.Reader
	remaining int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, fmt.Errorf("simulated transfer failure")
	}
	if len(p) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.Reader.Read(p)
	f.remaining -= n
	return n, err
}

func (f *failingReader) Close() error { return nil }
