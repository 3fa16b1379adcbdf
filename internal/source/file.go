package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"

	"github.com/redactyl/livegrab/internal/types"
)

// sniffLen is how much of a file mimetype needs to classify it.
const sniffLen = 3072

// File streams a regular file in overlapping chunks.
type File struct {
	Path      string
	ChunkSize int
	Carry     int
	// ReadBinary disables skipping of media and archive files.
	ReadBinary bool
}

// NewFile returns a reader for path using the default chunking.
func NewFile(path string) *File {
	return &File{Path: path, ChunkSize: DefaultChunkSize, Carry: DefaultCarry}
}

func (f *File) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceFile, Location: f.Path}
}

func (f *File) Open(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := homedir.Expand(f.Path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	if !st.Mode().IsRegular() && st.Mode()&os.ModeNamedPipe == 0 {
		_ = fh.Close()
		return nil, fmt.Errorf("%s is not a regular file", p)
	}
	desc := f.Descriptor()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(fh, head)
	head = head[:n]
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		_ = fh.Close()
		return nil, err
	}
	if !f.ReadBinary && n > 0 {
		if m := mimetype.Detect(head); skipMIME(m) {
			log.Debugf("(source/file) skipping %s: %s", p, m.String())
			_ = fh.Close()
			return &chunkList{}, nil
		}
	}
	r := struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), fh), fh}
	return newStream(r, desc, f.ChunkSize, f.Carry), nil
}

var skippedMIME = []string{
	"application/zip", "application/gzip", "application/x-tar", "application/x-xz",
	"application/x-7z-compressed", "application/x-bzip2", "application/zstd",
	"application/pdf", "application/wasm",
}

func skipMIME(m *mimetype.MIME) bool {
	s := m.String()
	for _, prefix := range []string{"image/", "audio/", "video/", "font/"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	for _, t := range skippedMIME {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// FileGlob expands pattern (doublestar syntax, ~ allowed) into file readers.
// A pattern without meta characters yields a single reader even when the
// file does not exist, so the failure surfaces as a source error.
func FileGlob(pattern string, chunkSize, carry int) ([]Reader, error) {
	expanded, err := homedir.Expand(pattern)
	if err != nil {
		return nil, err
	}
	mk := func(p string) Reader {
		f := NewFile(p)
		if chunkSize > 0 {
			f.ChunkSize = chunkSize
		}
		if carry >= 0 {
			f.Carry = carry
		}
		return f
	}
	if !strings.ContainsAny(expanded, "*?[{") {
		return []Reader{mk(pattern)}, nil
	}
	matches, err := doublestar.FilepathGlob(expanded, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	out := make([]Reader, 0, len(matches))
	for _, m := range matches {
		out = append(out, mk(filepath.Clean(m)))
	}
	return out, nil
}
