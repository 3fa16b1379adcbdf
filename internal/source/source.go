// Package source defines live data sources and the readers that pull chunks
// from them: environment blocks, processes, files, HTTP endpoints, Kubernetes
// objects, container image configs and git checkouts.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/redactyl/livegrab/internal/types"
)

const (
	// DefaultChunkSize is the number of new bytes a streaming reader delivers per chunk.
	DefaultChunkSize = 64 << 10
	// DefaultCarry is how many trailing bytes of a chunk are repeated at the
	// start of the next one. It must be at least twice the longest secret a
	// detector can report, or secrets straddling a boundary are missed.
	DefaultCarry = 16 << 10
)

// Chunk is one piece of source data handed to the detectors.
type Chunk struct {
	Data       []byte
	Provenance types.SourceDescriptor
	// Offset is the position of Data[0] within the source stream.
	Offset int64
	// Carry is the number of trailing bytes of Data that the next chunk
	// repeats. It is zero for the final chunk and for readers that do not
	// split their data.
	Carry int
	// Lead is the number of leading bytes of Data repeated from the previous
	// chunk's Carry.
	Lead int
}

// Owns reports whether a hit starting at start belongs to this chunk. Each
// overlap is split at its midpoint: the earlier chunk owns starts in the
// first half and the later chunk owns starts in the second.
func (c Chunk) Owns(start int) bool {
	if start < c.Lead/2 {
		return false
	}
	return c.Carry == 0 || start < len(c.Data)-c.Carry+c.Carry/2
}

// Reader is a live source that can be opened once per capture run.
type Reader interface {
	Descriptor() types.SourceDescriptor
	Open(ctx context.Context) (Handle, error)
}

// Handle is an opened source. Next returns io.EOF once the source is
// exhausted or has vanished; any other error is a mid-stream failure.
type Handle interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}

// SourceError records a recoverable failure of a single source.
type SourceError struct {
	Source types.SourceDescriptor
	Op     string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Wrap turns err into a *SourceError for desc unless it already is one.
func Wrap(desc types.SourceDescriptor, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return &SourceError{Source: desc, Op: op, Err: err}
}

// Vanished reports whether err means the underlying source went away
// mid-read (file removed, process exited, peer hung up). Readers map these
// to a clean end of stream.
func Vanished(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, os.ErrNotExist), errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ESRCH), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

// chunkList serves precomputed chunks.
type chunkList struct {
	chunks []Chunk
	i      int
}

func (l *chunkList) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if l.i >= len(l.chunks) {
		return Chunk{}, io.EOF
	}
	c := l.chunks[l.i]
	l.i++
	return c, nil
}

func (l *chunkList) Close() error { return nil }

// stream splits an io.Reader into overlapping chunks. The first chunk is
// read to full size+carry; every later chunk keeps the previous carry bytes
// and appends up to size new ones.
type stream struct {
	r       io.Reader
	closer  io.Closer
	desc    types.SourceDescriptor
	size    int
	carry   int
	prev    []byte
	off     int64
	started bool
	done    bool
	err     error
}

func newStream(r io.ReadCloser, desc types.SourceDescriptor, size, carry int) *stream {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if carry < 0 {
		carry = 0
	}
	return &stream{r: r, closer: r, desc: desc, size: size, carry: carry}
}

func (s *stream) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.done {
		return Chunk{}, s.end()
	}
	buf := make([]byte, s.size+s.carry)
	kept := 0
	if s.started {
		kept = copy(buf, s.prev[len(s.prev)-s.carry:])
		s.off += int64(len(s.prev) - s.carry)
	}
	s.started = true
	n, err := io.ReadFull(readerCtx{ctx: ctx, r: s.r}, buf[kept:])
	data := buf[:kept+n]
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Chunk{}, ctxErr
		}
		s.done = true
		if !Vanished(err) {
			s.err = err
		}
		if len(data) == 0 {
			return Chunk{}, s.end()
		}
		return Chunk{Data: data, Provenance: s.desc, Offset: s.off, Lead: kept}, nil
	}
	s.prev = data
	return Chunk{Data: data, Provenance: s.desc, Offset: s.off, Carry: s.carry, Lead: kept}, nil
}

func (s *stream) end() error {
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

func (s *stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// readerCtx stops a read loop between reads once ctx is done. It cannot
// interrupt a single blocked Read; readers that may block forever close
// their underlying stream on cancellation instead.
type readerCtx struct {
	ctx context.Context
	r   io.Reader
}

func (r readerCtx) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
