package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/redactyl/livegrab/internal/types"
)

// Process reads the environment block and command line of a running process.
type Process struct {
	pid       int32
	sensitive *Sensitivity
}

// NewProcess returns a reader for pid.
func NewProcess(pid int32, sensitive *Sensitivity) *Process {
	return &Process{pid: pid, sensitive: sensitive}
}

func (p *Process) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceProcess, Location: "pid:" + strconv.Itoa(int(p.pid))}
}

func (p *Process) Open(ctx context.Context) (Handle, error) {
	proc, err := process.NewProcessWithContext(ctx, p.pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("process %d is not running: %w", p.pid, err)
		}
		return nil, err
	}
	desc := p.Descriptor()
	if name, err := proc.NameWithContext(ctx); err == nil && name != "" {
		desc.Metadata = map[string]string{"name": name}
	}
	return &processHandle{proc: proc, desc: desc, sensitive: p.sensitive}, nil
}

// processHandle fetches lazily so a process exiting after Open ends the
// sequence cleanly instead of failing the source.
type processHandle struct {
	proc      *process.Process
	desc      types.SourceDescriptor
	sensitive *Sensitivity
	stage     int
	pending   chunkList
}

func (h *processHandle) Next(ctx context.Context) (Chunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Chunk{}, err
		}
		if h.pending.i < len(h.pending.chunks) {
			return h.pending.Next(ctx)
		}
		switch h.stage {
		case 0:
			h.stage++
			env, err := h.proc.EnvironWithContext(ctx)
			if err != nil {
				if h.gone(ctx, err) {
					return Chunk{}, io.EOF
				}
				return Chunk{}, fmt.Errorf("read environ: %w", err)
			}
			h.pending = chunkList{chunks: envChunks(env, h.desc, h.sensitive)}
		case 1:
			h.stage++
			args, err := h.proc.CmdlineSliceWithContext(ctx)
			if err != nil {
				if h.gone(ctx, err) {
					return Chunk{}, io.EOF
				}
				return Chunk{}, fmt.Errorf("read cmdline: %w", err)
			}
			if len(args) > 0 {
				// one argument per line so line-oriented detectors see each flag alone
				h.pending = chunkList{chunks: []Chunk{{
					Data:       []byte(strings.Join(args, "\n")),
					Provenance: h.desc.WithSection("cmdline"),
				}}}
			}
		default:
			return Chunk{}, io.EOF
		}
	}
}

func (h *processHandle) gone(ctx context.Context, err error) bool {
	if Vanished(err) || errors.Is(err, process.ErrorProcessNotRunning) {
		return true
	}
	running, rerr := h.proc.IsRunningWithContext(ctx)
	return rerr == nil && !running
}

func (h *processHandle) Close() error { return nil }
