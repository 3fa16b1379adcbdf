package source

import (
	"context"
	"os"
	"strings"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"

	"github.com/redactyl/livegrab/internal/types"
)

// DefaultSensitiveEnv lists environment variable globs that are flagged as
// sensitive regardless of their value.
func DefaultSensitiveEnv() []string {
	return []string{
		"*_PASSWORD", "*_PASSWD", "*_SECRET", "*_SECRET_KEY", "*_TOKEN", "*_API_KEY", "*_APIKEY",
		"*_ACCESS_KEY", "*_PRIVATE_KEY", "*_CREDENTIALS", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"GITHUB_TOKEN", "GH_TOKEN", "NPM_TOKEN", "DOCKER_AUTH_CONFIG", "VAULT_TOKEN", "KUBECONFIG_DATA",
	}
}

// Sensitivity matches variable or data-key names against compiled globs.
type Sensitivity struct {
	exact map[string]struct{}
	globs []glob.Glob
}

// NewSensitivity compiles patterns; entries without '*' match exactly.
func NewSensitivity(patterns []string) *Sensitivity {
	s := &Sensitivity{exact: map[string]struct{}{}}
	for _, p := range patterns {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.Contains(p, "*") {
			s.exact[p] = struct{}{}
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			log.Errorf("(source/env) sensitive glob pattern could not be interpreted: %v", err)
			continue
		}
		s.globs = append(s.globs, g)
	}
	return s
}

// Match reports whether key is sensitive.
func (s *Sensitivity) Match(key string) bool {
	if s == nil {
		return false
	}
	k := strings.ToUpper(key)
	if _, ok := s.exact[k]; ok {
		return true
	}
	for _, g := range s.globs {
		if g.Match(k) {
			return true
		}
	}
	return false
}

// annotate copies desc for one key, flagging it when sensitive.
func (s *Sensitivity) annotate(desc types.SourceDescriptor, key string) types.SourceDescriptor {
	d := desc.WithSection(key)
	if s.Match(key) {
		if d.Metadata == nil {
			d.Metadata = map[string]string{}
		}
		d.Metadata["sensitive"] = "true"
	}
	return d
}

// Environ reads a KEY=VALUE environment block, one chunk per variable.
type Environ struct {
	vars      []string
	location  string
	sensitive *Sensitivity
}

// NewEnviron reads vars, or the current process environment when vars is nil.
func NewEnviron(vars []string, location string, sensitive *Sensitivity) *Environ {
	if location == "" {
		location = "self"
	}
	return &Environ{vars: vars, location: location, sensitive: sensitive}
}

func (e *Environ) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceEnv, Location: e.location}
}

func (e *Environ) Open(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vars := e.vars
	if vars == nil {
		vars = os.Environ()
	}
	return &chunkList{chunks: envChunks(vars, e.Descriptor(), e.sensitive)}, nil
}

func envChunks(vars []string, desc types.SourceDescriptor, sensitive *Sensitivity) []Chunk {
	chunks := make([]Chunk, 0, len(vars))
	var off int64
	for _, kv := range vars {
		key, _, _ := strings.Cut(kv, "=")
		if key == "" {
			off += int64(len(kv)) + 1
			continue
		}
		chunks = append(chunks, Chunk{
			Data:       []byte(kv),
			Provenance: sensitive.annotate(desc, key),
			Offset:     off,
		})
		off += int64(len(kv)) + 1
	}
	return chunks
}
