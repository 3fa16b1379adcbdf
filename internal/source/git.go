package source

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/redactyl/livegrab/internal/types"
)

// GitConfig reads the repository config of a checkout: remote URLs, which
// often carry embedded credentials, and every raw option such as
// http.extraheader.
type GitConfig struct {
	Path string
}

func NewGitConfig(path string) *GitConfig {
	if path == "" {
		path = "."
	}
	return &GitConfig{Path: path}
}

func (g *GitConfig) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceGit, Location: g.Path}
}

func (g *GitConfig) Open(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(g.Path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, err
	}
	desc := g.Descriptor()
	var chunks []Chunk

	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}
	for _, r := range remotes {
		cfg := r.Config()
		for _, u := range cfg.URLs {
			chunks = append(chunks, Chunk{Data: []byte(u), Provenance: desc.WithSection("remote." + cfg.Name + ".url")})
		}
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}
	if cfg.Raw != nil {
		for _, s := range cfg.Raw.Sections {
			chunks = append(chunks, optionChunks(desc, s.Name, s.Options)...)
			for _, sub := range s.Subsections {
				if s.Name == "remote" {
					sub = withoutURL(sub)
				}
				chunks = append(chunks, optionChunks(desc, s.Name+"."+sub.Name, sub.Options)...)
			}
		}
	}
	return &chunkList{chunks: chunks}, nil
}

func optionChunks(desc types.SourceDescriptor, prefix string, opts config.Options) []Chunk {
	out := make([]Chunk, 0, len(opts))
	for _, o := range opts {
		if o.Value == "" {
			continue
		}
		out = append(out, Chunk{
			Data:       []byte(o.Key + " = " + o.Value),
			Provenance: desc.WithSection(prefix + "." + strings.ToLower(o.Key)),
		})
	}
	return out
}

// withoutURL drops url options already read through Remotes.
func withoutURL(sub *config.Subsection) *config.Subsection {
	out := &config.Subsection{Name: sub.Name}
	for _, o := range sub.Options {
		if !strings.EqualFold(o.Key, "url") {
			out.Options = append(out.Options, o)
		}
	}
	return out
}
