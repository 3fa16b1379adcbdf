package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/redactyl/livegrab/internal/types"
)

// Image reads the config of a remote container image: environment, labels,
// entrypoint, command and the build history. Layers are not pulled.
type Image struct {
	Ref       string
	sensitive *Sensitivity
	opts      []remote.Option
}

// NewImage returns a reader for ref that authenticates with the local
// docker keychain.
func NewImage(ref string, sensitive *Sensitivity, opts ...remote.Option) *Image {
	return &Image{Ref: ref, sensitive: sensitive, opts: opts}
}

func (i *Image) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceImage, Location: i.Ref}
}

func (i *Image) Open(ctx context.Context) (Handle, error) {
	ref, err := name.ParseReference(i.Ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", i.Ref, err)
	}
	opts := append([]remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	}, i.opts...)
	img, err := remote.Image(ref, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch image metadata for %q: %w", i.Ref, err)
	}
	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read config for %q: %w", i.Ref, err)
	}
	desc := i.Descriptor()
	if d, err := img.Digest(); err == nil {
		desc.Metadata = map[string]string{"digest": d.String()}
	}

	var chunks []Chunk
	chunks = append(chunks, envChunks(cfg.Config.Env, desc.WithSection("env"), i.sensitive)...)
	for k := range chunks {
		// keep the variable name as the section, scoped under env
		chunks[k].Provenance.Section = "env." + chunks[k].Provenance.Section
	}

	keys := make([]string, 0, len(cfg.Config.Labels))
	for k := range cfg.Config.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		chunks = append(chunks, Chunk{
			Data:       []byte(k + "=" + cfg.Config.Labels[k]),
			Provenance: i.sensitive.annotate(desc, "label."+k),
		})
	}
	if len(cfg.Config.Entrypoint) > 0 {
		chunks = append(chunks, Chunk{Data: []byte(strings.Join(cfg.Config.Entrypoint, "\n")), Provenance: desc.WithSection("entrypoint")})
	}
	if len(cfg.Config.Cmd) > 0 {
		chunks = append(chunks, Chunk{Data: []byte(strings.Join(cfg.Config.Cmd, "\n")), Provenance: desc.WithSection("cmd")})
	}
	for n, h := range cfg.History {
		if h.CreatedBy == "" {
			continue
		}
		chunks = append(chunks, Chunk{Data: []byte(h.CreatedBy), Provenance: desc.WithSection("history." + strconv.Itoa(n))})
	}
	return &chunkList{chunks: chunks}, nil
}
