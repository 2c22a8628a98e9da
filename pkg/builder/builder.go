// Package builder rewrites a bundler build so it loads its assets from a CDN.
package builder

import (
	"context"

	"github.com/toastate/toastcdn/internal/builder"
	"github.com/toastate/toastcdn/internal/cdn"
	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/pkg/config"
)

type (
	Options   = builder.Options
	Provider  = manifest.Provider
	BuildInfo = manifest.BuildInfo
	Uploader  = cdn.Uploader
	Pairs     = cdn.Pairs
)

type Builder interface {
	Init() error
	Build(ctx context.Context) error
}

func DefaultOptions() Options {
	return builder.DefaultOptions()
}

func NewBuilder(provider Provider, uploader Uploader, opts Options) Builder {
	return builder.NewBuilder(provider, uploader, opts)
}

// FromConfig returns a Builder reading the manifest and uploading to the CDN
// described by c.
func FromConfig(c *config.Configuration) (Builder, error) {
	opts, err := c.BuilderOptions()
	if err != nil {
		return nil, err
	}
	up, err := c.Uploader()
	if err != nil {
		return nil, err
	}

	b := builder.NewBuilder(c.Provider(), up, opts)
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}
