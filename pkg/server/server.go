package server

import (
	"context"
	"strconv"

	"github.com/toastate/toastcdn/internal/server"
	"github.com/toastate/toastcdn/pkg/builder"
	"github.com/toastate/toastcdn/pkg/config"
)

type Server interface {
	Start(ctx context.Context, withBuilder bool) error
}

// NewServer serves the rewritten templates and the local CDN directory of c.
// buildtool may be nil when no pass is run.
func NewServer(c *config.Configuration, port int, buildtool builder.Builder) Server {
	if port <= 0 {
		port = c.ServeConfig.Port
	}

	opts := server.Options{
		DistDir:      c.ServeDir(),
		CDNDir:       c.CDNConfig.Dir,
		CDNPrefix:    c.CDNPrefix(),
		Port:         strconv.Itoa(port),
		Override404:  c.ServeConfig.Redirect404,
		ManifestPath: c.Manifest,
	}
	if c.CDNConfig.DryRun {
		opts.CDNDir = ""
	}

	return server.NewServer(opts, buildtool)
}
