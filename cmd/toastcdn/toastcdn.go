package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/internal/watcher"
	"github.com/toastate/toastcdn/pkg/builder"
	"github.com/toastate/toastcdn/pkg/config"
	"github.com/toastate/toastcdn/pkg/server"
)

var CLI struct {
	Build CommandBuild `cmd:"" aliases:"b" help:"Uploads the build assets and points the build to them."`
	Watch CommandWatch `cmd:"" aliases:"w" help:"Runs a new pass each time the build manifest changes."`
	Serve CommandServe `cmd:"" aliases:"s" help:"Serves the rewritten build and the local CDN with live reload."`

	ConfigFile string `short:"c" help:"configuration file path (optional)"`
}

type BuildFlags struct {
	Manifest  string   `short:"m" help:"Build manifest written by the bundler."`
	Src       string   `help:"Template source directory."`
	Dist      string   `help:"Template output directory."`
	StaticDir []string `help:"Collect assets from these directories instead of the manifest."`
	SmartMode bool     `help:"Use the manifest output path for templates and assets."`
	Minify    bool     `help:"Minify the rewritten stylesheets and templates."`
	DryRun    bool     `help:"Compute CDN URLs without copying any file."`
	NoCache   bool     `help:"Upload every file, ignoring the upload cache."`

	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

type CommandBuild struct {
	BuildFlags `embed:""`
}

type CommandWatch struct {
	BuildFlags `embed:""`
}

type CommandServe struct {
	BuildFlags `embed:""`
	Build      bool `negatable:"" default:"true" help:"Run a pass before serving and on each manifest change."`

	Port int `short:"p" help:"Listener port"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.UsageOnError())

	err := config.Init(CLI.ConfigFile)
	if err != nil {
		log.Fatal(err)
	}

	err = ctx.Run(ctx)
	if err != nil {
		tlogger.Error("msg", "Command failed", "err", err)
		os.Exit(1)
	}
}

func applyVerbose(v int) {
	switch v {
	case 0:
		tlogger.ApplyLogLevel("info")
	case 1:
		tlogger.ApplyLogLevel("debug")
	default:
		tlogger.ApplyLogLevel("all")
	}
}

// apply overrides the configuration with the flags that were set.
func (f *BuildFlags) apply(c *config.Configuration) {
	if f.Manifest != "" {
		c.Manifest = f.Manifest
	}
	if f.Src != "" {
		c.Src = f.Src
	}
	if f.Dist != "" {
		c.Dist = f.Dist
	}
	if len(f.StaticDir) > 0 {
		c.StaticDir = f.StaticDir
	}
	if f.SmartMode {
		c.SmartMode = true
	}
	if f.Minify {
		c.Minify = true
	}
	if f.DryRun {
		c.CDNConfig.DryRun = true
	}
	if f.NoCache {
		c.EnableCache = false
		c.CacheLocation = ""
	}
}

func (f *BuildFlags) builder() (builder.Builder, error) {
	applyVerbose(f.Verbose)
	f.apply(config.Config)
	return builder.FromConfig(config.Config)
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (r *CommandBuild) Run(ctx *kong.Context) error {
	buildtool, err := r.builder()
	if err != nil {
		return err
	}

	sctx, cancel := interruptible()
	defer cancel()

	return buildtool.Build(sctx)
}

func (r *CommandWatch) Run(ctx *kong.Context) error {
	buildtool, err := r.builder()
	if err != nil {
		return err
	}

	sctx, cancel := interruptible()
	defer cancel()

	// failures are logged by the builder, watching goes on
	buildtool.Build(sctx)

	tlogger.Info("msg", "Watching", "path", config.Config.Manifest)
	err = watcher.OnChange(sctx, watcher.SameFile(config.Config.Manifest), func(changes []string) {
		buildtool.Build(sctx)
	}, filepath.Dir(config.Config.Manifest))
	if sctx.Err() != nil {
		return nil
	}
	return err
}

func (r *CommandServe) Run(ctx *kong.Context) error {
	var buildtool builder.Builder
	if r.Build {
		var err error
		if buildtool, err = r.builder(); err != nil {
			return err
		}
	} else {
		applyVerbose(r.Verbose)
		r.apply(config.Config)
	}

	sctx, cancel := interruptible()
	defer cancel()

	serv := server.NewServer(config.Config, r.Port, buildtool)
	return serv.Start(sctx, r.Build)
}
