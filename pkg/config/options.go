package config

import (
	"bytes"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/toastate/toastcdn/internal/builder"
	"github.com/toastate/toastcdn/internal/cdn"
	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/internal/tlogger"
	"github.com/toastate/toastcdn/pkg/rewrite"
)

// URLData is the data given to the url template.
type URLData struct {
	// Remote is the URL returned by the uploader.
	Remote string
	// Local is the uploaded file.
	Local string
	// Name is the base name of Local.
	Name string
}

// NewURLHook compiles a text/template into an URL hook, for instance
// "{{.Remote}}?v=1" or "https://assets.example.com/{{.Name}}". An empty text
// returns a nil hook.
func NewURLHook(text string) (cdn.URLHook, error) {
	if text == "" {
		return nil, nil
	}

	tpl, err := template.New("url").Parse(text)
	if err != nil {
		return nil, &builder.ConfigurationError{Option: "url_template", Reason: err.Error()}
	}

	return func(remote, local string) string {
		data := URLData{
			Remote: remote,
			Local:  local,
			Name:   path.Base(rewrite.NormalizePath(local)),
		}

		buf := &bytes.Buffer{}
		if err := tpl.Execute(buf, data); err != nil {
			tlogger.Warn("config", "url_template", "msg", "template failed, keeping the uploader URL", "local", local, "err", err)
			return remote
		}
		return buf.String()
	}, nil
}

// BuilderOptions converts the configuration into builder options.
func (c *Configuration) BuilderOptions() (builder.Options, error) {
	opts := builder.DefaultOptions()

	opts.Src = c.Src
	opts.Dist = c.Dist
	if len(c.Resolve) > 0 {
		opts.Resolve = c.Resolve
	}
	opts.StaticDirs = c.StaticDir
	opts.SmartMode = c.SmartMode
	opts.Exclude = c.Exclude

	opts.SliceLimit = c.SliceLimit
	opts.EnableCache = c.EnableCache
	opts.CacheLocation = c.CacheLocation
	opts.PassToCdn = c.PassToCdn

	opts.ForceCopyTemplate = c.ForceCopyTemplate
	opts.AsyncCSS = c.AsyncCSS
	opts.DirtyCheck = c.DirtyCheck
	opts.LogLocalFiles = c.LogLocalFiles
	opts.Minify = c.Minify

	hook, err := NewURLHook(c.URLTemplate)
	if err != nil {
		return opts, err
	}
	opts.URLHook = hook

	return opts, nil
}

// Uploader returns the uploader described by the cdn section.
func (c *Configuration) Uploader() (cdn.Uploader, error) {
	if c.CDNConfig.DryRun {
		return &cdn.MockUploader{BaseURL: c.CDNConfig.BaseURL}, nil
	}
	if c.CDNConfig.Dir == "" {
		return nil, &builder.ConfigurationError{Option: "cdn.dir", Reason: "a directory is required unless dry_run is set"}
	}
	return &cdn.LocalUploader{Dir: c.CDNConfig.Dir, BaseURL: c.CDNConfig.BaseURL}, nil
}

func (c *Configuration) Provider() manifest.Provider {
	return &manifest.File{Path: c.Manifest}
}

// ServeDir is the directory holding the rewritten templates.
func (c *Configuration) ServeDir() string {
	switch {
	case c.Dist != "" && !c.SmartMode:
		return c.Dist
	case c.Src != "" && !c.SmartMode:
		return c.Src
	}
	return filepath.Dir(c.Manifest)
}

// CDNPrefix is the path of the CDN base URL, where the local CDN directory
// is served.
func (c *Configuration) CDNPrefix() string {
	u, err := url.Parse(c.CDNConfig.BaseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/cdn/"
	}
	return strings.TrimSuffix(u.Path, "/") + "/"
}
