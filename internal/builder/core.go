package builder

import (
	"context"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/cdn"
	"github.com/toastate/toastcdn/internal/manifest"
	"github.com/toastate/toastcdn/pkg/classify"
)

type Builder struct {
	opts Options

	initialized bool

	provider manifest.Provider
	uploader cdn.Uploader
	cache    cache.Cache

	classifier *classify.Classifier
	walker     *classify.Walker
	filewriter FileWriter
}

// Options drive one Builder. Start from DefaultOptions, the zero value
// disables asynchronous stylesheet rewriting and the cache.
type Options struct {
	// Src holds the templates to rewrite, the manifest templates are used
	// when empty. Dist receives the rewritten templates, Src when empty.
	Src  string
	Dist string
	// Resolve lists the template extensions.
	Resolve []string
	// StaticDirs, when set, replace the manifest assets by the files found
	// in these directories.
	StaticDirs []string
	// SmartMode uses the manifest output path for Src, Dist and StaticDirs.
	SmartMode bool
	// Exclude holds globs of files never collected from Src or StaticDirs.
	Exclude []string

	SliceLimit    int
	EnableCache   bool
	CacheLocation string
	// PassToCdn is the upload options snapshot, a change invalidates the cache.
	PassToCdn any

	ForceCopyTemplate bool
	AsyncCSS          bool
	DirtyCheck        bool
	LogLocalFiles     bool
	// Minify minifies the rewritten stylesheets and HTML templates.
	Minify bool

	URLHook   cdn.URLHook
	ReplaceFn func(content, location string) string
	WaitFor   func(ctx context.Context) error
	OnFinish  func()
	OnError   func(error)
}

func DefaultOptions() Options {
	return Options{
		Resolve:     []string{"html"},
		SliceLimit:  cdn.DefaultSliceLimit,
		EnableCache: true,
		AsyncCSS:    true,
	}
}

func NewBuilder(provider manifest.Provider, uploader cdn.Uploader, opts Options) *Builder {
	return &Builder{
		opts:     opts,
		provider: provider,
		uploader: uploader,
	}
}

// SetCache replaces the file cache opened from the options.
func (b *Builder) SetCache(c cache.Cache) {
	b.cache = c
}

func (b *Builder) Options() Options {
	return b.opts
}
